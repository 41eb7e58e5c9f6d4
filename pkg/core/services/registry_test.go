package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

func TestRegistryCreateLink(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"abc123"}}, discardLogger())

	link, err := reg.CreateLink(context.Background(), owner, "  https://example.com/page  ")
	require.NoError(t, err)
	assert.Equal(t, "abc123", link.ShortCode)
	assert.Equal(t, "https://example.com/page", link.DestinationURL)
	assert.Equal(t, owner, link.OwnerID)
	assert.Zero(t, link.Clicks)
}

func TestRegistryCreateLinkValidation(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"abc123"}}, discardLogger())

	_, err := reg.CreateLink(context.Background(), owner, "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = reg.CreateLink(context.Background(), "", "https://example.com")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRegistryRetriesOnCollision(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	ctx := context.Background()

	_, err := store.CreateLink(ctx, owner, "https://example.com/first", "taken0")
	require.NoError(t, err)

	gen := &sequenceGenerator{codes: []string{"taken0", "taken0", "fresh0"}}
	reg := NewRegistry(store, gen, discardLogger())

	link, err := reg.CreateLink(ctx, owner, "https://example.com/second")
	require.NoError(t, err)
	assert.Equal(t, "fresh0", link.ShortCode)
	assert.Equal(t, 3, gen.calls)

	// the colliding link keeps its destination
	first, err := store.GetLinkByCode(ctx, "taken0")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/first", first.DestinationURL)
}

func TestRegistryCodeSpaceExhausted(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	ctx := context.Background()

	_, err := store.CreateLink(ctx, owner, "https://example.com", "taken0")
	require.NoError(t, err)

	gen := &sequenceGenerator{codes: []string{"taken0"}}
	reg := NewRegistry(store, gen, discardLogger())

	_, err = reg.CreateLink(ctx, owner, "https://example.com/again")
	assert.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
	assert.Equal(t, MaxCodeAttempts, gen.calls)
}

func TestRegistryDoesNotRetryOtherErrors(t *testing.T) {
	store := newTestStore(t)
	gen := &sequenceGenerator{codes: []string{"abc123"}}
	reg := NewRegistry(store, gen, discardLogger())

	// unknown owner is a not-found, not a collision
	_, err := reg.CreateLink(context.Background(), "4242", "https://example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, gen.calls)
}

func TestRegistryManyLinksStayUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping bulk creation in short mode")
	}

	store := newTestStore(t)
	owner := newTestUser(t, store, "bulk@example.com")
	gen, err := NewRandomCodeGenerator(DefaultCodeLength)
	require.NoError(t, err)
	reg := NewRegistry(store, gen, discardLogger())
	ctx := context.Background()

	const n = 10000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		link, err := reg.CreateLink(ctx, owner, "https://example.com")
		require.NoError(t, err)
		require.False(t, seen[link.ShortCode], "duplicate code %s", link.ShortCode)
		seen[link.ShortCode] = true
	}

	links, err := reg.ListOwned(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, links, n)
}

func TestRegistryListOwned(t *testing.T) {
	store := newTestStore(t)
	a := newTestUser(t, store, "a@example.com")
	b := newTestUser(t, store, "b@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"code01", "code02", "code03"}}, discardLogger())
	ctx := context.Background()

	_, err := reg.CreateLink(ctx, a, "https://a.example.com/1")
	require.NoError(t, err)
	_, err = reg.CreateLink(ctx, a, "https://a.example.com/2")
	require.NoError(t, err)
	_, err = reg.CreateLink(ctx, b, "https://b.example.com/1")
	require.NoError(t, err)

	links, err := reg.ListOwned(ctx, a)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "code02", links[0].ShortCode)

	empty, err := reg.ListOwned(ctx, newTestUser(t, store, "c@example.com"))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRegistryGetByCode(t *testing.T) {
	store := newTestStore(t)
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"x"}}, discardLogger())

	_, err := reg.GetByCode(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = reg.GetByCode(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistryAssertOwnership(t *testing.T) {
	reg := NewRegistry(nil, nil, discardLogger())
	link := &domain.Link{ID: "1", OwnerID: "7", ShortCode: "abc123"}

	assert.NoError(t, reg.AssertOwnership(link, "7"))

	err := reg.AssertOwnership(link, "8")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	assert.True(t, errors.Is(reg.AssertOwnership(link, ""), domain.ErrForbidden))
	assert.ErrorIs(t, reg.AssertOwnership(nil, "7"), domain.ErrForbidden)
}
