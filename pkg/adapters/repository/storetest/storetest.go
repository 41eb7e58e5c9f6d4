// Package storetest holds behaviour every ports.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) ports.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("duplicate email", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("links", func(t *testing.T) { testLinks(t, newStore(t)) })
	t.Run("duplicate code", func(t *testing.T) { testDuplicateCode(t, newStore(t)) })
	t.Run("unknown owner", func(t *testing.T) { testUnknownOwner(t, newStore(t)) })
	t.Run("owner isolation and order", func(t *testing.T) { testOwnerListing(t, newStore(t)) })
	t.Run("clicks", func(t *testing.T) { testClicks(t, newStore(t)) })
	t.Run("concurrent clicks", func(t *testing.T) { testConcurrentClicks(t, newStore(t)) })
	t.Run("sum", func(t *testing.T) { testSum(t, newStore(t)) })
	t.Run("counts", func(t *testing.T) { testCounts(t, newStore(t)) })
}

func mustUser(t *testing.T, s ports.Store, email string) string {
	t.Helper()
	id, err := s.CreateUser(context.Background(), email, "hash")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func mustLink(t *testing.T, s ports.Store, ownerID, code string) *domain.Link {
	t.Helper()
	ctx := context.Background()
	_, err := s.CreateLink(ctx, ownerID, "https://example.com/"+code, code)
	require.NoError(t, err)
	link, err := s.GetLinkByCode(ctx, code)
	require.NoError(t, err)
	return link
}

func testUsers(t *testing.T, s ports.Store) {
	ctx := context.Background()

	id := mustUser(t, s, "a@example.com")

	user, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "a@example.com", user.Email)
	assert.Equal(t, "hash", user.Credential)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, s ports.Store) {
	mustUser(t, s, "dup@example.com")

	_, err := s.CreateUser(context.Background(), "dup@example.com", "other")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func testLinks(t *testing.T, s ports.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com")

	id, err := s.CreateLink(ctx, owner, "https://example.com/a", "abc123")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	link, err := s.GetLinkByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, id, link.ID)
	assert.Equal(t, owner, link.OwnerID)
	assert.Equal(t, "https://example.com/a", link.DestinationURL)
	assert.Equal(t, "abc123", link.ShortCode)
	assert.Zero(t, link.Clicks)
	assert.False(t, link.CreatedAt.IsZero())

	_, err = s.GetLinkByCode(ctx, "nope00")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDuplicateCode(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := mustUser(t, s, "a@example.com")
	b := mustUser(t, s, "b@example.com")
	mustLink(t, s, a, "same00")

	_, err := s.CreateLink(ctx, b, "https://example.com/other", "same00")
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	link, err := s.GetLinkByCode(ctx, "same00")
	require.NoError(t, err)
	assert.Equal(t, a, link.OwnerID, "original link must be untouched")
}

func testUnknownOwner(t *testing.T, s ports.Store) {
	_, err := s.CreateLink(context.Background(), "999999", "https://example.com", "orphan")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testOwnerListing(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := mustUser(t, s, "a@example.com")
	b := mustUser(t, s, "b@example.com")

	for i := 0; i < 3; i++ {
		mustLink(t, s, a, fmt.Sprintf("aaaa%02d", i))
		time.Sleep(5 * time.Millisecond)
	}
	mustLink(t, s, b, "bbbb00")

	links, err := s.ListLinksByOwner(ctx, a)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "aaaa02", links[0].ShortCode)
	assert.Equal(t, "aaaa01", links[1].ShortCode)
	assert.Equal(t, "aaaa00", links[2].ShortCode)
	for _, l := range links {
		assert.Equal(t, a, l.OwnerID)
	}

	links, err = s.ListLinksByOwner(ctx, b)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "bbbb00", links[0].ShortCode)

	c := mustUser(t, s, "c@example.com")
	links, err = s.ListLinksByOwner(ctx, c)
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func testClicks(t *testing.T, s ports.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com")
	link := mustLink(t, s, owner, "click0")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, origin := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		err := s.AppendClick(ctx, &domain.Click{
			LinkID:    link.ID,
			Origin:    origin,
			Country:   "Thailand",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	clicks, err := s.ListClicksByLink(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, clicks, 3)
	assert.Equal(t, "10.0.0.3", clicks[0].Origin)
	assert.Equal(t, "10.0.0.1", clicks[2].Origin)
	assert.Equal(t, "Thailand", clicks[0].Country)
	assert.True(t, clicks[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	fresh, err := s.GetLinkByCode(ctx, "click0")
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.Clicks)

	err = s.AppendClick(ctx, &domain.Click{LinkID: "424242", Origin: "x", CreatedAt: base})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConcurrentClicks(t *testing.T, s ports.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owner@example.com")
	link := mustLink(t, s, owner, "burst0")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.AppendClick(ctx, &domain.Click{
				LinkID:    link.ID,
				Origin:    fmt.Sprintf("10.0.1.%d", i),
				CreatedAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	fresh, err := s.GetLinkByCode(ctx, "burst0")
	require.NoError(t, err)
	clicks, err := s.ListClicksByLink(ctx, link.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(n), fresh.Clicks)
	assert.Len(t, clicks, n)
}

func testSum(t *testing.T, s ports.Store) {
	ctx := context.Background()

	total, err := s.SumClicksAllLinks(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	a := mustUser(t, s, "a@example.com")
	b := mustUser(t, s, "b@example.com")
	la := mustLink(t, s, a, "suma00")
	lb := mustLink(t, s, b, "sumb00")
	mustLink(t, s, b, "sumb01")

	for i := 0; i < 2; i++ {
		require.NoError(t, s.AppendClick(ctx, &domain.Click{LinkID: la.ID, Origin: "x", CreatedAt: time.Now()}))
	}
	require.NoError(t, s.AppendClick(ctx, &domain.Click{LinkID: lb.ID, Origin: "y", CreatedAt: time.Now()}))

	total, err = s.SumClicksAllLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func testCounts(t *testing.T, s ports.Store) {
	ctx := context.Background()

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)
	links, err := s.CountLinks(ctx)
	require.NoError(t, err)
	assert.Zero(t, links)

	a := mustUser(t, s, "a@example.com")
	b := mustUser(t, s, "b@example.com")
	mustUser(t, s, "c@example.com")
	mustLink(t, s, a, "cnta00")
	mustLink(t, s, a, "cnta01")
	mustLink(t, s, b, "cntb00")

	// rejected writes must not show up in the counts
	_, err = s.CreateUser(ctx, "a@example.com", "again")
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
	_, err = s.CreateLink(ctx, b, "https://example.com/dup", "cnta00")
	require.ErrorIs(t, err, domain.ErrDuplicateCode)

	users, err = s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), users)
	links, err = s.CountLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), links)
}
