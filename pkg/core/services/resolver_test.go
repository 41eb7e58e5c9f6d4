package services

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

func newResolverFixture(t *testing.T) (*Resolver, *Ledger, *domain.Link) {
	t.Helper()
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"go1234"}}, discardLogger())
	link, err := reg.CreateLink(context.Background(), owner, "https://go.dev")
	require.NoError(t, err)

	ledger := NewLedger(store, discardLogger())
	return NewResolver(reg, ledger, time.Second), ledger, link
}

func TestResolverRedirectsAndRecords(t *testing.T) {
	resolver, ledger, link := newResolverFixture(t)

	dest, err := resolver.Resolve(context.Background(), "go1234", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "https://go.dev", dest)

	resolver.Wait()
	total, err := ledger.TotalClicks(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestResolverUnknownCodeRecordsNothing(t *testing.T) {
	resolver, ledger, _ := newResolverFixture(t)

	_, err := resolver.Resolve(context.Background(), "nope00", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	resolver.Wait()
	total, err := ledger.SystemTotal(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestResolverSurvivesCancelledRequest(t *testing.T) {
	resolver, ledger, link := newResolverFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := resolver.Resolve(ctx, "go1234", "10.0.0.1")
	require.NoError(t, err)
	cancel()

	resolver.Wait()
	total, err := ledger.TotalClicks(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Zero(t, ledger.Failures())
}

func TestResolverConcurrentClicks(t *testing.T) {
	resolver, ledger, link := newResolverFixture(t)

	const n = 40
	start := time.Now().UTC()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := resolver.Resolve(context.Background(), "go1234", fmt.Sprintf("10.0.0.%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	resolver.Wait()

	total, err := ledger.TotalClicks(context.Background(), link)
	require.NoError(t, err)
	history, err := ledger.History(context.Background(), link)
	require.NoError(t, err)

	assert.Equal(t, int64(n), total)
	assert.Len(t, history, n)
	for _, click := range history {
		assert.False(t, click.CreatedAt.Before(start),
			"click at %s precedes the burst start %s", click.CreatedAt, start)
	}
}

func TestResolverClickFailureDoesNotFailRedirect(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"go1234"}}, discardLogger())
	_, err := reg.CreateLink(context.Background(), owner, "https://go.dev")
	require.NoError(t, err)

	ledger := NewLedger(&failingStore{Store: store, err: fmt.Errorf("write failed")}, discardLogger())
	resolver := NewResolver(reg, ledger, time.Second)

	dest, err := resolver.Resolve(context.Background(), "go1234", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "https://go.dev", dest)

	resolver.Wait()
	assert.Equal(t, int64(1), ledger.Failures())
}

func TestResolverSynchronousRecording(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"go1234"}}, discardLogger())
	link, err := reg.CreateLink(context.Background(), owner, "https://go.dev")
	require.NoError(t, err)

	ledger := NewLedger(store, discardLogger())
	resolver := NewResolver(reg, ledger, time.Second, WithSynchronousRecording())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest, err := resolver.Resolve(ctx, "go1234", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "https://go.dev", dest)

	// no Wait: the click is already stored
	total, err := ledger.TotalClicks(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

// gatedLedger blocks every RecordClick until the gate is closed
type gatedLedger struct {
	ports.ClickLedger
	gate    chan struct{}
	started chan struct{}
	mu      sync.Mutex
	calls   int
}

func (l *gatedLedger) RecordClick(ctx context.Context, link *domain.Link, origin string) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	l.started <- struct{}{}
	<-l.gate
}

func (l *gatedLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestResolverResolveDuringWait(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "owner@example.com")
	reg := NewRegistry(store, &sequenceGenerator{codes: []string{"go1234"}}, discardLogger())
	_, err := reg.CreateLink(context.Background(), owner, "https://go.dev")
	require.NoError(t, err)

	ledger := &gatedLedger{gate: make(chan struct{}), started: make(chan struct{}, 2)}
	resolver := NewResolver(reg, ledger, time.Second)

	_, err = resolver.Resolve(context.Background(), "go1234", "10.0.0.1")
	require.NoError(t, err)
	<-ledger.started

	waited := make(chan struct{})
	go func() {
		resolver.Wait()
		close(waited)
	}()
	require.Eventually(t, func() bool {
		resolver.mu.Lock()
		defer resolver.mu.Unlock()
		return resolver.waiters > 0
	}, time.Second, time.Millisecond)

	resolved := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(context.Background(), "go1234", "10.0.0.2")
		resolved <- err
	}()
	<-ledger.started

	// the late click is recorded inline, so Resolve is still blocked on the gate
	select {
	case <-resolved:
		t.Fatal("resolve returned before its click was recorded")
	default:
	}

	close(ledger.gate)
	require.NoError(t, <-resolved)
	<-waited
	assert.Equal(t, 2, ledger.count())

	// draining is over; background recording resumes
	_, err = resolver.Resolve(context.Background(), "go1234", "10.0.0.3")
	require.NoError(t, err)
	<-ledger.started
	resolver.Wait()
	assert.Equal(t, 3, ledger.count())
}
