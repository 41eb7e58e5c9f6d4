package services

import (
	"context"
	"sync"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// DefaultRecordTimeout bounds a detached click recording
const DefaultRecordTimeout = 5 * time.Second

type Resolver struct {
	registry      ports.LinkRegistry
	ledger        ports.ClickLedger
	recordTimeout time.Duration
	synchronous   bool

	mu       sync.Mutex
	waiters  int // while > 0 no new background recording may start
	inflight sync.WaitGroup
}

type ResolverOption func(*Resolver)

// WithSynchronousRecording records each click before Resolve returns. Use it where the
// process may be frozen as soon as the response is written.
func WithSynchronousRecording() ResolverOption {
	return func(r *Resolver) { r.synchronous = true }
}

func NewResolver(registry ports.LinkRegistry, ledger ports.ClickLedger, recordTimeout time.Duration, opts ...ResolverOption) *Resolver {
	if recordTimeout <= 0 {
		recordTimeout = DefaultRecordTimeout
	}
	r := &Resolver{registry: registry, ledger: ledger, recordTimeout: recordTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the destination for code. The click is recorded in the background so
// a slow or failing ledger never delays the redirect. While Wait is draining, or in
// synchronous mode, the click is recorded before returning instead.
func (r *Resolver) Resolve(ctx context.Context, code, origin string) (string, error) {
	link, err := r.registry.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}

	if r.synchronous || !r.track() {
		r.record(ctx, link, origin)
		return link.DestinationURL, nil
	}

	go func() {
		defer r.inflight.Done()
		r.record(ctx, link, origin)
	}()

	return link.DestinationURL, nil
}

// record detaches from the request context, which is cancelled once the redirect is written
func (r *Resolver) record(ctx context.Context, link *domain.Link, origin string) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.recordTimeout)
	defer cancel()
	r.ledger.RecordClick(recordCtx, link, origin)
}

// track registers a background recording unless a Wait is in progress
func (r *Resolver) track() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiters > 0 {
		return false
	}
	r.inflight.Add(1)
	return true
}

// Wait blocks until every click recording started by Resolve has finished.
// Resolve calls made meanwhile record inline, so Wait never races a new Add.
func (r *Resolver) Wait() {
	r.mu.Lock()
	r.waiters++
	r.mu.Unlock()

	r.inflight.Wait()

	r.mu.Lock()
	r.waiters--
	r.mu.Unlock()
}

var _ ports.Resolver = (*Resolver)(nil)
