package services

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type Ledger struct {
	store     ports.Store
	logger    *slog.Logger
	locator   ports.Locator        // optional
	publisher ports.ClickPublisher // optional
	failures  atomic.Int64
	now       func() time.Time
}

type LedgerOption func(*Ledger)

func WithLocator(l ports.Locator) LedgerOption {
	return func(lg *Ledger) { lg.locator = l }
}

func WithPublisher(p ports.ClickPublisher) LedgerOption {
	return func(lg *Ledger) { lg.publisher = p }
}

func NewLedger(store ports.Store, logger *slog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordClick appends a click for link. Failures are logged and counted, never returned.
func (l *Ledger) RecordClick(ctx context.Context, link *domain.Link, origin string) {
	click := &domain.Click{
		LinkID:    link.ID,
		Origin:    origin,
		Country:   l.country(origin),
		CreatedAt: l.now().UTC(),
	}

	if err := l.store.AppendClick(ctx, click); err != nil {
		l.failures.Add(1)
		l.logger.Warn("failed to record click",
			"code", link.ShortCode,
			"kind", domain.KindOf(err),
			"error", err,
		)
		return
	}

	if l.publisher == nil {
		return
	}
	event := domain.ClickEvent{
		ShortCode: link.ShortCode,
		OwnerID:   link.OwnerID,
		Origin:    click.Origin,
		Country:   click.Country,
		ClickedAt: click.CreatedAt,
	}
	if err := l.publisher.PublishClick(ctx, event); err != nil {
		l.logger.Warn("failed to publish click event", "code", link.ShortCode, "error", err)
	}
}

func (l *Ledger) History(ctx context.Context, link *domain.Link) ([]domain.Click, error) {
	clicks, err := l.store.ListClicksByLink(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	if clicks == nil {
		clicks = []domain.Click{}
	}
	return clicks, nil
}

// TotalClicks re-reads the stored counter rather than trusting link.Clicks
func (l *Ledger) TotalClicks(ctx context.Context, link *domain.Link) (int64, error) {
	fresh, err := l.store.GetLinkByCode(ctx, link.ShortCode)
	if err != nil {
		return 0, err
	}
	return fresh.Clicks, nil
}

func (l *Ledger) SystemTotal(ctx context.Context) (int64, error) {
	return l.store.SumClicksAllLinks(ctx)
}

// Failures is the number of clicks that could not be recorded since start
func (l *Ledger) Failures() int64 {
	return l.failures.Load()
}

func (l *Ledger) country(origin string) string {
	if l.locator == nil || net.ParseIP(origin) == nil {
		return ""
	}
	country, err := l.locator.Country(origin)
	if err != nil {
		l.logger.Debug("geo lookup failed", "origin", origin, "error", err)
		return ""
	}
	return country
}

var _ ports.ClickLedger = (*Ledger)(nil)
