package services

import (
	"context"
	"fmt"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

type StatsService struct {
	store  ports.Store
	ledger ports.ClickLedger
}

func NewStatsService(store ports.Store, ledger ports.ClickLedger) *StatsService {
	return &StatsService{store: store, ledger: ledger}
}

// Snapshot counts users, links and clicks. The counts are read separately and may
// straddle concurrent writes.
func (s *StatsService) Snapshot(ctx context.Context) (*domain.SystemStats, error) {
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	links, err := s.store.CountLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}
	clicks, err := s.ledger.SystemTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum clicks: %w", err)
	}

	return &domain.SystemStats{
		Users:              users,
		Links:              links,
		Clicks:             clicks,
		FailedClickRecords: s.ledger.Failures(),
	}, nil
}

var _ ports.StatsReader = (*StatsService)(nil)
