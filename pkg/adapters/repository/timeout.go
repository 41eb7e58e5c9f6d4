// Package repository holds what every Store implementation shares.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// DefaultTimeout bounds a single storage operation
const DefaultTimeout = 3 * time.Second

// TimeoutStore bounds every call to the wrapped Store and reports infrastructure
// failures as domain.ErrStorageUnavailable. Errors the backend already classified
// (not found, duplicates) pass through unchanged. Nothing is retried here.
type TimeoutStore struct {
	next    ports.Store
	timeout time.Duration
}

func WithTimeout(next ports.Store, timeout time.Duration) *TimeoutStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutStore{next: next, timeout: timeout}
}

func (s *TimeoutStore) classify(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return domain.Wrap(err, domain.KindStorageUnavailable, "storage request cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(err, domain.KindStorageUnavailable, "storage timed out")
	}
	return domain.Wrap(err, domain.KindStorageUnavailable, "storage unavailable")
}

func (s *TimeoutStore) CreateUser(ctx context.Context, email, credential string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.next.CreateUser(ctx, email, credential)
	return id, s.classify(err)
}

func (s *TimeoutStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	user, err := s.next.GetUserByEmail(ctx, email)
	return user, s.classify(err)
}

func (s *TimeoutStore) CreateLink(ctx context.Context, ownerID, destinationURL, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.next.CreateLink(ctx, ownerID, destinationURL, code)
	return id, s.classify(err)
}

func (s *TimeoutStore) GetLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	link, err := s.next.GetLinkByCode(ctx, code)
	return link, s.classify(err)
}

func (s *TimeoutStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	links, err := s.next.ListLinksByOwner(ctx, ownerID)
	return links, s.classify(err)
}

func (s *TimeoutStore) AppendClick(ctx context.Context, click *domain.Click) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.classify(s.next.AppendClick(ctx, click))
}

func (s *TimeoutStore) ListClicksByLink(ctx context.Context, linkID string) ([]domain.Click, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	clicks, err := s.next.ListClicksByLink(ctx, linkID)
	return clicks, s.classify(err)
}

func (s *TimeoutStore) SumClicksAllLinks(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	total, err := s.next.SumClicksAllLinks(ctx)
	return total, s.classify(err)
}

func (s *TimeoutStore) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.next.CountUsers(ctx)
	return n, s.classify(err)
}

func (s *TimeoutStore) CountLinks(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.next.CountLinks(ctx)
	return n, s.classify(err)
}

func (s *TimeoutStore) Close() error {
	return s.next.Close()
}

var _ ports.Store = (*TimeoutStore)(nil)
