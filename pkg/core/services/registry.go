package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// MaxCodeAttempts bounds code generation retries on collision
const MaxCodeAttempts = 5

type Registry struct {
	store  ports.Store
	codes  ports.CodeGenerator
	logger *slog.Logger
}

func NewRegistry(store ports.Store, codes ports.CodeGenerator, logger *slog.Logger) *Registry {
	return &Registry{store: store, codes: codes, logger: logger}
}

func (r *Registry) CreateLink(ctx context.Context, ownerID, destinationURL string) (*domain.Link, error) {
	destinationURL = strings.TrimSpace(destinationURL)
	if destinationURL == "" {
		return nil, domain.NewError(domain.KindValidation, "destination URL is required")
	}
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := r.codes.Generate()
		if err != nil {
			return nil, domain.Wrap(err, domain.KindInternal, "generate short code")
		}

		_, err = r.store.CreateLink(ctx, ownerID, destinationURL, code)
		if errors.Is(err, domain.ErrDuplicateCode) {
			r.logger.Debug("short code collision, retrying", "code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		return r.store.GetLinkByCode(ctx, code)
	}

	r.logger.Warn("short code space exhausted", "attempts", MaxCodeAttempts)
	return nil, domain.ErrCodeSpaceExhausted
}

func (r *Registry) ListOwned(ctx context.Context, ownerID string) ([]domain.Link, error) {
	links, err := r.store.ListLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func (r *Registry) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	if code == "" {
		return nil, domain.NewError(domain.KindValidation, "short code is required")
	}
	return r.store.GetLinkByCode(ctx, code)
}

func (r *Registry) AssertOwnership(link *domain.Link, callerID string) error {
	if link == nil || callerID == "" || link.OwnerID != callerID {
		return domain.Wrap(fmt.Errorf("caller %q does not own link", callerID), domain.KindForbidden, "forbidden")
	}
	return nil
}

var _ ports.LinkRegistry = (*Registry)(nil)
