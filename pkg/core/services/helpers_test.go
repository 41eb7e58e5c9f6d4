package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlstore"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()
	s, err := sqlstore.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s ports.Store, email string) string {
	t.Helper()
	id, err := s.CreateUser(context.Background(), email, "hash")
	require.NoError(t, err)
	return id
}

// sequenceGenerator hands out fixed codes in order
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code, nil
}

// failingStore fails every click append and delegates the rest
type failingStore struct {
	ports.Store
	err error
}

func (s *failingStore) AppendClick(ctx context.Context, click *domain.Click) error {
	return s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ClickEvent
}

func (p *recordingPublisher) PublishClick(ctx context.Context, event domain.ClickEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type staticLocator map[string]string

func (l staticLocator) Country(ip string) (string, error) {
	return l[ip], nil
}
