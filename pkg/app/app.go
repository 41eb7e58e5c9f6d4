// Package app wires configuration into a running service: storage, tokens, services and
// the HTTP router. The server binary, the CLI and the serverless entrypoint all build on it.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/events"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/geo"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/redisstore"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlstore"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/token"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const redisKeyPrefix = "shortlink:"

type App struct {
	Store    ports.Store
	Registry *services.Registry
	Ledger   *services.Ledger
	Resolver *services.Resolver
	Router   http.Handler

	logger  *slog.Logger
	closers []io.Closer
}

// OpenStore connects the configured backend and bounds every call with the storage timeout
func OpenStore(cfg *config.Config) (ports.Store, error) {
	var (
		store ports.Store
		err   error
	)
	switch cfg.StorageDriver {
	case "redis":
		store, err = redisstore.Open(cfg.RedisURL, redisKeyPrefix)
	default:
		store, err = sqlstore.Open(cfg.DatabaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}
	return repository.WithTimeout(store, cfg.StorageTimeout), nil
}

func NewTokenService(cfg *config.Config) (ports.TokenService, error) {
	if cfg.TokenMode == "issuer" {
		return token.LoadIssuerService(cfg.TokenIssuer, cfg.TokenPublicKeyFile, cfg.TokenPrivateKeyFile, token.WithTTL(cfg.TokenTTL))
	}
	return token.NewHMACService(cfg.JWTSecret, token.WithTTL(cfg.TokenTTL))
}

// New builds the whole service. Close releases everything it opened.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store)

	tokens, err := NewTokenService(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}

	codes, err := services.NewRandomCodeGenerator(cfg.CodeLength)
	if err != nil {
		a.Close()
		return nil, err
	}

	var ledgerOpts []services.LedgerOption
	if cfg.GeoIPDB != "" {
		locator, err := geo.Open(cfg.GeoIPDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, locator)
		ledgerOpts = append(ledgerOpts, services.WithLocator(locator))
	}
	if cfg.NatsURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NatsURL, cfg.NatsSubject, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, publisher)
		ledgerOpts = append(ledgerOpts, services.WithPublisher(publisher))
	}

	a.Registry = services.NewRegistry(store, codes, logger)
	a.Ledger = services.NewLedger(store, logger, ledgerOpts...)
	var resolverOpts []services.ResolverOption
	if cfg.SyncClickRecording {
		resolverOpts = append(resolverOpts, services.WithSynchronousRecording())
	}
	a.Resolver = services.NewResolver(a.Registry, a.Ledger, services.DefaultRecordTimeout, resolverOpts...)
	accounts := services.NewAccountService(store, tokens)

	auth := handler.NewAuthHandler(accounts, logger, cfg.TokenTTL, cfg.IsProduction())
	if cfg.GoogleEnabled() {
		auth.WithGoogle(handler.GoogleOptions{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			FrontendURL:  cfg.FrontendURL,
		})
	}

	a.Router = handler.NewRouter(handler.Handlers{
		Links:      handler.NewHTTPHandler(a.Registry, a.Ledger, a.Resolver, cfg.BaseURL, logger),
		Auth:       auth,
		Admin:      handler.NewAdminHandler(services.NewStatsService(store, a.Ledger), cfg.AdminPassword, logger),
		Middleware: handler.NewMiddleware(tokens, logger),
		Logger:     logger,
	})

	return a, nil
}

// Close waits for in-flight click recordings, then closes resources in reverse order
func (a *App) Close() error {
	if a.Resolver != nil {
		a.Resolver.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if a.Ledger != nil && a.Ledger.Failures() > 0 {
		a.logger.Warn("clicks lost since start", "count", a.Ledger.Failures())
	}
	return errors.Join(errs...)
}
