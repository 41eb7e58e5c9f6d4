package ports

import (
	"context"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// Store defines durable state for users, links and clicks.
// Implementations map their own uniqueness violations to domain.ErrDuplicateEmail
// and domain.ErrDuplicateCode, and missing rows to domain.ErrNotFound.
type Store interface {
	CreateUser(ctx context.Context, email, credential string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	CreateLink(ctx context.Context, ownerID, destinationURL, code string) (string, error)
	GetLinkByCode(ctx context.Context, code string) (*domain.Link, error)
	ListLinksByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) // most recent first

	// AppendClick inserts the click and increments its link's counter as one unit
	AppendClick(ctx context.Context, click *domain.Click) error
	ListClicksByLink(ctx context.Context, linkID string) ([]domain.Click, error) // most recent first
	SumClicksAllLinks(ctx context.Context) (int64, error)

	CountUsers(ctx context.Context) (int64, error)
	CountLinks(ctx context.Context) (int64, error)

	Close() error
}

// CodeGenerator produces candidate short codes. It does not guarantee uniqueness.
type CodeGenerator interface {
	Generate() (string, error)
}

// TokenService issues and verifies bearer tokens
type TokenService interface {
	Issue(user *domain.User) (string, error)
	Verify(token string) (*domain.Identity, error)
}

// ClickPublisher forwards recorded clicks to downstream consumers
type ClickPublisher interface {
	PublishClick(ctx context.Context, event domain.ClickEvent) error
}

// Locator resolves a client address to a country name
type Locator interface {
	Country(ip string) (string, error)
}

// LinkRegistry defines link ownership and uniqueness operations
type LinkRegistry interface {
	CreateLink(ctx context.Context, ownerID, destinationURL string) (*domain.Link, error)
	ListOwned(ctx context.Context, ownerID string) ([]domain.Link, error)
	GetByCode(ctx context.Context, code string) (*domain.Link, error)
	AssertOwnership(link *domain.Link, callerID string) error
}

// ClickLedger defines click accounting operations
type ClickLedger interface {
	RecordClick(ctx context.Context, link *domain.Link, origin string)
	History(ctx context.Context, link *domain.Link) ([]domain.Click, error)
	TotalClicks(ctx context.Context, link *domain.Link) (int64, error)
	SystemTotal(ctx context.Context) (int64, error)
	Failures() int64
}

// Resolver defines the redirect path
type Resolver interface {
	Resolve(ctx context.Context, code, origin string) (string, error)
}

// StatsReader summarises the whole system for operators
type StatsReader interface {
	Snapshot(ctx context.Context) (*domain.SystemStats, error)
}

// AccountService defines signup and login
type AccountService interface {
	Signup(ctx context.Context, email, password string) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	LoginExternal(ctx context.Context, email, subject string) (string, *domain.User, error)
}
