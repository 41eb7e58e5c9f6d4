package services

import (
	"context"
	"errors"
	"strings"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	"golang.org/x/crypto/bcrypt"
)

const externalCredentialPrefix = "external:"

type AccountService struct {
	store  ports.Store
	tokens ports.TokenService
	cost   int
}

func NewAccountService(store ports.Store, tokens ports.TokenService) *AccountService {
	return &AccountService{store: store, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *AccountService) Signup(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, domain.NewError(domain.KindValidation, "email and password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", nil, domain.Wrap(err, domain.KindValidation, "unusable password")
	}

	if _, err := s.store.CreateUser(ctx, email, string(hash)); err != nil {
		return "", nil, err
	}

	return s.issueFor(ctx, email)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, domain.NewError(domain.KindValidation, "email and password required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.NewError(domain.KindUnauthorized, "invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}

	if strings.HasPrefix(user.Credential, externalCredentialPrefix) {
		return "", nil, domain.NewError(domain.KindUnauthorized, "account uses external sign-in")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Credential), []byte(password)); err != nil {
		return "", nil, domain.NewError(domain.KindUnauthorized, "invalid email or password")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// LoginExternal signs in a user whose identity was established by an external provider,
// creating the user on first sight.
func (s *AccountService) LoginExternal(ctx context.Context, email, subject string) (string, *domain.User, error) {
	if email == "" || subject == "" {
		return "", nil, domain.NewError(domain.KindValidation, "external identity incomplete")
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		_, err = s.store.CreateUser(ctx, email, externalCredentialPrefix+subject)
		// lost a race with a concurrent first login
		if errors.Is(err, domain.ErrDuplicateEmail) {
			err = nil
		}
	}
	if err != nil {
		return "", nil, err
	}

	return s.issueFor(ctx, email)
}

func (s *AccountService) issueFor(ctx context.Context, email string) (string, *domain.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

var _ ports.AccountService = (*AccountService)(nil)
