// Package token issues and verifies the bearer tokens presented on authenticated requests.
// Verification never touches storage: identity and expiry travel inside the signed token.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = 7 * 24 * time.Hour

// Claims binds a token to a user id (subject) and email
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Option func(*signer)

// WithClock replaces time.Now for issuing and verifying
func WithClock(now func() time.Time) Option {
	return func(s *signer) { s.now = now }
}

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(s *signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// signer holds what both token variants share
type signer struct {
	method jwt.SigningMethod
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func newSigner(method jwt.SigningMethod, issuer string, opts []Option) signer {
	s := signer{method: method, issuer: issuer, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *signer) sign(user *domain.User, key interface{}) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("token: user id required")
	}
	now := s.now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(key)
}

func (s *signer) parse(tokenString string, key interface{}) (*domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, domain.Wrap(err, domain.KindInvalidToken, "invalid token")
	}
	if claims.Subject == "" {
		return nil, domain.NewError(domain.KindInvalidToken, "token has no subject")
	}

	return &domain.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
