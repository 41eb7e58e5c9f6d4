package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// HMACService signs tokens with a process-wide shared secret (HS256)
type HMACService struct {
	signer
	secret []byte
}

func NewHMACService(secret string, opts ...Option) (*HMACService, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret required")
	}
	return &HMACService{
		signer: newSigner(jwt.SigningMethodHS256, "", opts),
		secret: []byte(secret),
	}, nil
}

func (s *HMACService) Issue(user *domain.User) (string, error) {
	return s.sign(user, s.secret)
}

func (s *HMACService) Verify(token string) (*domain.Identity, error) {
	return s.parse(token, s.secret)
}

var _ ports.TokenService = (*HMACService)(nil)
