package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// IssuerService trusts RS256 tokens minted by a named external issuer.
// Issue is only available when the issuer's private key is held locally.
type IssuerService struct {
	signer
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

func NewIssuerService(issuer string, public *rsa.PublicKey, private *rsa.PrivateKey, opts ...Option) (*IssuerService, error) {
	if issuer == "" {
		return nil, errors.New("token: issuer required")
	}
	if public == nil {
		return nil, errors.New("token: issuer public key required")
	}
	return &IssuerService{
		signer:  newSigner(jwt.SigningMethodRS256, issuer, opts),
		public:  public,
		private: private,
	}, nil
}

// LoadIssuerService reads PEM encoded keys from disk. privateKeyFile may be empty.
func LoadIssuerService(issuer, publicKeyFile, privateKeyFile string, opts ...Option) (*IssuerService, error) {
	pemBytes, err := os.ReadFile(publicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("token: read public key: %w", err)
	}
	public, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("token: parse public key: %w", err)
	}

	var private *rsa.PrivateKey
	if privateKeyFile != "" {
		pemBytes, err := os.ReadFile(privateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("token: read private key: %w", err)
		}
		private, err = jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("token: parse private key: %w", err)
		}
	}

	return NewIssuerService(issuer, public, private, opts...)
}

func (s *IssuerService) Issue(user *domain.User) (string, error) {
	if s.private == nil {
		return "", domain.NewError(domain.KindInternal, "token issuing is delegated to "+s.issuer)
	}
	return s.sign(user, s.private)
}

func (s *IssuerService) Verify(token string) (*domain.Identity, error) {
	return s.parse(token, s.public)
}

var _ ports.TokenService = (*IssuerService)(nil)
