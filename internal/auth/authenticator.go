package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	jwtgo "github.com/golang-jwt/jwt/v4"
	"github.com/stellar/go-stellar-sdk/support/log"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type claims struct {
	Capabilities []Capability `json:"capabilities"`
	Active       bool         `json:"active"`
	jwtgo.RegisteredClaims
}

//go:generate mockery --name=AuthenticatorInterface --case=underscore --structname=MockAuthenticator
type AuthenticatorInterface interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// Authenticator validates ES256 bearer tokens. Validated principals are cached by token until the token expires.
type Authenticator struct {
	publicKey  *ecdsa.PublicKey
	privateKey *ecdsa.PrivateKey
	cache      *ristretto.Cache
	now        func() time.Time
}

type AuthenticatorOption func(a *Authenticator) error

// WithPrivateKey enables token generation. Servers only need the public key.
func WithPrivateKey(privateKeyPEM string) AuthenticatorOption {
	return func(a *Authenticator) error {
		key, err := jwtgo.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
		if err != nil {
			return fmt.Errorf("parsing EC private key: %w", err)
		}
		a.privateKey = key
		return nil
	}
}

func withClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) error {
		a.now = now
		return nil
	}
}

func NewAuthenticator(publicKeyPEM string, opts ...AuthenticatorOption) (*Authenticator, error) {
	publicKey, err := jwtgo.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing EC public key: %w", err)
	}

	a := &Authenticator{publicKey: publicKey, now: time.Now}
	for _, opt := range opts {
		if err = opt(a); err != nil {
			return nil, err
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		log.Errorf("creating principal cache: %v", err)
	} else {
		a.cache = cache
	}

	return a, nil
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	if a.cache != nil {
		if cached, found := a.cache.Get(token); found {
			if principal, ok := cached.(*Principal); ok && a.now().Before(principal.ExpiresAt) {
				return principal, nil
			}
		}
	}

	c := &claims{}
	parser := jwtgo.Parser{ValidMethods: []string{jwtgo.SigningMethodES256.Alg()}}
	_, err := parser.ParseWithClaims(token, c, func(*jwtgo.Token) (interface{}, error) {
		return a.publicKey, nil
	})
	if err != nil {
		var vErr *jwtgo.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&jwtgo.ValidationErrorExpired != 0 {
			return nil, ErrExpiredToken
		}
		log.Ctx(ctx).Debugf("rejecting bearer token: %v", err)
		return nil, ErrInvalidToken
	}
	if c.Subject == "" || c.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	principal := &Principal{
		ID:           c.Subject,
		Capabilities: c.Capabilities,
		ExpiresAt:    c.ExpiresAt.Time,
		Active:       c.Active,
	}

	if a.cache != nil {
		if ttl := principal.ExpiresAt.Sub(a.now()); ttl > 0 {
			a.cache.SetWithTTL(token, principal, 1, ttl)
			a.cache.Wait()
		}
	}
	return principal, nil
}

// GenerateToken signs a token for principal. It is used by the operator CLI to issue development credentials.
func (a *Authenticator) GenerateToken(principal Principal) (string, error) {
	if a.privateKey == nil {
		return "", errors.New("authenticator has no private key")
	}
	if principal.ID == "" {
		return "", errors.New("principal ID is required")
	}

	c := &claims{
		Capabilities: principal.Capabilities,
		Active:       principal.Active,
		RegisteredClaims: jwtgo.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwtgo.NewNumericDate(a.now()),
			ExpiresAt: jwtgo.NewNumericDate(principal.ExpiresAt),
		},
	}

	tokenString, err := jwtgo.NewWithClaims(jwtgo.SigningMethodES256, c).SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return tokenString, nil
}

var _ AuthenticatorInterface = (*Authenticator)(nil)
