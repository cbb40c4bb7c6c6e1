package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeService lets a bearer read any profile.
const ScopeService = "service"

// DefaultTTL is the lifetime of an issued credential.
const DefaultTTL = 5 * time.Minute

var ErrInvalidToken = errors.New("token: invalid")

type Claims struct {
	Email string `json:"email"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// Issuer mints and verifies short-lived HS256 credentials.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(subject, email, scope string) (string, error) {
	now := i.now()
	c := Claims{
		Email: email,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Verify(_ context.Context, raw string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Email == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// ChainVerifier accepts a token if any verifier does.
type ChainVerifier []Verifier

func (c ChainVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	err := error(ErrInvalidToken)
	for _, v := range c {
		if v == nil {
			continue
		}
		claims, verr := v.Verify(ctx, raw)
		if verr == nil {
			return claims, nil
		}
		err = verr
	}
	return nil, err
}
