package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// OIDCVerifier accepts ID tokens from an external OpenID provider. Its
// claims never carry a scope: only the internal Issuer grants ScopeService.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	if issuer == "" || clientID == "" {
		return nil, errors.New("token: oidc verifier needs issuer and client id")
	}
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("token: oidc discovery: %w", err)
	}
	return newOIDCVerifier(p.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func newOIDCVerifier(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %w", ErrInvalidToken, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: unverified email", ErrInvalidToken)
	}

	return &Claims{
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    idToken.Issuer,
			Subject:   idToken.Subject,
			Audience:  idToken.Audience,
			ExpiresAt: jwt.NewNumericDate(idToken.Expiry),
			IssuedAt:  jwt.NewNumericDate(idToken.IssuedAt),
		},
	}, nil
}
