package provider

import (
	"context"

	"github.com/yashgoel75/cleit-cdc/internal/auth"
)

// OAuthProvider is an external login provider. Implementations return
// identity facts only and never create users or sessions.
type OAuthProvider interface {
	Name() string

	// AuthCodeURL returns the authorization URL for the given state and
	// S256 PKCE challenge.
	AuthCodeURL(state, codeChallenge string) string

	ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.Identity, error)
}
