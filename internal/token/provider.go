package token

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
	"github.com/yashgoel75/cleit-cdc/internal/session"
)

// SessionProvider mints a credential for the identity behind one session.
// Every call re-reads the session, so a signed-out session stops yielding
// credentials at once.
type SessionProvider struct {
	Sessions  session.Store
	Issuer    *Issuer
	SessionID string

	now func() time.Time
}

func NewSessionProvider(store session.Store, issuer *Issuer, sessionID string) *SessionProvider {
	return &SessionProvider{Sessions: store, Issuer: issuer, SessionID: sessionID, now: time.Now}
}

func (p *SessionProvider) Credential(ctx context.Context) (gate.Credential, error) {
	sess, err := p.Sessions.Get(ctx, p.SessionID)
	if err != nil {
		return "", fmt.Errorf("%w: load session: %w", gate.ErrToken, err)
	}
	if sess == nil {
		return "", fmt.Errorf("%w: no active session", gate.ErrToken)
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	if now().After(sess.ExpiresAt) {
		return "", fmt.Errorf("%w: session expired", gate.ErrToken)
	}

	raw, err := p.Issuer.Issue(sess.UserID, sess.Email, "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", gate.ErrToken, err)
	}
	return gate.Credential(raw), nil
}

// OAuth2Provider hands out access tokens from an oauth2.TokenSource.
type OAuth2Provider struct {
	Source oauth2.TokenSource
}

// NewClientCredentials returns a provider backed by the client credentials
// grant against tokenURL.
func NewClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret string, scopes ...string) *OAuth2Provider {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &OAuth2Provider{Source: cfg.TokenSource(ctx)}
}

func (p *OAuth2Provider) Credential(ctx context.Context) (gate.Credential, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", gate.ErrToken, err)
	}
	tok, err := p.Source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", gate.ErrToken, err)
	}
	if !tok.Valid() {
		return "", fmt.Errorf("%w: token source returned an invalid token", gate.ErrToken)
	}
	return gate.Credential(tok.AccessToken), nil
}
