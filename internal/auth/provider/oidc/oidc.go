package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/yashgoel75/cleit-cdc/internal/auth"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

const GoogleIssuer = "https://accounts.google.com"

// Config describes one OpenID Connect login provider.
type Config struct {
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// AuthURL replaces the discovered authorization endpoint. Keycloak
	// behind a proxy advertises an internal host the browser cannot reach.
	AuthURL string

	Scopes []string
}

// Google configures the Google provider.
func Google(clientID, clientSecret, redirectURL string) Config {
	return Config{
		Name:         "google",
		Issuer:       GoogleIssuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
	}
}

// Keycloak configures a Keycloak realm. publicBaseURL is the externally
// reachable Keycloak root, e.g. http://localhost:8081.
func Keycloak(issuer, clientID, redirectURL, publicBaseURL string) Config {
	cfg := Config{
		Name:        "keycloak",
		Issuer:      issuer,
		ClientID:    clientID,
		RedirectURL: redirectURL,
	}
	if publicBaseURL != "" {
		if i := strings.Index(issuer, "/realms/"); i >= 0 {
			cfg.AuthURL = strings.TrimRight(publicBaseURL, "/") + issuer[i:] + "/protocol/openid-connect/auth"
		}
	}
	return cfg
}

// Enabled reports whether the provider has enough configuration to start.
func (c Config) Enabled() bool {
	return c.Issuer != "" && c.ClientID != "" && c.RedirectURL != ""
}

// Provider implements provider.OAuthProvider for any OIDC issuer.
type Provider struct {
	name     string
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

// New runs discovery against cfg.Issuer.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Name == "" || !cfg.Enabled() {
		return nil, fmt.Errorf("%s oauth config missing required fields", cfg.Name)
	}

	op, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", cfg.Name, err)
	}

	ep := op.Endpoint()
	if cfg.AuthURL != "" {
		ep.AuthURL = cfg.AuthURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	return &Provider{
		name: cfg.Name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       scopes,
		},
		verifier: op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		logger.Error("oidc token exchange failed", map[string]any{
			"provider": p.name,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%s did not return id_token", p.name)
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
	}
	id, err := claims.identity(p.name)
	if err != nil {
		return nil, err
	}

	logger.Info("oidc verified", map[string]any{
		"provider":       p.name,
		"issuer":         idToken.Issuer,
		"email_verified": id.EmailVerified,
		"expiry_unix":    idToken.Expiry.Unix(),
	})
	return id, nil
}

type idClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
}

func (c idClaims) identity(provider string) (*auth.Identity, error) {
	if c.Subject == "" || c.Email == "" {
		return nil, errors.New(provider + " id_token missing required claims")
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	if name == "" {
		name = c.PreferredUsername
	}
	return &auth.Identity{
		Provider:       provider,
		ProviderUserID: c.Subject,
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		Name:           name,
	}, nil
}
