package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
	"github.com/yashgoel75/cleit-cdc/internal/session"
)

func TestIssueVerify(t *testing.T) {
	iss, err := NewIssuer("secret", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := iss.Issue("u1", "a@x.com", ScopeService)
	if err != nil {
		t.Fatal(err)
	}
	c, err := iss.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.Email != "a@x.com" || c.Subject != "u1" || c.Scope != ScopeService {
		t.Fatalf("claims = %+v", c)
	}
}

func TestVerifyRejects(t *testing.T) {
	iss, _ := NewIssuer("secret", time.Minute)
	other, _ := NewIssuer("other", time.Minute)

	foreign, _ := other.Issue("u1", "a@x.com", "")
	if _, err := iss.Verify(context.Background(), foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature err = %v", err)
	}

	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _ := iss.Issue("u1", "a@x.com", "")
	iss.now = time.Now
	if _, err := iss.Verify(context.Background(), stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired err = %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "a@x.com"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := iss.Verify(context.Background(), none); err == nil {
		t.Fatal("alg=none accepted")
	}

	if _, err := NewIssuer("", time.Minute); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestChainVerifier(t *testing.T) {
	a, _ := NewIssuer("a", time.Minute)
	b, _ := NewIssuer("b", time.Minute)
	raw, _ := b.Issue("u", "b@x.com", "")

	c, err := ChainVerifier{nil, a, b}.Verify(context.Background(), raw)
	if err != nil || c.Email != "b@x.com" {
		t.Fatalf("chain = %+v, %v", c, err)
	}
	if _, err := (ChainVerifier{}).Verify(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty chain err = %v", err)
	}
}

func TestSessionProvider(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	iss, _ := NewIssuer("secret", time.Minute)
	_ = store.Create(ctx, session.New("s1", "u1", "a@x.com", time.Now()))

	cred, err := NewSessionProvider(store, iss, "s1").Credential(ctx)
	if err != nil {
		t.Fatal(err)
	}
	c, err := iss.Verify(ctx, string(cred))
	if err != nil || c.Email != "a@x.com" || c.Subject != "u1" {
		t.Fatalf("credential claims = %+v, %v", c, err)
	}

	if _, err := NewSessionProvider(store, iss, "missing").Credential(ctx); !errors.Is(err, gate.ErrToken) {
		t.Fatalf("missing session err = %v", err)
	}

	p := NewSessionProvider(store, iss, "s1")
	p.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := p.Credential(ctx); !errors.Is(err, gate.ErrToken) {
		t.Fatalf("expired session err = %v", err)
	}
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("invalid_client") }

func TestOAuth2Provider(t *testing.T) {
	ctx := context.Background()
	p := &OAuth2Provider{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc"})}
	cred, err := p.Credential(ctx)
	if err != nil || cred != "abc" {
		t.Fatalf("Credential = %q, %v", cred, err)
	}

	p = &OAuth2Provider{Source: failingSource{}}
	if _, err := p.Credential(ctx); !errors.Is(err, gate.ErrToken) {
		t.Fatalf("err = %v", err)
	}
}
