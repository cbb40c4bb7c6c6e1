package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yashgoel75/cleit-cdc/internal/auth"
	"github.com/yashgoel75/cleit-cdc/internal/auth/credentials"
	"github.com/yashgoel75/cleit-cdc/internal/auth/provider"
	"github.com/yashgoel75/cleit-cdc/internal/session"
)

type fakeProvider struct {
	gotVerifier string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthCodeURL(state, challenge string) string {
	return "https://idp.test/auth?state=" + url.QueryEscape(state) + "&code_challenge=" + url.QueryEscape(challenge)
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, verifier string) (*auth.Identity, error) {
	p.gotVerifier = verifier
	if code != "good" {
		return nil, errors.New("bad code")
	}
	return &auth.Identity{Provider: "fake", ProviderUserID: "sub-1", Email: "ada@x.com", Name: "Ada"}, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, id *auth.Identity) (string, error) {
	return "user-" + id.ProviderUserID, nil
}

type fakeCredentials struct {
	users map[string]string
}

func (f *fakeCredentials) Register(_ context.Context, email, password string) (string, error) {
	if len(password) < credentials.MinPasswordLength {
		return "", credentials.ErrPasswordTooShort
	}
	if _, ok := f.users[email]; ok {
		return "", credentials.ErrAlreadyRegistered
	}
	f.users[email] = password
	return "user-" + email, nil
}

func (f *fakeCredentials) Authenticate(_ context.Context, email, password string) (string, error) {
	if pw, ok := f.users[email]; !ok || pw != password {
		return "", credentials.ErrInvalidCredentials
	}
	return "user-" + email, nil
}

type busRecorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (b *busRecorder) Publish(_ context.Context, e session.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *busRecorder) kinds() []session.EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []session.EventKind
	for _, e := range b.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	router   *gin.Engine
	sessions *session.MemoryStore
	bus      *busRecorder
	idp      *fakeProvider
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		sessions: session.NewMemoryStore(),
		bus:      &busRecorder{},
		idp:      &fakeProvider{},
	}
	h := NewHandler(Deps{
		Providers:   provider.NewRegistry(f.idp),
		Sessions:    f.sessions,
		Resolver:    fakeResolver{},
		Credentials: &fakeCredentials{users: map[string]string{}},
		Bus:         f.bus,
	}, Options{Cookies: session.DefaultCookieOptions(false), AfterLogin: "/dashboard"})
	f.router = gin.New()
	h.RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestOAuthLoginAndCallback(t *testing.T) {
	f := newFixture()

	w := f.do(httptest.NewRequest(http.MethodGet, "/oauth/login/fake", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("login code = %d", w.Code)
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	state := loc.Query().Get("state")
	stateCookie, pkce := cookie(w, stateCookieName), cookie(w, pkceCookieName)
	if state == "" || stateCookie == nil || pkce == nil || stateCookie.Value != state {
		t.Fatalf("flow cookies not set: %v", w.Result().Cookies())
	}
	if loc.Query().Get("code_challenge") != pkceChallenge(pkce.Value) {
		t.Fatal("challenge does not match verifier")
	}

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback/fake?code=good&state="+url.QueryEscape(state), nil)
	req.AddCookie(stateCookie)
	req.AddCookie(pkce)
	w = f.do(req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("callback = %d %q: %s", w.Code, w.Header().Get("Location"), w.Body.String())
	}
	if f.idp.gotVerifier != pkce.Value {
		t.Fatal("verifier not passed to exchange")
	}

	sc := cookie(w, session.CookieName)
	if sc == nil {
		t.Fatal("no session cookie")
	}
	sess, _ := f.sessions.Get(context.Background(), sc.Value)
	if sess == nil || sess.Email != "ada@x.com" || sess.UserID != "user-sub-1" {
		t.Fatalf("session = %+v", sess)
	}
	if k := f.bus.kinds(); len(k) != 1 || k[0] != session.EventStarted {
		t.Fatalf("events = %v", k)
	}
}

func TestCallbackRejectsBadState(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback/fake?code=good&state=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "xyz"})
	if w := f.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestCallbackProviderErrorGoesToLogin(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback/fake?error=access_denied&state=abc", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "abc"})
	w := f.do(req)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth/login" {
		t.Fatalf("callback = %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestUnknownProvider(t *testing.T) {
	f := newFixture()
	if w := f.do(httptest.NewRequest(http.MethodGet, "/oauth/login/nope", nil)); w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", w.Code)
	}
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPasswordRegisterLoginLogout(t *testing.T) {
	f := newFixture()

	w := f.do(jsonReq(http.MethodPost, "/auth/register", `{"email":"b@x.com","password":"short"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password = %d", w.Code)
	}

	w = f.do(jsonReq(http.MethodPost, "/auth/register", `{"email":"b@x.com","password":"longenough"}`))
	if w.Code != http.StatusCreated || cookie(w, session.CookieName) == nil {
		t.Fatalf("register = %d", w.Code)
	}
	if w = f.do(jsonReq(http.MethodPost, "/auth/register", `{"email":"b@x.com","password":"longenough"}`)); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d", w.Code)
	}

	if w = f.do(jsonReq(http.MethodPost, "/auth/login", `{"email":"b@x.com","password":"wrongpass"}`)); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", w.Code)
	}
	w = f.do(jsonReq(http.MethodPost, "/auth/login", `{"email":"b@x.com","password":"longenough"}`))
	sc := cookie(w, session.CookieName)
	if w.Code != http.StatusOK || sc == nil {
		t.Fatalf("login = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(sc)
	w = f.do(req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", w.Code)
	}
	if c := cookie(w, session.CookieName); c == nil || c.MaxAge >= 0 {
		t.Fatal("cookie not cleared")
	}
	if s, _ := f.sessions.Get(context.Background(), sc.Value); s != nil {
		t.Fatal("session survived logout")
	}

	want := []session.EventKind{session.EventStarted, session.EventStarted, session.EventEnded}
	got := f.bus.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v", got)
		}
	}
}

func TestLogoutWithoutSessionIsIdempotent(t *testing.T) {
	f := newFixture()
	if w := f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("code = %d", w.Code)
	}
	if len(f.bus.kinds()) != 0 {
		t.Fatal("event published without a session")
	}
}
