package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yashgoel75/cleit-cdc/internal/auth/provider"
	"github.com/yashgoel75/cleit-cdc/internal/auth/resolver"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/session"
)

// Credentials is the password account store.
type Credentials interface {
	Register(ctx context.Context, email, password string) (userID string, err error)
	Authenticate(ctx context.Context, email, password string) (userID string, err error)
}

// Deps are the collaborators of a Handler. Credentials and Bus are optional.
type Deps struct {
	Providers   *provider.Registry
	Sessions    session.Store
	Resolver    resolver.Resolver
	Credentials Credentials
	Bus         session.Bus
}

// Options control cookies and where a browser lands after OAuth login.
type Options struct {
	Cookies    session.CookieOptions
	AfterLogin string
	LoginPage  string
}

type Handler struct {
	providers   *provider.Registry
	sessions    session.Store
	resolver    resolver.Resolver
	credentials Credentials
	bus         session.Bus
	opts        Options
	now         func() time.Time
}

func NewHandler(deps Deps, opts Options) *Handler {
	if opts.AfterLogin == "" {
		opts.AfterLogin = "/"
	}
	if opts.LoginPage == "" {
		opts.LoginPage = "/auth/login"
	}
	if deps.Providers == nil {
		deps.Providers = provider.NewRegistry()
	}
	return &Handler{
		providers:   deps.Providers,
		sessions:    deps.Sessions,
		resolver:    deps.Resolver,
		credentials: deps.Credentials,
		bus:         deps.Bus,
		opts:        opts,
		now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)
	r.POST("/auth/logout", h.Logout)
	if h.credentials != nil {
		r.POST("/auth/register", h.Register)
		r.POST("/auth/login", h.Login)
	}
}

func (h *Handler) login(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown oauth provider"})
		return
	}

	f, err := h.beginFlow(c)
	if err != nil {
		logger.Error("oauth flow start failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	c.Redirect(http.StatusFound, p.AuthCodeURL(f.state, f.challenge))
}

func (h *Handler) callback(c *gin.Context) {
	name := c.Param("provider")
	p, err := h.providers.Get(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown oauth provider"})
		return
	}

	verifier, ok := h.endFlow(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid state"})
		return
	}

	// The provider reports cancelled or failed consent as an error param.
	if e := c.Query("error"); e != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": name,
			"error":    e,
			"desc":     c.Query("error_description"),
		})
		c.Redirect(http.StatusFound, h.opts.LoginPage)
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	if verifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing pkce verifier"})
		return
	}

	ctx := c.Request.Context()
	identity, err := p.ExchangeCode(ctx, code, verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	userID, err := h.resolver.Resolve(ctx, identity)
	if err != nil {
		logger.Error("identity resolution failed", map[string]any{
			"provider": name,
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	if _, ok := h.startSession(c, userID, identity.Email); !ok {
		return
	}
	logger.Info("login succeeded", map[string]any{
		"user_id":  userID,
		"provider": name,
		"ip":       c.ClientIP(),
	})
	c.Redirect(http.StatusFound, h.opts.AfterLogin)
}

// Logout ends the session, if any, and always clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if sid, ok := session.IDFromRequest(c.Request); ok {
		if err := h.sessions.Delete(ctx, sid); err != nil {
			logger.Warn("session delete failed", map[string]any{"error": err.Error()})
		}
		session.Emit(ctx, h.bus, session.Event{
			Kind:      session.EventEnded,
			SessionID: sid,
			At:        h.now().UTC(),
		})
		logger.Info("logout", map[string]any{"ip": c.ClientIP()})
	}

	session.ClearCookie(c.Writer, h.opts.Cookies)
	c.Status(http.StatusNoContent)
}

// startSession stores a new session, sets its cookie and announces it. On
// failure it writes the error response and returns false.
func (h *Handler) startSession(c *gin.Context, userID, email string) (session.Session, bool) {
	sid, err := session.GenerateID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return session.Session{}, false
	}

	ctx := c.Request.Context()
	sess := session.New(sid, userID, email, h.now())
	if err := h.sessions.Create(ctx, sess); err != nil {
		logger.Error("session create failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
		return session.Session{}, false
	}

	session.SetCookie(c.Writer, sid, sess.AbsoluteExpiresAt, h.opts.Cookies)
	session.Emit(ctx, h.bus, session.Event{
		Kind:      session.EventStarted,
		SessionID: sid,
		Email:     email,
		At:        sess.CreatedAt.UTC(),
	})
	return sess, true
}
