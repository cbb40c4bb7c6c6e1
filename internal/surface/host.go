package surface

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/session"
	"github.com/yashgoel75/cleit-cdc/internal/token"
)

// Config carries the gate settings every mounted surface uses. A policy
// without a signed-out location keeps its preset.
type Config struct {
	Layout   gate.Policy
	Greeting gate.Policy

	ResolveTimeout time.Duration
	OnTokenError   gate.FailureMode
	OnFetchError   gate.FailureMode

	// CheckOrigin overrides the same-origin check of the upgrader.
	CheckOrigin func(r *http.Request) bool
}

// Deps are the collaborators of a Host.
type Deps struct {
	Hub      *session.Hub
	Sessions session.Store
	Bus      session.Bus
	Issuer   *token.Issuer
	Profiles gate.ProfileFetcher
	Recorder gate.Recorder
}

// Host mounts one guarded surface per browser websocket.
type Host struct {
	deps     Deps
	cfg      Config
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
}

func NewHost(deps Deps, cfg Config) *Host {
	return &Host{
		deps: deps,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		conns: make(map[*conn]struct{}),
	}
}

func (h *Host) RegisterRoutes(r gin.IRouter) {
	r.GET("/surface/ws", h.serve)
}

func (h *Host) serve(c *gin.Context) {
	kind := c.DefaultQuery("kind", gate.KindLayout)
	if kind != gate.KindLayout && kind != gate.KindGreeting {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown surface kind"})
		return
	}
	location := c.DefaultQuery("path", "/")
	sessionID, _ := session.IDFromRequest(c.Request)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debug("surface upgrade failed", map[string]any{"error": err})
		return
	}
	cn := newConn(ws)
	go cn.writeLoop()

	s := gate.NewSurface(h.options(kind, sessionID, cn))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if err := s.Mount(ctx, location); err != nil {
		logger.Warn("surface mount failed", map[string]any{
			"kind":  kind,
			"error": err,
		})
		cn.close()
		return
	}

	h.track(cn)
	defer h.untrack(cn)

	cn.readLoop(func(f clientFrame) {
		switch f.Type {
		case frameNavigate:
			s.Navigate(f.Path)
		case frameSignOut:
			h.signOut(ctx, sessionID)
		default:
			logger.Debug("surface frame ignored", map[string]any{"type": f.Type})
		}
	})

	s.Close()
	cn.close()
}

func (h *Host) options(kind, sessionID string, cn *conn) gate.Options {
	res := &gate.Resolver{
		Tokens:       token.NewSessionProvider(h.deps.Sessions, h.deps.Issuer, sessionID),
		Profiles:     h.deps.Profiles,
		Timeout:      h.cfg.ResolveTimeout,
		OnTokenError: h.cfg.OnTokenError,
		OnFetchError: h.cfg.OnFetchError,
		Recorder:     h.deps.Recorder,
	}
	src := h.deps.Hub.Source(sessionID)
	nav := gate.NavigatorFunc(func(path string) {
		cn.send(serverFrame{Type: frameRedirect, Path: path})
	})

	var opts gate.Options
	if kind == gate.KindGreeting {
		opts = gate.GreetingOptions(src, res, nav, func(st gate.GateState) {
			cn.send(serverFrame{Type: frameGreeting, Text: gate.Greeting(st)})
		})
		if h.cfg.Greeting.Locations.SignedOut != "" {
			opts.Policy = h.cfg.Greeting
		}
	} else {
		opts = gate.LayoutOptions(src, res, nav)
		if h.cfg.Layout.Locations.SignedOut != "" {
			opts.Policy = h.cfg.Layout
		}
	}
	opts.OnChange = func(st gate.GateState) { cn.send(stateOf(st)) }
	opts.Recorder = h.deps.Recorder
	return opts
}

// signOut ends the session and tells every surface watching it.
func (h *Host) signOut(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := h.deps.Sessions.Delete(ctx, sessionID); err != nil {
		logger.Error("surface sign-out failed", map[string]any{"error": err})
	}

	ended := session.Event{Kind: session.EventEnded, SessionID: sessionID, At: time.Now().UTC()}
	h.deps.Hub.Deliver(ctx, ended)
	if h.deps.Bus != nil && h.deps.Bus != session.Bus(h.deps.Hub) {
		session.Emit(ctx, h.deps.Bus, ended)
	}
}

func (h *Host) track(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Host) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Active returns the number of open surface connections.
func (h *Host) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every open connection. Their surfaces close as the read
// loops return.
func (h *Host) Shutdown() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
