package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

const lookupTimeout = 2 * time.Second

// Hub fans session events out to the gate surfaces watching each session.
// A new subscriber immediately receives the session's current identity.
type Hub struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	next   uint64
	topics map[string]*topic
}

type topic struct {
	email string
	subs  map[uint64]func(gate.Notification)
}

func NewHub(store Store) *Hub {
	return &Hub{
		store:  store,
		now:    time.Now,
		topics: make(map[string]*topic),
	}
}

// Source returns the identity source for one session.
func (h *Hub) Source(sessionID string) gate.IdentitySource {
	return hubSource{hub: h, sessionID: sessionID}
}

type hubSource struct {
	hub       *Hub
	sessionID string
}

func (s hubSource) Subscribe(fn func(gate.Notification)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("session: nil subscriber")
	}
	h := s.hub

	h.mu.Lock()
	t, ok := h.topics[s.sessionID]
	if !ok {
		t = &topic{subs: make(map[uint64]func(gate.Notification))}
		h.topics[s.sessionID] = t
	}
	h.next++
	id := h.next
	t.subs[id] = fn
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	fn(h.lookup(ctx, s.sessionID))

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(s.sessionID, id) })
	}, nil
}

func (h *Hub) remove(sessionID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[sessionID]
	if !ok {
		return
	}
	delete(t.subs, id)
	if len(t.subs) == 0 {
		delete(h.topics, sessionID)
	}
}

// Subscribers returns the number of live subscriptions for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[sessionID]; ok {
		return len(t.subs)
	}
	return 0
}

// Publish delivers e in process. It lets the Hub act as a Bus when no
// broker is configured.
func (h *Hub) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	h.Deliver(ctx, e)
	return nil
}

// Deliver notifies the subscribers an event concerns.
func (h *Hub) Deliver(ctx context.Context, e Event) {
	switch e.Kind {
	case EventEnded:
		h.notify(e.SessionID, gate.Notification{})
	case EventStarted:
		h.notify(e.SessionID, h.lookup(ctx, e.SessionID))
	case EventProfileChanged:
		if e.SessionID != "" {
			h.notify(e.SessionID, h.lookup(ctx, e.SessionID))
			return
		}
		for _, sid := range h.sessionsFor(e.Email) {
			h.notify(sid, h.lookup(ctx, sid))
		}
	}
}

func (h *Hub) sessionsFor(email string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for sid, t := range h.topics {
		if t.email != "" && strings.EqualFold(t.email, email) {
			out = append(out, sid)
		}
	}
	return out
}

func (h *Hub) notify(sessionID string, n gate.Notification) {
	h.mu.Lock()
	t, ok := h.topics[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	fns := make([]func(gate.Notification), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

func (h *Hub) lookup(ctx context.Context, sessionID string) gate.Notification {
	if sessionID == "" {
		return gate.Notification{}
	}
	sess, err := h.store.Get(ctx, sessionID)
	if err != nil {
		logger.Warn("session lookup failed", map[string]any{"error": err})
		return gate.Notification{Err: fmt.Errorf("%w: %w", gate.ErrSubscription, err)}
	}
	if !sess.Active(h.now()) || sess.Email == "" {
		return gate.Notification{}
	}

	h.mu.Lock()
	if t, ok := h.topics[sessionID]; ok {
		t.email = sess.Email
	}
	h.mu.Unlock()

	return gate.Notification{Identity: &gate.Identity{Email: sess.Email}}
}
