package session

import (
	"context"
	"time"
)

// DefaultLifetime is the absolute lifetime of a new session.
const DefaultLifetime = 24 * time.Hour

// Session represents an authenticated user session. Email is the identity
// the gate observes for this session.
type Session struct {
	SessionID         string
	UserID            string
	Email             string
	CreatedAt         time.Time
	AbsoluteExpiresAt time.Time
	ExpiresAt         time.Time
}

// New builds a session starting now for the given user.
func New(sessionID, userID, email string, now time.Time) Session {
	exp := now.Add(DefaultLifetime)
	return Session{
		SessionID:         sessionID,
		UserID:            userID,
		Email:             email,
		CreatedAt:         now,
		AbsoluteExpiresAt: exp,
		ExpiresAt:         exp,
	}
}

// Active reports whether the session is usable at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved. Get returns nil and
// no error for an unknown session.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
