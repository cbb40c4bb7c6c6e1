package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

type EventKind string

const (
	EventStarted        EventKind = "started"
	EventEnded          EventKind = "ended"
	EventProfileChanged EventKind = "profile_changed"
)

// Event is a session change published by the identity provider side.
// Profile changes are keyed by Email and carry no session id.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	At        time.Time `json:"at"`
}

func (e Event) Validate() error {
	switch e.Kind {
	case EventStarted, EventEnded:
		if e.SessionID == "" {
			return fmt.Errorf("session: %s event without session id", e.Kind)
		}
	case EventProfileChanged:
		if e.Email == "" && e.SessionID == "" {
			return errors.New("session: profile_changed event without email")
		}
	default:
		return fmt.Errorf("session: unknown event kind %q", e.Kind)
	}
	return nil
}

// DecodeEvent parses and validates a JSON event.
func DecodeEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("session: decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Bus publishes session events to every gate host.
type Bus interface {
	Publish(ctx context.Context, e Event) error
}

// Emit stamps and publishes e, logging instead of failing. A nil bus drops
// the event.
func Emit(ctx context.Context, bus Bus, e Event) {
	if bus == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := bus.Publish(ctx, e); err != nil {
		logger.Warn("session event publish failed", map[string]any{
			"kind":  string(e.Kind),
			"error": err,
		})
	}
}

const DefaultChannel = "session-events"

// RedisBus carries events over Redis pub/sub.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisBus(client redis.UniversalClient, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("session: encode event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, body).Err()
}

// Run delivers every event received on the channel until ctx is done.
func (b *RedisBus) Run(ctx context.Context, deliver func(context.Context, Event)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("session: subscribe %s: %w", b.channel, err)
	}
	logger.Info("session event bus subscribed", map[string]any{"channel": b.channel})

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			e, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				logger.Warn("session event dropped", map[string]any{"error": err})
				continue
			}
			deliver(ctx, e)
		}
	}
}
