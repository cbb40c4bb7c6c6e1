package app

import (
	"context"
	"fmt"

	"github.com/yashgoel75/cleit-cdc/internal/config"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/queue"
	"github.com/yashgoel75/cleit-cdc/internal/redis"
	"github.com/yashgoel75/cleit-cdc/internal/session"
)

// eventBus is the configured transport for session events. run feeds
// received events to the hub until ctx is done.
type eventBus struct {
	session.Bus
	run   func(ctx context.Context) error
	close func(context.Context) error
}

func setupEvents(cfg config.Config, rc *redis.Client, hub *session.Hub) (*eventBus, error) {
	switch cfg.EventBus {
	case "local":
		return &eventBus{Bus: hub}, nil

	case "", "redis":
		rb := session.NewRedisBus(rc.Client, session.DefaultChannel)
		return &eventBus{
			Bus: rb,
			run: func(ctx context.Context) error { return rb.Run(ctx, hub.Deliver) },
		}, nil

	case "rabbit":
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, err
		}
		cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue)
		if err != nil {
			_ = pub.Close()
			return nil, err
		}
		return &eventBus{
			Bus: pub,
			run: func(ctx context.Context) error { return cons.Run(ctx, cfg.RabbitWorkers, hub.Deliver) },
			close: func(context.Context) error {
				cons.Close()
				return pub.Close()
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown EVENT_BUS %q", cfg.EventBus)
	}
}

func (b *eventBus) start(ctx context.Context, done func()) {
	if b.run == nil {
		done()
		return
	}
	go func() {
		defer done()
		if err := b.run(ctx); err != nil {
			logger.Error("session event consumer stopped", map[string]any{"error": err.Error()})
		}
	}()
}
