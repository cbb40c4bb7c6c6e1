package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/session"
)

const bindingKey = "session.*"

// Consumer reads session events from a queue bound to the exchange.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	q    string
}

func NewConsumer(url, exchange, queue string) (*Consumer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	// an empty name gets a server-named exclusive queue per gate host
	exclusive := queue == ""
	qd, err := ch.QueueDeclare(queue, !exclusive, exclusive, exclusive, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(qd.Name, bindingKey, exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	return &Consumer{conn: conn, ch: ch, q: qd.Name}, nil
}

func (c *Consumer) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Run consumes with the given number of workers until ctx is done.
func (c *Consumer) Run(ctx context.Context, workers int, deliver func(context.Context, session.Event)) error {
	if c == nil || c.ch == nil {
		return errors.New("consumer is not initialized")
	}
	if err := c.ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.q, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	logger.Info("session event consumer started", map[string]any{
		"queue":   c.q,
		"workers": workers,
	})
	serve(ctx, workers, msgs, Handler(deliver))
	return nil
}

// acker is the part of amqp.Delivery a worker settles.
type acker interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type message struct {
	body []byte
	ack  acker
}

// Handler decodes a message body and delivers the event. Malformed bodies
// are rejected without requeue; delivery never fails.
func Handler(deliver func(context.Context, session.Event)) func(context.Context, []byte) (requeue bool, err error) {
	return func(ctx context.Context, body []byte) (bool, error) {
		e, err := session.DecodeEvent(body)
		if err != nil {
			return false, err
		}
		deliver(ctx, e)
		return false, nil
	}
}

func serve(ctx context.Context, workers int, msgs <-chan amqp.Delivery, handle func(context.Context, []byte) (bool, error)) {
	in := make(chan message)
	go func() {
		defer close(in)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case in <- message{body: d.Body, ack: d}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	work(ctx, workers, in, handle)
}

func work(ctx context.Context, workers int, in <-chan message, handle func(context.Context, []byte) (bool, error)) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for m := range in {
				requeue, err := handle(ctx, m.body)
				if err != nil {
					logger.Warn("session event rejected", map[string]any{
						"requeue": requeue,
						"error":   err,
					})
					_ = m.ack.Nack(false, requeue)
					continue
				}
				_ = m.ack.Ack(false)
			}
		}()
	}
	wg.Wait()
}
