package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yashgoel75/cleit-cdc/internal/session"
)

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func TestPublisherPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: DefaultExchange}

	err := p.Publish(context.Background(), session.Event{Kind: session.EventEnded, SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if ch.exchange != "auth.events" || ch.key != "session.ended" {
		t.Fatalf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.MessageId == "" || ch.msg.ContentType != "application/json" {
		t.Fatalf("publishing = %+v", ch.msg)
	}
	var e session.Event
	if err := json.Unmarshal(ch.msg.Body, &e); err != nil || e.SessionID != "s1" {
		t.Fatalf("body = %s", ch.msg.Body)
	}

	if err := p.Publish(context.Background(), session.Event{Kind: session.EventStarted}); err == nil {
		t.Fatal("invalid event published")
	}
}

type fakeAck struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAck) Ack(bool) error {
	f.mu.Lock()
	f.acked++
	f.mu.Unlock()
	return nil
}

func (f *fakeAck) Nack(_, requeue bool) error {
	f.mu.Lock()
	f.nacked++
	f.requeue = requeue
	f.mu.Unlock()
	return nil
}

func TestWorkersAckAndReject(t *testing.T) {
	var mu sync.Mutex
	var got []session.Event
	handle := Handler(func(_ context.Context, e session.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	good, bad := &fakeAck{}, &fakeAck{}
	in := make(chan message, 3)
	in <- message{body: []byte(`{"kind":"started","session_id":"s1"}`), ack: good}
	in <- message{body: []byte(`{"kind":"profile_changed","email":"a@x.com"}`), ack: good}
	in <- message{body: []byte(`{nope`), ack: bad}
	close(in)

	work(context.Background(), 3, in, handle)

	if len(got) != 2 {
		t.Fatalf("delivered %d events", len(got))
	}
	if good.acked != 2 || good.nacked != 0 {
		t.Fatalf("good acked=%d nacked=%d", good.acked, good.nacked)
	}
	if bad.nacked != 1 || bad.requeue {
		t.Fatalf("bad nacked=%d requeue=%v", bad.nacked, bad.requeue)
	}
}

func TestRoutingKey(t *testing.T) {
	if RoutingKey(session.EventProfileChanged) != "session.profile_changed" {
		t.Fatal(RoutingKey(session.EventProfileChanged))
	}
}
