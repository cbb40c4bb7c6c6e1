package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yashgoel75/cleit-cdc/internal/gate"
)

type recorder struct {
	mu   sync.Mutex
	seen []gate.Notification
}

func (r *recorder) fn(n gate.Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func (r *recorder) all() []gate.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gate.Notification(nil), r.seen...)
}

type failingStore struct{ MemoryStore }

func (*failingStore) Get(context.Context, string) (*Session, error) {
	return nil, errors.New("redis: connection refused")
}

func seed(t *testing.T, store *MemoryStore, sid, email string) {
	t.Helper()
	if err := store.Create(context.Background(), New(sid, "u-"+sid, email, time.Now())); err != nil {
		t.Fatal(err)
	}
}

func TestHubDeliversCurrentIdentityOnSubscribe(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, "s1", "a@x.com")
	hub := NewHub(store)

	var rec recorder
	unsub, err := hub.Source("s1").Subscribe(rec.fn)
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	got := rec.all()
	if len(got) != 1 || got[0].Identity == nil || got[0].Identity.Email != "a@x.com" {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestHubUnknownSessionIsSignedOut(t *testing.T) {
	hub := NewHub(NewMemoryStore())
	var rec recorder
	unsub, _ := hub.Source("missing").Subscribe(rec.fn)
	defer unsub()

	got := rec.all()
	if len(got) != 1 || got[0].Identity != nil || got[0].Err != nil {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestHubStoreErrorIsSubscriptionError(t *testing.T) {
	hub := NewHub(&failingStore{})
	var rec recorder
	unsub, _ := hub.Source("s1").Subscribe(rec.fn)
	defer unsub()

	got := rec.all()
	if len(got) != 1 || !errors.Is(got[0].Err, gate.ErrSubscription) {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestHubEventsAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed(t, store, "s1", "a@x.com")
	seed(t, store, "s2", "b@x.com")
	hub := NewHub(store)

	var r1, r2 recorder
	unsub1, _ := hub.Source("s1").Subscribe(r1.fn)
	unsub2, _ := hub.Source("s2").Subscribe(r2.fn)
	defer unsub2()

	if err := hub.Publish(ctx, Event{Kind: EventProfileChanged, Email: "A@x.com"}); err != nil {
		t.Fatal(err)
	}
	if n := len(r1.all()); n != 2 {
		t.Fatalf("s1 notifications = %d, want 2", n)
	}
	if n := len(r2.all()); n != 1 {
		t.Fatalf("profile change for a leaked to b: %d", n)
	}

	_ = store.Delete(ctx, "s1")
	hub.Deliver(ctx, Event{Kind: EventEnded, SessionID: "s1"})
	got := r1.all()
	if last := got[len(got)-1]; last.Identity != nil {
		t.Fatalf("ended delivered identity %+v", last.Identity)
	}

	unsub1()
	unsub1()
	hub.Deliver(ctx, Event{Kind: EventStarted, SessionID: "s1"})
	if n := len(r1.all()); n != 3 {
		t.Fatalf("delivered after unsubscribe: %d", n)
	}
	if hub.Subscribers("s1") != 0 || hub.Subscribers("s2") != 1 {
		t.Fatalf("subscribers s1=%d s2=%d", hub.Subscribers("s1"), hub.Subscribers("s2"))
	}
}

func TestHubDrivesSurface(t *testing.T) {
	store := NewMemoryStore()
	hub := NewHub(store)

	nav := make(chan string, 4)
	s := gate.NewSurface(gate.LayoutOptions(
		hub.Source("s1"),
		&gate.Resolver{Tokens: staticTokens{}, Profiles: completeProfiles{}},
		gate.NavigatorFunc(func(p string) { nav <- p }),
	))
	if err := s.Mount(context.Background(), "/dashboard"); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	select {
	case p := <-nav:
		if p != "/auth/login" {
			t.Fatalf("redirect = %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no redirect for a missing session")
	}
}

type staticTokens struct{}

func (staticTokens) Credential(context.Context) (gate.Credential, error) { return "tok", nil }

type completeProfiles struct{}

func (completeProfiles) FetchProfile(context.Context, string, gate.Credential) (gate.ProfileRecord, error) {
	ok := true
	return gate.ProfileRecord{IsProfileComplete: &ok}, nil
}

func TestEventValidate(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"kind":"started"}`)); err == nil {
		t.Fatal("started without session id accepted")
	}
	if _, err := DecodeEvent([]byte(`{"kind":"bogus","session_id":"x"}`)); err == nil {
		t.Fatal("unknown kind accepted")
	}
	e, err := DecodeEvent([]byte(`{"kind":"profile_changed","email":"a@x.com"}`))
	if err != nil || e.Email != "a@x.com" {
		t.Fatalf("DecodeEvent = %+v, %v", e, err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	_ = store.Create(context.Background(), Session{SessionID: "s", UserID: "u", ExpiresAt: now.Add(time.Minute)})

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	if s, _ := store.Get(context.Background(), "s"); s != nil {
		t.Fatalf("expired session returned: %+v", s)
	}
}
