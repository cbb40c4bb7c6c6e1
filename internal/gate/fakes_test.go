package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu           sync.Mutex
	fn           func(Notification)
	initial      *Notification
	subscribeErr error
	unsubscribed int
}

func (f *fakeSource) Subscribe(fn func(Notification)) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	f.fn = fn
	initial := f.initial
	f.mu.Unlock()
	if initial != nil {
		fn(*initial)
	}
	return func() {
		f.mu.Lock()
		f.fn = nil
		f.unsubscribed++
		f.mu.Unlock()
	}, nil
}

func (f *fakeSource) emit(n Notification) bool {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(n)
	return true
}

func (f *fakeSource) signIn(email string) bool {
	return f.emit(Notification{Identity: &Identity{Email: email}})
}

func (f *fakeSource) signOut() bool {
	return f.emit(Notification{})
}

func (f *fakeSource) unsubscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeTokens struct {
	mu    sync.Mutex
	err   error
	calls int
	log   *[]string
}

func (f *fakeTokens) Credential(context.Context) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.log != nil {
		*f.log = append(*f.log, "credential")
	}
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

type fakeProfile struct {
	rec     ProfileRecord
	err     error
	release chan struct{}
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]fakeProfile
	creds    []Credential
	log      *[]string
}

func (f *fakeProfiles) set(email string, p fakeProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profiles == nil {
		f.profiles = map[string]fakeProfile{}
	}
	f.profiles[email] = p
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, email string, cred Credential) (ProfileRecord, error) {
	f.mu.Lock()
	p, ok := f.profiles[email]
	f.creds = append(f.creds, cred)
	if f.log != nil {
		*f.log = append(*f.log, "profile")
	}
	f.mu.Unlock()

	if p.release != nil {
		<-p.release
	}
	if !ok {
		return ProfileRecord{}, &ProfileFetchError{Status: 404, Err: errors.New("not found")}
	}
	return p.rec, p.err
}

type blockingProfiles struct{}

func (blockingProfiles) FetchProfile(ctx context.Context, _ string, _ Credential) (ProfileRecord, error) {
	<-ctx.Done()
	return ProfileRecord{}, ctx.Err()
}

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) Redirect(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *navRecorder) redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func (n *navRecorder) count(path string) int {
	c := 0
	for _, p := range n.redirects() {
		if p == path {
			c++
		}
	}
	return c
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	stale    chan struct{}
	opened   int
	closed   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{stale: make(chan struct{}, 8)}
}

func (r *countingRecorder) Resolution(outcome string) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func (r *countingRecorder) Redirect(string, string) {}

func (r *countingRecorder) StaleResult(string) { r.stale <- struct{}{} }

func (r *countingRecorder) SurfaceOpened(string) {
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
}

func (r *countingRecorder) SurfaceClosed(string) {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
}

func boolPtr(b bool) *bool { return &b }

// settle waits until every event queued on the surface loop so far has run.
func settle(t *testing.T, s *Surface) {
	t.Helper()
	done := make(chan struct{})
	s.post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("surface loop did not settle")
	}
}

// waitState reads states until pred matches, then settles the loop so the
// reaction to that state has run.
func waitState(t *testing.T, s *Surface, ch <-chan GateState, pred func(GateState) bool) GateState {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if pred(st) {
				settle(t, s)
				return st
			}
		case <-timeout:
			t.Fatalf("state not reached, last=%+v", s.State())
		}
	}
}

func checked(st GateState) bool { return st.AuthChecked }
