package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/segmentio/ksuid"

	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

var (
	ErrMounted = errors.New("gate: surface already mounted")
	ErrClosed  = errors.New("gate: surface closed")
)

// Notification is one identity-change signal. Identity is nil when the
// visitor is signed out. Err marks a notification the source failed to
// produce.
type Notification struct {
	Identity *Identity
	Err      error
}

// IdentitySource is the identity provider's change subscription. Subscribe
// may call fn synchronously with the current identity.
type IdentitySource interface {
	Subscribe(fn func(Notification)) (unsubscribe func(), err error)
}

// Surface is one guarded surface instance. Its state is owned by a single
// loop goroutine started by Mount and stopped by Close.
type Surface struct {
	id   string
	opts Options
	rec  Recorder
	sink *Sink

	events chan func()
	done   chan struct{}
	exited chan struct{}

	ctx  context.Context
	stop context.CancelFunc

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	mu    sync.Mutex
	unsub func()
	snap  GateState
	where string

	// loop-owned
	state    GateState
	location string
	gen      uint64
	cancel   context.CancelFunc
}

func NewSurface(opts Options) *Surface {
	if opts.Kind == "" {
		opts.Kind = KindLayout
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	return &Surface{
		id:     ksuid.New().String(),
		opts:   opts,
		rec:    recorder(opts.Recorder),
		sink:   NewSink(opts.Navigator),
		events: make(chan func(), 16),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (s *Surface) ID() string { return s.id }

// Mount starts the surface at location and subscribes to identity changes.
// The surface closes itself when ctx is done. A failed subscription leaves
// the surface closed.
func (s *Surface) Mount(ctx context.Context, location string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrMounted
	}
	if s.opts.Source == nil || s.opts.Resolver == nil {
		s.started.Store(false)
		return errors.New("gate: surface needs a source and a resolver")
	}

	s.ctx, s.stop = context.WithCancel(ctx)
	s.location = location
	s.state = GateState{}
	s.setSnapshot()

	go s.run()
	s.rec.SurfaceOpened(s.opts.Kind)

	unsub, err := s.opts.Source.Subscribe(func(n Notification) {
		s.post(func() { s.notify(n) })
	})
	if err != nil {
		s.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		unsub()
		return ErrClosed
	}
	s.unsub = unsub
	s.mu.Unlock()

	logger.Debug("gate surface mounted", map[string]any{
		"surface":  s.id,
		"kind":     s.opts.Kind,
		"location": location,
	})
	return nil
}

// Navigate reports that the visitor is now at location. The policy is
// re-evaluated against the current state.
func (s *Surface) Navigate(location string) {
	s.post(func() {
		s.location = location
		s.setSnapshot()
		s.sink.Arrived(location)
		s.react()
	})
}

// State returns the latest published state.
func (s *Surface) State() GateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Location returns the latest known location.
func (s *Surface) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.where
}

// Close releases the subscription, abandons in-flight resolution and waits
// for the loop to stop. It must not be called from an Options hook.
func (s *Surface) Close() {
	s.shutdown()
	if s.started.Load() {
		<-s.exited
	}
}

func (s *Surface) shutdown() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)

		s.mu.Lock()
		unsub := s.unsub
		s.unsub = nil
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		if s.stop != nil {
			s.stop()
		}
		if s.started.Load() {
			s.rec.SurfaceClosed(s.opts.Kind)
		}
	})
}

func (s *Surface) post(fn func()) {
	if s.closed.Load() {
		return
	}
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

func (s *Surface) run() {
	defer close(s.exited)
	for {
		select {
		case fn := <-s.events:
			if s.closed.Load() {
				continue
			}
			fn()
		case <-s.ctx.Done():
			s.shutdown()
			return
		case <-s.done:
			if s.cancel != nil {
				s.cancel()
				s.cancel = nil
			}
			return
		}
	}
}

func (s *Surface) notify(n Notification) {
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if n.Err != nil {
		logger.Warn("gate identity notification failed", map[string]any{
			"surface": s.id,
			"kind":    s.opts.Kind,
			"error":   n.Err,
		})
		n.Identity = nil
	}
	if n.Identity == nil {
		s.publish(signedOutState(gen))
		return
	}

	id := *n.Identity
	s.publish(pendingState(gen, &id))

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	go func() {
		res := s.opts.Resolver.Resolve(ctx, id)
		s.post(func() { s.apply(gen, id, res) })
	}()
}

func (s *Surface) apply(gen uint64, id Identity, res Resolution) {
	if gen != s.gen {
		s.rec.StaleResult(s.opts.Kind)
		logger.Debug("gate stale resolution dropped", map[string]any{
			"surface":    s.id,
			"generation": gen,
			"current":    s.gen,
		})
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if res.SignedOut {
		s.publish(signedOutState(gen))
		return
	}
	st := GateState{
		AuthChecked: true,
		Identity:    &id,
		Profile:     res.Profile,
		DisplayName: res.DisplayName,
		Generation:  gen,
	}
	s.publish(st)
	if s.opts.OnProfile != nil {
		s.opts.OnProfile(st)
	}
}

func (s *Surface) publish(st GateState) {
	s.state = st
	s.setSnapshot()
	if s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
	s.react()
}

func (s *Surface) react() {
	d := s.opts.Policy.Decide(s.state, s.location)
	if d.None() {
		// a settled "stay" supersedes any earlier redirect
		s.sink.Reset()
		return
	}
	if d.Redirect == "" {
		return
	}
	if s.sink.Redirect(s.location, d.Redirect) {
		s.rec.Redirect(s.opts.Kind, d.Redirect)
		logger.Info("gate redirect", map[string]any{
			"surface": s.id,
			"kind":    s.opts.Kind,
			"from":    s.location,
			"to":      d.Redirect,
		})
	}
}

func (s *Surface) setSnapshot() {
	s.mu.Lock()
	s.snap = s.state
	s.where = s.location
	s.mu.Unlock()
}
