package gate

import "sync"

// Navigator performs the actual redirect. Implementations must be safe to
// call repeatedly with the same path.
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) { f(path) }

// Sink is an idempotent front for a Navigator. A redirect to the target most
// recently issued is dropped until the visitor is seen on another location.
type Sink struct {
	nav Navigator

	mu      sync.Mutex
	pending string
	from    string
}

func NewSink(nav Navigator) *Sink {
	return &Sink{nav: nav}
}

// Redirect forwards target unless the visitor is already there or the same
// redirect is already under way from the same location. It reports whether
// the navigator was called.
func (s *Sink) Redirect(from, target string) bool {
	from = CleanLocation(from)
	if from == CleanLocation(target) {
		return false
	}

	s.mu.Lock()
	if s.pending == target && s.from == from {
		s.mu.Unlock()
		return false
	}
	s.pending, s.from = target, from
	s.mu.Unlock()

	s.nav.Redirect(target)
	return true
}

// Arrived records that the visitor reached location. Reaching the pending
// target clears it.
func (s *Sink) Arrived(location string) {
	location = CleanLocation(location)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != "" && location == CleanLocation(s.pending) {
		s.pending, s.from = "", ""
	}
}

// Reset forgets the pending redirect. The next redirect is forwarded even if
// it repeats the last one.
func (s *Sink) Reset() {
	s.mu.Lock()
	s.pending, s.from = "", ""
	s.mu.Unlock()
}
