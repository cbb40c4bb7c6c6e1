package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrToken means no credential could be obtained for the identity.
	ErrToken = errors.New("gate: credential unavailable")

	// ErrProfileFetch covers transport, status and payload failures of the
	// profile call.
	ErrProfileFetch = errors.New("gate: profile fetch failed")

	// ErrSubscription is reported by identity sources that fail to produce
	// a notification.
	ErrSubscription = errors.New("gate: identity subscription fault")
)

// ProfileFetchError describes a failed profile call. Status is zero when no
// HTTP response was received.
type ProfileFetchError struct {
	Status int
	Err    error
}

func (e *ProfileFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("profile fetch failed: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("profile fetch failed: %v", e.Err)
}

func (e *ProfileFetchError) Unwrap() []error {
	return []error{ErrProfileFetch, e.Err}
}
