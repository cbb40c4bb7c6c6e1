package gate

import (
	"path"
	"strings"
)

// Locations are the paths a Policy redirects to or exempts.
type Locations struct {
	// SignedOut is where visitors without an identity are sent.
	SignedOut string

	// ProfileCompletion is where visitors with an incomplete profile are
	// sent. Empty disables completeness gating.
	ProfileCompletion string

	// Exempt paths skip the completeness redirect.
	Exempt []string
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	// Pending means the state is not yet checked and nothing was decided.
	Pending  bool
	Redirect string
}

// None reports whether the visitor may stay where they are.
func (d Decision) None() bool {
	return !d.Pending && d.Redirect == ""
}

// Policy is the gating policy for one kind of surface.
type Policy struct {
	Locations Locations
}

// Decide maps a state and the current location to a decision. It has no
// side effects.
func (p Policy) Decide(s GateState, location string) Decision {
	if !s.AuthChecked {
		return Decision{Pending: true}
	}
	if s.Identity == nil {
		return Decision{Redirect: p.Locations.SignedOut}
	}
	if s.Profile == Complete || p.Locations.ProfileCompletion == "" {
		return Decision{}
	}

	loc := CleanLocation(location)
	if loc == CleanLocation(p.Locations.ProfileCompletion) {
		return Decision{}
	}
	for _, e := range p.Locations.Exempt {
		if loc == CleanLocation(e) {
			return Decision{}
		}
	}
	return Decision{Redirect: p.Locations.ProfileCompletion}
}

// CleanLocation drops the query and fragment of a location and normalizes
// its path so "/account/" and "/account?tab=1" compare equal to "/account".
func CleanLocation(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	if location == "" {
		return "/"
	}
	if !strings.HasPrefix(location, "/") {
		location = "/" + location
	}
	return path.Clean(location)
}
