package gate

const (
	DefaultSignedOutPath       = "/auth/login"
	DefaultCompletionPath      = "/account"
	DefaultGreetingLandingPath = "/"
)

const (
	KindLayout   = "layout"
	KindGreeting = "greeting"
)

// Recorder receives gate telemetry. A nil Recorder records nothing.
type Recorder interface {
	Resolution(outcome string)
	Redirect(kind, target string)
	StaleResult(kind string)
	SurfaceOpened(kind string)
	SurfaceClosed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) Resolution(string)       {}
func (nopRecorder) Redirect(string, string) {}
func (nopRecorder) StaleResult(string)      {}
func (nopRecorder) SurfaceOpened(string)    {}
func (nopRecorder) SurfaceClosed(string)    {}

func recorder(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// Options configure one Surface.
type Options struct {
	// Kind labels logs and metrics, e.g. KindLayout.
	Kind string

	Source    IdentitySource
	Resolver  *Resolver
	Policy    Policy
	Navigator Navigator

	// OnChange is called on the surface loop after every state change.
	OnChange func(GateState)

	// OnProfile is called on the surface loop with each freshly resolved
	// signed-in state.
	OnProfile func(GateState)

	Recorder Recorder
}

// LayoutOptions guard the dashboard shell: signed-out visitors go to the
// login page and incomplete profiles are held on the account page.
func LayoutOptions(src IdentitySource, res *Resolver, nav Navigator) Options {
	return Options{
		Kind:      KindLayout,
		Source:    src,
		Resolver:  res,
		Navigator: nav,
		Policy: Policy{Locations: Locations{
			SignedOut:         DefaultSignedOutPath,
			ProfileCompletion: DefaultCompletionPath,
		}},
	}
}

// GreetingOptions resolve the profile only to greet the visitor. Signed-out
// visitors go to the landing page and completeness is not enforced.
func GreetingOptions(src IdentitySource, res *Resolver, nav Navigator, onProfile func(GateState)) Options {
	return Options{
		Kind:      KindGreeting,
		Source:    src,
		Resolver:  res,
		Navigator: nav,
		OnProfile: onProfile,
		Policy: Policy{Locations: Locations{
			SignedOut: DefaultGreetingLandingPath,
		}},
	}
}
