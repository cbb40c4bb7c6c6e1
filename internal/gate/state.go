package gate

// Identity is the signed-in visitor as reported by the identity provider.
type Identity struct {
	Email string
}

// Credential is a short-lived bearer token for one backend call.
type Credential string

// Completeness is the tri-state profile completeness flag.
type Completeness int

const (
	Unknown Completeness = iota
	Incomplete
	Complete
)

func (c Completeness) String() string {
	switch c {
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// GateState is the derived authorization state of one surface.
//
// Profile and DisplayName are meaningless until AuthChecked is true, and are
// always Unknown and empty while Identity is nil.
type GateState struct {
	AuthChecked bool
	Identity    *Identity
	Profile     Completeness
	DisplayName string

	// Generation is the notification number that produced this state.
	Generation uint64
}

// SignedIn reports whether the state carries an identity.
func (s GateState) SignedIn() bool {
	return s.Identity != nil
}

func pendingState(gen uint64, id *Identity) GateState {
	return GateState{Identity: id, Generation: gen}
}

func signedOutState(gen uint64) GateState {
	return GateState{AuthChecked: true, Generation: gen}
}
