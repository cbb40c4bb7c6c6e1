package surface

import "github.com/yashgoel75/cleit-cdc/internal/gate"

const (
	frameNavigate = "navigate"
	frameSignOut  = "signout"

	frameState    = "state"
	frameRedirect = "redirect"
	frameGreeting = "greeting"
)

// clientFrame is sent by the browser.
type clientFrame struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// serverFrame is sent to the browser.
type serverFrame struct {
	Type  string      `json:"type"`
	Path  string      `json:"path,omitempty"`
	Text  string      `json:"text,omitempty"`
	State *stateFrame `json:"state,omitempty"`
}

type stateFrame struct {
	AuthChecked bool   `json:"authChecked"`
	SignedIn    bool   `json:"signedIn"`
	Email       string `json:"email,omitempty"`
	Profile     string `json:"profile"`
	Greeting    string `json:"greeting,omitempty"`
	Generation  uint64 `json:"generation"`
}

func stateOf(st gate.GateState) serverFrame {
	f := &stateFrame{
		AuthChecked: st.AuthChecked,
		SignedIn:    st.SignedIn(),
		Profile:     st.Profile.String(),
		Greeting:    gate.Greeting(st),
		Generation:  st.Generation,
	}
	if st.Identity != nil {
		f.Email = st.Identity.Email
	}
	return serverFrame{Type: frameState, State: f}
}
