package gate

// Greeting is the display projection of a resolved state. It is empty while
// the state is pending, signed out or carries no name.
func Greeting(s GateState) string {
	if !s.AuthChecked || s.Identity == nil || s.DisplayName == "" {
		return ""
	}
	return "Welcome, " + s.DisplayName
}
