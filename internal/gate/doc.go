// Package gate decides, for one guarded surface, whether a visitor may stay
// on the current location.
//
// A Surface observes identity changes, resolves the visitor's profile through
// a TokenProvider and a ProfileFetcher, and reacts to every state or location
// change by running the pure Policy and forwarding redirects to a Navigator.
//
// All surface state is owned by a single event loop goroutine. Resolutions run
// off the loop and are applied only if they belong to the latest notification.
package gate
