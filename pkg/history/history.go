// Package history defines the navigation port used by bindings and
// provides an in-memory session-history stack.
//
// All reads and writes of navigation state go through the History
// interface, so tests substitute Memory and servers substitute an
// adapter that forwards commits to a real client. Nothing else in the
// module touches navigation state directly.
package history

// History is the minimal surface a binding needs from the host's
// navigation facility: read the current URL, and commit a new one by
// either replacing the current entry or pushing a new entry.
type History interface {
	// Location returns the current URL.
	Location() string

	// Push commits url as a new history entry. The previous entry
	// stays reachable via back navigation.
	Push(url string)

	// Replace commits url over the current history entry.
	Replace(url string)
}

// Entry is one history entry. State carries the opaque payload of the
// host navigation facility and is not interpreted here.
type Entry struct {
	URL   string
	State any
}
