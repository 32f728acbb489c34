package liveclient

import "errors"

// Sentinel errors for the protocol layer. Most paths wrap these with
// context, so callers should test with errors.Is.
var (
	// ErrDecode indicates a malformed wire payload. Non-fatal for the
	// session: the message is logged and dropped.
	ErrDecode = errors.New("liveclient: protocol decode error")

	// ErrState indicates a diff that cannot be applied to the current
	// template state. Fatal for the view: the session drops the
	// connection and reconnects with fresh state.
	ErrState = errors.New("liveclient: template state inconsistent")

	// ErrNoContainer indicates a message referenced a view id with no
	// matching container in the document.
	ErrNoContainer = errors.New("liveclient: live view container not found")

	// ErrClosed is returned for operations on a session that received
	// the terminal view-gone signal.
	ErrClosed = errors.New("liveclient: session closed")
)
