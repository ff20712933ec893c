package reconciler

import "errors"

var (
	// ErrUnknownEvent is reported for event variants the reconciler has no branch for.
	ErrUnknownEvent = errors.New("unknown event variant")
)
