package entitlement

import "errors"

var (
	ErrMissingBaseURL = errors.New("entitlement: auth service URL is required")
	ErrInvalidBaseURL = errors.New("entitlement: invalid auth service URL")

	// ErrUnavailable reports a transport failure or a 5xx/429 answer after all retries.
	ErrUnavailable = errors.New("entitlement service unavailable")
	// ErrRejected reports a 4xx answer. It is not retried.
	ErrRejected = errors.New("entitlement update rejected")
)
