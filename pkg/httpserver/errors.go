package httpserver

import "errors"

var (
	// ErrStart wraps every failure to bring the billing API listener up.
	ErrStart = errors.New("httpserver: billing api failed to start")
	// ErrAlreadyRunning is joined with ErrStart when Run is called twice.
	ErrAlreadyRunning = errors.New("httpserver: billing api is already running")
	// ErrShutdown wraps a drain that did not finish within the shutdown timeout.
	ErrShutdown = errors.New("httpserver: billing api did not drain in-flight requests")
)
