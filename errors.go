package partnergate

import "errors"

// Configuration and lifecycle errors. Domain errors live in their subsystem
// packages (credential, event, dispatch, ratelimit) so store implementations
// can return them without importing the root.
var (
	// ErrNoStore is returned by New when no store is configured.
	ErrNoStore = errors.New("partnergate: no store configured (use WithStore)")

	// ErrNoCounter is returned by New when no counting store is configured.
	ErrNoCounter = errors.New("partnergate: no counter configured (use WithCounter)")

	// ErrStoreClosed is returned by store operations after Close.
	ErrStoreClosed = errors.New("partnergate: store is closed")

	// ErrAlreadyStarted is returned by Start when the gateway is running.
	ErrAlreadyStarted = errors.New("partnergate: already started")
)
