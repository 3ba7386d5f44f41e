package core

import "errors"

// Failure taxonomy shared by the sharing registry, storage, and the HTTP
// layer. Anything not matching one of these sentinels is treated as a
// transient I/O fault and surfaced to the caller as retryable.
var (
	// ErrNotFound: a token, user profile, or record id does not resolve.
	// Callers render "invalid or expired link" (or substitute a default)
	// instead of crashing.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists: a record that must be unique (e.g. a user email)
	// already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyJoined: the viewer already holds a join record for this
	// exact token. An informational rejection, not a system failure.
	ErrAlreadyJoined = errors.New("already joined")

	// ErrUnauthenticated: an operation requiring a signed-in identity was
	// invoked with none present.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized: leave/revoke invoked by a party that does not own
	// the target record.
	ErrUnauthorized = errors.New("unauthorized")
)
