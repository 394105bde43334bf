package spoiler

import "errors"

// Error taxonomy surfaced to callers. Handlers map these to HTTP status
// codes; anything else is an internal failure. A duplicate entry is not
// an error anywhere in this package: the uniqueness constraint resolves
// races and the loser proceeds as "already exists".
var (
	// ErrNotFound means the session or viewer does not exist. It is
	// deliberately distinct from a hidden session: a missing session must
	// 404 rather than render as a protected one.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the operation requires a concrete viewer
	// identity (or an explicit confirmation) that the caller did not supply.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable means the persistent store is transiently unreachable.
	// Cache unavailability is never surfaced as this; it degrades to a miss.
	ErrUnavailable = errors.New("store unavailable")
)
