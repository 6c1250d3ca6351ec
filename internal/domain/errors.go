package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// record does not exist in the database.
// Handlers should map this to HTTP 404 or a "not found" callback alert.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, malformed coordinates).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidRoute is returned when a tracking request is attempted for a
// route alternative whose line code or boarding stop id is empty.
// Such requests are never created and the error is reported to the caller.
var ErrInvalidRoute = errors.New("invalid route")

// ErrExpired is returned when a tracking request token is loaded after its
// TTL has elapsed, or was never created. An expired record is deleted as a
// side effect of the load.
var ErrExpired = errors.New("tracking request expired")

// ErrUpstream is returned when the municipal transit service cannot be
// reached, answers with a non-2xx status, or returns an undecodable body.
// Inside a tracking loop this is terminal for the session, never retried.
var ErrUpstream = errors.New("upstream unavailable")

// ErrSpawn is returned when the detached worker trigger could not be
// dispatched. Callers compensate by running the tracking loop inline; this
// is the only failure that is silently absorbed rather than surfaced.
var ErrSpawn = errors.New("worker spawn failed")

// ErrConflict is returned by repos when an insert violates a uniqueness
// constraint (e.g. a tracking token collision). Callers may regenerate the
// conflicting key and retry.
var ErrConflict = errors.New("conflict")
