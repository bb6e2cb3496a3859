package store

import "errors"

// ErrNotFound is returned when no user matches a lookup. Callers treat it
// as an unknown identity, not as a failure.
var ErrNotFound = errors.New("not found")
