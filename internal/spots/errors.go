package spots

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the operation targets an id with no persisted record.
	ErrNotFound = errors.New("spot not found")

	// ErrForbidden: the operation targets a bundled spot, which is immutable.
	ErrForbidden = errors.New("operation not allowed for bundled spots")

	// ErrConflict: a concurrent writer changed the record between read and
	// update. SubmitRating retries once before surfacing this.
	ErrConflict = errors.New("spot was modified concurrently")
)

// ValidationError reports missing or out-of-range input. It is returned
// before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a GeoStore failure (driver error, timeout, network).
// Reads degrade to cached data on this; writes surface it to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("geostore %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
