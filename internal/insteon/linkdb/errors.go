package linkdb

import "errors"

// Domain-specific errors for link database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrBadRecord is returned when a streamed database record cannot
	// be parsed from its extended-message payload.
	ErrBadRecord = errors.New("linkdb: malformed database record")

	// ErrDBFull is returned when no free memory location remains for a
	// new record.
	ErrDBFull = errors.New("linkdb: no free record location")
)
