package browse

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyConnection = errors.New("connection_id is required")
	ErrEmptyTarget     = errors.New("target is required")
	ErrInvalidFilter   = errors.New("invalid filter")
)

// ErrBrowseTimeout means no matching reply arrived within the correlator
// deadline. Retryable by the caller.
var ErrBrowseTimeout = errors.New("no browse reply within deadline")

// DepthRejectedError reports a caller-supplied depth that would provably
// overflow the budget. It names the maximum depth that would be safe instead
// of silently downgrading; the caller asked for a depth and an unannounced
// downgrade would be a silent correctness change.
type DepthRejectedError struct {
	Requested int
	MaxSafe   int
	Children  int
}

// Error implements error.
func (e *DepthRejectedError) Error() string {
	if e.Requested <= 0 {
		return fmt.Sprintf("depth %d rejected: unbounded browsing is not permitted, use a depth between 1 and %d",
			e.Requested, e.MaxSafe)
	}
	if e.Children > 0 {
		return fmt.Sprintf("depth %d rejected: target has %d direct children, maximum safe depth is %d",
			e.Requested, e.Children, e.MaxSafe)
	}
	return fmt.Sprintf("depth %d rejected: maximum safe depth is %d", e.Requested, e.MaxSafe)
}

// TransportError means the underlying driver channel failed. Fatal to the
// current call.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap supports errors.Is / errors.As.
func (e *TransportError) Unwrap() error {
	return e.Err
}
