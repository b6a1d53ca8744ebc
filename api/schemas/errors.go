package schemas

import (
	"errors"
	"fmt"
)

// -- Error Taxonomy --
//
// ParseWarning and AmbiguityNote (gcode.go) are values, not errors:
// parsing and segmentation never fail a request. The types below cover
// the failures that do surface.

// ErrTimeout is returned when the client-enforced polling ceiling is
// exceeded. Always terminal; a retry requires a fresh submission.
var ErrTimeout = errors.New("analysis job timed out")

// ErrJobCancelled is returned when polling is halted by explicit
// cancellation or consumer teardown.
var ErrJobCancelled = errors.New("analysis job cancelled")

// ValidationError rejects a request before any parsing begins,
// e.g. an unsupported file extension.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NetworkError wraps a transport failure during submission or polling.
// Retryable by explicit user action.
type NetworkError struct {
	Op  string // "submit" or "poll"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PersistenceError wraps a save/upload failure. A completed in-memory
// Report stays valid: the user is warned and may retry the save.
type PersistenceError struct {
	Op  string // "save_report" or "upload_raw_file"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
