/*
errors.go - Centralized error types for the schedule engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy mirrors how callers must react:

  1. Validation errors  - bad input, rejected before any side effect
  2. Conflict errors    - holiday/PTO/rule blocks, rejected before persistence
  3. Not-found errors   - referenced record absent
  4. Unsupported errors - explicit rejection of operations the engine
                          does not support (mid-range cascade delete)

  Undo/redo transition violations are conflicts, not unsupported
  operations: the record's state moved past what the caller saw.

  Partial-failure conditions (one row of a batch hitting a unique
  constraint, one satellite write failing) are NOT errors at this level;
  they are counted and reported in operation results.

USAGE:
    if errors.Is(err, schedule.ErrDuplicateAssignment) { ... }

    var verr *schedule.ValidationError
    if errors.As(err, &verr) { ... verr.Field ... }
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateAssignment is returned by stores when an insert violates
	// the (provider, date, block, service) unique constraint. Batch
	// operations translate this into a skip, not a failure.
	ErrDuplicateAssignment = errors.New("duplicate assignment")

	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidDateRange is returned when end precedes start.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrMidRangeDelete is returned when a cascade delete targets a date
	// strictly inside a multi-day leave range. Splitting a range into two
	// disjoint ranges is not supported.
	ErrMidRangeDelete = errors.New("cascade delete inside a multi-day range is not supported")

	// ErrInvalidTransition is returned for undo/redo state machine
	// violations (e.g. redo of a record that was never undone).
	ErrInvalidTransition = errors.New("invalid change record transition")

	// ErrAlreadyReviewed is returned when approving or denying a request
	// that is no longer pending.
	ErrAlreadyReviewed = errors.New("request already reviewed")

	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrRequestNotFound    = errors.New("pto request not found")
	ErrLeaveNotFound      = errors.New("provider leave not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrRecordNotFound     = errors.New("change record not found")
	ErrServiceNotFound    = errors.New("service not found")
	ErrProviderNotFound   = errors.New("provider not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the specific offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError reports an undo/redo state machine violation.
type TransitionError struct {
	RecordID RecordID
	From     ChangeState
	To       ChangeState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("change record %s: cannot transition %s -> %s", e.RecordID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// MidRangeDeleteError identifies the range a cascade delete could not split.
type MidRangeDeleteError struct {
	Kind  string // "request" or "leave"
	ID    string
	Range DateRange
	Date  Date
}

func (e *MidRangeDeleteError) Error() string {
	return fmt.Sprintf("%s %s: date %s is strictly inside %s", e.Kind, e.ID, e.Date, e.Range)
}

func (e *MidRangeDeleteError) Unwrap() error { return ErrMidRangeDelete }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is due to invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidDateRange)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrLeaveNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrProviderNotFound)
}

// IsUnsupported reports whether the error is an explicit operation rejection.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrMidRangeDelete)
}

// IsConflict reports whether the error is a state or persistence conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateAssignment) ||
		errors.Is(err, ErrAlreadyReviewed) ||
		errors.Is(err, ErrInvalidTransition)
}
