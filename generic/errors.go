/*
errors.go - Centralized error taxonomy for the store engine

PURPOSE:
  All persistence failures surface through this taxonomy. Callers match with
  errors.Is / errors.As and never see raw driver errors - Classify rewrites
  those into the taxonomy at the engine boundary.

ERROR CATEGORIES:
  1. Validation  - rejected before any statement was issued
  2. Constraint  - unique / foreign-key violations from the row source
  3. Transaction - begin/commit level failures, zero-affected-rows writes
  4. Transition  - state-machine violations (maintenance order lifecycle)

RETRY POLICY:
  Constraint violations are terminal until the conflicting state changes
  (e.g. dependents removed before a delete). Everything else left the store
  unchanged and is safe for the caller to retry.

USAGE:
  if errors.Is(err, generic.ErrInUse) {
      // parent row still referenced by dependents
  }

SEE ALSO:
  - store.go: Uses Classify on every write path
  - fleet/maintenance.go: Emits TransitionError
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a required field is missing or
	// malformed. No statement was issued.
	ErrValidation = errors.New("validation failure")

	// ErrConstraintViolation is returned when the row source rejects a
	// statement on a unique or foreign-key constraint.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInUse is returned when a delete fails because dependent rows still
	// reference the target. Unwraps to ErrConstraintViolation.
	ErrInUse = fmt.Errorf("%w: row in use by dependents", ErrConstraintViolation)

	// ErrTransactionFailed is returned when a write could not be committed,
	// including the zero-affected-rows case (the row no longer exists).
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInvalidTransition is returned when a state machine rejects a
	// transition (e.g. closing an already-closed maintenance order).
	ErrInvalidTransition = errors.New("invalid transition")
)

// =============================================================================
// STRUCTURED ERRORS - carry additional context
// =============================================================================

// ValidationError reports which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failure: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConstraintError reports a classified row-source constraint failure.
type ConstraintError struct {
	Table string
	InUse bool // foreign-key dependency, as opposed to a unique conflict
	Cause error
}

func (e *ConstraintError) Error() string {
	kind := "unique conflict"
	if e.InUse {
		kind = "in use by dependents"
	}
	return fmt.Sprintf("constraint violation on %s: %s", e.Table, kind)
}

func (e *ConstraintError) Unwrap() error {
	if e.InUse {
		return ErrInUse
	}
	return ErrConstraintViolation
}

// TransitionError reports a rejected state-machine transition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// CLASSIFICATION - raw driver errors never escape the engine
// =============================================================================

// Classify rewrites a raw row-source error into the taxonomy. sqlite reports
// constraint failures in the error text; postgres drivers use SQLSTATE codes
// but emit the same phrases through database/sql wrappers we match here.
func Classify(table string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint"):
		return &ConstraintError{Table: table, InUse: true, Cause: err}
	case strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key"):
		return &ConstraintError{Table: table, Cause: err}
	default:
		return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, table, err)
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the failure left the store unchanged and the
// same call might succeed later. Constraint violations are terminal until
// the conflicting state changes.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrConstraintViolation)
}

// IsClientError returns true if the error is due to invalid caller input or
// state, as opposed to a store-level fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrInvalidTransition)
}
