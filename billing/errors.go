/*
errors.go - Centralized error taxonomy for the billing engine

PURPOSE:
  All engine error kinds in one place. Every rejected mutation maps to one
  of these, and the HTTP layer derives status codes from them via CodeOf.

ERROR CATEGORIES:
  1. Validation errors - malformed or missing input
  2. Guard errors      - legal-state violations (transitions, allocations,
                         split preconditions)
  3. Concurrency       - lock conflicts, stale undo entries
  4. Storage           - database-layer failures, not further classified

USAGE:
  Guard checks return structured errors that unwrap to a sentinel:

    if errors.Is(err, billing.ErrTransitionNotAllowed) { ... }

  The HTTP layer uses CodeOf(err) to pick the taxonomy code for responses.

SEE ALSO:
  - transitions.go, allocations.go, split.go: Producers of these errors
  - api/handlers.go: Error-to-HTTP mapping
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/jakeross838/Construction-Management-Software-sub003/locking"
	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidationFailed        = errors.New("validation failed")
	ErrTransitionNotAllowed    = errors.New("transition not allowed")
	ErrAllocationInvalid       = errors.New("allocation invalid")
	ErrChangeOrderLinkRequired = errors.New("change order link required")
	ErrAlreadySplit            = errors.New("invoice already split")
	ErrInvalidStatusForSplit   = errors.New("invalid status for split")
	ErrSplitSumMismatch        = errors.New("split amounts do not sum to invoice amount")
	ErrChildAlreadyProcessed   = errors.New("child invoice already processed")
	ErrNotFound                = errors.New("not found")
	ErrDatabase                = errors.New("database error")
)

// =============================================================================
// TAXONOMY CODES - Stable identifiers surfaced to clients
// =============================================================================

type Code string

const (
	CodeValidationFailed        Code = "VALIDATION_FAILED"
	CodeTransitionNotAllowed    Code = "TRANSITION_NOT_ALLOWED"
	CodeAllocationInvalid       Code = "ALLOCATION_INVALID"
	CodeChangeOrderLinkRequired Code = "CHANGE_ORDER_LINK_REQUIRED"
	CodeAlreadySplit            Code = "ALREADY_SPLIT"
	CodeInvalidStatusForSplit   Code = "INVALID_STATUS_FOR_SPLIT"
	CodeSplitSumMismatch        Code = "SPLIT_SUM_MISMATCH"
	CodeChildAlreadyProcessed   Code = "CHILD_ALREADY_PROCESSED"
	CodeLockHeld                Code = "LOCK_HELD"
	CodeNotFound                Code = "NOT_FOUND"
	CodeUndoNotFound            Code = "UNDO_NOT_FOUND"
	CodeUndoStale               Code = "UNDO_STALE"
	CodeDatabase                Code = "DATABASE_ERROR"
)

// CodeOf maps any engine error (including lock and undo errors from their
// own packages) to its taxonomy code.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, ErrTransitionNotAllowed):
		return CodeTransitionNotAllowed
	case errors.Is(err, ErrChangeOrderLinkRequired):
		return CodeChangeOrderLinkRequired
	case errors.Is(err, ErrAllocationInvalid):
		return CodeAllocationInvalid
	case errors.Is(err, ErrAlreadySplit):
		return CodeAlreadySplit
	case errors.Is(err, ErrInvalidStatusForSplit):
		return CodeInvalidStatusForSplit
	case errors.Is(err, ErrSplitSumMismatch):
		return CodeSplitSumMismatch
	case errors.Is(err, ErrChildAlreadyProcessed):
		return CodeChildAlreadyProcessed
	case errors.Is(err, locking.ErrLockHeld):
		return CodeLockHeld
	case errors.Is(err, undo.ErrNotFound):
		return CodeUndoNotFound
	case errors.Is(err, undo.ErrStale):
		return CodeUndoStale
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeDatabase
	}
}

// IsConflict reports whether the error should surface as a concurrency
// conflict (HTTP 409) rather than a client mistake.
func IsConflict(err error) bool {
	return errors.Is(err, locking.ErrLockHeld) || errors.Is(err, undo.ErrStale)
}

// IsClientError reports whether the error is due to invalid caller input or
// a guard violation, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrTransitionNotAllowed) ||
		errors.Is(err, ErrAllocationInvalid) ||
		errors.Is(err, ErrChangeOrderLinkRequired) ||
		errors.Is(err, ErrAlreadySplit) ||
		errors.Is(err, ErrInvalidStatusForSplit) ||
		errors.Is(err, ErrSplitSumMismatch) ||
		errors.Is(err, ErrChildAlreadyProcessed)
}

// IsNotFound reports whether the error indicates a missing record or a
// missing/consumed undo entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, undo.ErrNotFound)
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Detail)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// TransitionError names the offending from/to pair of an illegal edge.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transition not allowed: %s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("transition not allowed: %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrTransitionNotAllowed }

// AllocationError names the specific failing validation rule.
type AllocationError struct {
	Rule   string // "amount_not_positive", "missing_cost_code", "over_allocation"
	Detail string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation invalid (%s): %s", e.Rule, e.Detail)
}

func (e *AllocationError) Unwrap() error { return ErrAllocationInvalid }

// ChangeOrderLinkError lists the change-order-coded cost codes that lack a
// change order reference.
type ChangeOrderLinkError struct {
	CostCodes []CostCodeID
}

func (e *ChangeOrderLinkError) Error() string {
	return fmt.Sprintf("change order link required for cost codes %v", e.CostCodes)
}

func (e *ChangeOrderLinkError) Unwrap() error { return ErrChangeOrderLinkRequired }

// ChildProcessedError names the child that blocks an unsplit.
type ChildProcessedError struct {
	ChildID InvoiceID
	Status  Status
}

func (e *ChildProcessedError) Error() string {
	return fmt.Sprintf("child invoice %s already processed (status %s)", e.ChildID, e.Status)
}

func (e *ChildProcessedError) Unwrap() error { return ErrChildAlreadyProcessed }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps an unclassified storage-layer failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrDatabase }

// LockConflict aliases the lock manager's conflict error so callers that
// only import billing can still inspect holder and expiry.
type LockConflict = locking.HeldError
