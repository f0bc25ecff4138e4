/*
Package billing contains the invoice lifecycle engine.

PURPOSE:
  This package holds the core financial records and the rules that govern
  them: the invoice status state machine, the cost-code allocation ledger,
  and the split/unsplit family mechanism. The Engine type orchestrates
  mutations so that every write is validated, snapshotted for undo, and
  committed as a single unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: A billable vendor charge moving through the billing lifecycle
  - Allocation: A portion of an invoice assigned to a cost code
  - Status: Canonical lifecycle states, with legacy alias normalization
  - Epsilon: The balancing tolerance (0.01 currency units)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing references
  3. Soft Delete: Records carry a tombstone; nothing is hard-deleted
  4. Versioning: Every mutation bumps a monotonic version counter

SEE ALSO:
  - transitions.go: Legal status edges and their guards
  - allocations.go: Allocation validation and summaries
  - split.go: Split family construction and dissolution
  - engine.go: Mutation orchestration
*/
package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type InvoiceID string
type JobID string
type VendorID string
type CostCodeID string
type ChangeOrderID string
type DrawID string

// EntityKind values used for locks and undo entries. The lock manager and
// undo log are entity-type agnostic; these are the names the billing engine
// registers under.
const (
	EntityInvoice = "invoice"
)

// =============================================================================
// MONEY
// =============================================================================

// Epsilon is the balancing tolerance: two amounts are considered equal when
// they differ by no more than 0.01 currency units.
var Epsilon = decimal.New(1, -2)

// WithinEpsilon reports whether a and b differ by at most Epsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}

// ExceedsWithEpsilon reports whether sum is greater than limit by more than
// Epsilon. Used for over-allocation checks: sums inside the tolerance pass.
func ExceedsWithEpsilon(sum, limit decimal.Decimal) bool {
	return sum.GreaterThan(limit.Add(Epsilon))
}

// =============================================================================
// STATUS - Canonical lifecycle states
// =============================================================================

type Status string

const (
	StatusNeedsReview      Status = "needs_review"
	StatusReadyForApproval Status = "ready_for_approval"
	StatusApproved         Status = "approved"
	StatusInDraw           Status = "in_draw"
	StatusPaid             Status = "paid"
	StatusDenied           Status = "denied"
	StatusSplit            Status = "split"
)

// statusAliases maps legacy spellings to canonical states. Normalization
// happens once at the input boundary (ParseStatus); nothing deeper in the
// engine branches on an alias.
var statusAliases = map[string]Status{
	"received":       StatusNeedsReview,
	"needs_approval": StatusReadyForApproval,
}

var allStatuses = []Status{
	StatusNeedsReview,
	StatusReadyForApproval,
	StatusApproved,
	StatusInDraw,
	StatusPaid,
	StatusDenied,
	StatusSplit,
}

// ParseStatus normalizes a caller-supplied status string to a canonical
// Status, accepting legacy aliases. Unknown values fail validation.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := statusAliases[normalized]; ok {
		return alias, nil
	}
	for _, st := range allStatuses {
		if normalized == string(st) {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Detail: "unknown status " + s}
}

// Statuses returns all canonical states. Used by tests to prove the
// transition table is total.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// =============================================================================
// REVIEW FLAGS
// =============================================================================

type ReviewFlag string

const (
	// FlagPartialApproval marks an invoice approved with less than its full
	// amount allocated. Display-only; never blocks.
	FlagPartialApproval ReviewFlag = "partial_approval"
)

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is a billable vendor charge. A negative Amount is a credit memo.
type Invoice struct {
	ID              InvoiceID
	Number          string
	Amount          decimal.Decimal
	Status          Status
	JobID           JobID
	VendorID        VendorID
	PurchaseOrderID string
	InvoiceDate     time.Time

	// Cumulative billing state. BilledAmount is the portion already placed
	// into finalized draws; PaidAmount is what has gone out to the vendor.
	BilledAmount decimal.Decimal
	PaidAmount   decimal.Decimal

	// DrawID is set while the invoice sits in a draw.
	DrawID DrawID

	// Split family fields. OriginalAmount and PreSplitStatus are meaningful
	// only while IsSplitParent is true.
	IsSplitParent   bool
	ParentInvoiceID InvoiceID
	OriginalAmount  decimal.Decimal
	PreSplitStatus  Status

	ReviewFlags []ReviewFlag

	// Version increases by exactly one on every mutation. The undo log uses
	// it to detect staleness.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// HasFlag reports whether the invoice carries the given review flag.
func (inv *Invoice) HasFlag(f ReviewFlag) bool {
	for _, have := range inv.ReviewFlags {
		if have == f {
			return true
		}
	}
	return false
}

// AddFlag adds a review flag if not already present.
func (inv *Invoice) AddFlag(f ReviewFlag) {
	if !inv.HasFlag(f) {
		inv.ReviewFlags = append(inv.ReviewFlags, f)
	}
}

// RemoveFlag drops a review flag if present.
func (inv *Invoice) RemoveFlag(f ReviewFlag) {
	out := inv.ReviewFlags[:0]
	for _, have := range inv.ReviewFlags {
		if have != f {
			out = append(out, have)
		}
	}
	inv.ReviewFlags = out
}

// IsChild reports whether the invoice was produced by a split.
func (inv *Invoice) IsChild() bool {
	return inv.ParentInvoiceID != ""
}

// OpenAmount is the portion not yet billed into a finalized draw.
func (inv *Invoice) OpenAmount() decimal.Decimal {
	return inv.Amount.Sub(inv.BilledAmount)
}

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// freely before committing.
func (inv *Invoice) Clone() *Invoice {
	cp := *inv
	cp.ReviewFlags = append([]ReviewFlag(nil), inv.ReviewFlags...)
	if inv.DeletedAt != nil {
		t := *inv.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation assigns a portion of an invoice's amount to a cost code,
// optionally tied to a change order. Allocations are owned by their invoice
// and replaced as a set whenever rewritten.
type Allocation struct {
	ID            string
	InvoiceID     InvoiceID
	CostCodeID    CostCodeID
	Amount        decimal.Decimal
	ChangeOrderID ChangeOrderID
	CreatedAt     time.Time
}

// IsChangeOrderCoded reports whether a cost code denotes a change-order line.
// Convention: the code ends with the letter C (case-insensitive).
func IsChangeOrderCoded(code CostCodeID) bool {
	if code == "" {
		return false
	}
	last := code[len(code)-1]
	return last == 'C' || last == 'c'
}

// AllocationTotal sums an allocation set.
func AllocationTotal(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}
