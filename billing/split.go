/*
split.go - Split family construction and dissolution rules

PURPOSE:
  A split divides one invoice across jobs: the original becomes a frozen
  parent (status "split") and one child invoice is created per entry. The
  family conserves money - children always sum back to the parent's
  pre-split amount within epsilon. Unsplit dissolves the family, deleting
  the children and restoring the parent exactly.

PRECONDITIONS:
  split:   not already a parent or child, pre-approval status, amounts
           conserve
  unsplit: is a parent, and no child has progressed past review
           (approved / in_draw / paid children block it)

SEE ALSO:
  - engine.go: Runs split/unsplit as single atomic units of work
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitEntry describes one child to create.
type SplitEntry struct {
	JobID  JobID
	Amount decimal.Decimal
	Notes  string
}

// Family is a resolved split family. Parent is the root invoice; Children
// is empty when IsSplit is false.
type Family struct {
	IsSplit  bool
	Parent   *Invoice
	Children []*Invoice
}

// preApprovalStatuses are the states from which an invoice may be split.
// Once money has been approved or drawn, the invoice is committed and must
// be recalled first.
var preApprovalStatuses = map[Status]bool{
	StatusNeedsReview:      true,
	StatusReadyForApproval: true,
}

// ValidateSplit checks the split preconditions.
func ValidateSplit(inv *Invoice, entries []SplitEntry) error {
	if inv.IsSplitParent || inv.IsChild() {
		return ErrAlreadySplit
	}
	if !preApprovalStatuses[inv.Status] {
		return ErrInvalidStatusForSplit
	}
	if len(entries) < 2 {
		return &ValidationError{Field: "splits", Detail: "at least two split entries are required"}
	}

	sum := decimal.Zero
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			return &ValidationError{Field: "splits", Detail: "split amounts must be greater than zero"}
		}
		sum = sum.Add(e.Amount)
	}
	if !WithinEpsilon(sum, inv.Amount) {
		return ErrSplitSumMismatch
	}
	return nil
}

// applySplit freezes the parent. The pre-split amount and status are
// stamped so unsplit can restore them exactly.
func applySplit(parent *Invoice) {
	parent.OriginalAmount = parent.Amount
	parent.PreSplitStatus = parent.Status
	parent.IsSplitParent = true
	parent.Status = StatusSplit
}

// buildChildren constructs the child invoices for a validated split. Each
// child inherits the vendor, purchase order, and invoice date, carries its
// own job and amount, and starts at needs_review.
func buildChildren(parent *Invoice, entries []SplitEntry, newID func() string, now time.Time) []*Invoice {
	children := make([]*Invoice, len(entries))
	for i, e := range entries {
		children[i] = &Invoice{
			ID:              InvoiceID(newID()),
			Number:          parent.Number,
			Amount:          e.Amount,
			Status:          StatusNeedsReview,
			JobID:           e.JobID,
			VendorID:        parent.VendorID,
			PurchaseOrderID: parent.PurchaseOrderID,
			InvoiceDate:     parent.InvoiceDate,
			BilledAmount:    decimal.Zero,
			PaidAmount:      decimal.Zero,
			ParentInvoiceID: parent.ID,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	return children
}

// childProcessed reports whether a child has progressed past review. A
// processed child blocks every operation that would remove it: unsplit and
// undo-of-split alike.
func childProcessed(child *Invoice) bool {
	switch child.Status {
	case StatusApproved, StatusInDraw, StatusPaid:
		return true
	}
	return false
}

// ValidateUnsplit checks that the family can be dissolved. Any child that
// has progressed into approved, in_draw, or paid blocks the operation.
func ValidateUnsplit(parent *Invoice, children []*Invoice) error {
	if !parent.IsSplitParent {
		return &ValidationError{Field: "invoice_id", Detail: "invoice is not a split parent"}
	}
	for _, child := range children {
		if childProcessed(child) {
			return &ChildProcessedError{ChildID: child.ID, Status: child.Status}
		}
	}
	return nil
}

// applyUnsplit restores the parent to its pre-split state.
func applyUnsplit(parent *Invoice) {
	parent.Amount = parent.OriginalAmount
	parent.Status = parent.PreSplitStatus
	parent.IsSplitParent = false
	parent.OriginalAmount = decimal.Zero
	parent.PreSplitStatus = ""
}
