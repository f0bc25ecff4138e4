/*
transitions.go - Invoice status state machine

PURPOSE:
  Encodes the legal status edges and the guard checks that protect them.
  The table is hard-coded: this is a billing lifecycle, not a configurable
  workflow engine. Any (from, to) pair not in the table is rejected, never
  silently accepted.

EDGES:
  needs_review       -> ready_for_approval   job and vendor assigned
  needs_review       -> denied
  ready_for_approval -> approved             allocation balance + change-order guard
  ready_for_approval -> denied
  ready_for_approval -> needs_review         (sent back)
  approved           -> in_draw              target draw id required
  approved           -> ready_for_approval   (recall)
  in_draw            -> paid
  in_draw            -> approved             (removed from draw)
  denied             -> needs_review
  paid               -> in_draw              explicit unpay only

  split is entered only through the split operation and left only through
  unsplit; it has no edges here.

GUARD ORDER ON APPROVAL:
  1. Over-allocation rejected (sum > amount + epsilon)
  2. Change-order-coded lines must carry a change order link
  3. Under-allocation requires a note and sets the partial_approval flag

SEE ALSO:
  - allocations.go: The balance computations the guards consume
  - engine.go: Persists the transition and its undo snapshot
*/
package billing

import "github.com/shopspring/decimal"

// TransitionParams carries caller-supplied context for a transition.
type TransitionParams struct {
	PerformedBy string

	// Note is required when approving an under-allocated invoice.
	Note string

	// DrawID is required for approved -> in_draw.
	DrawID DrawID

	// Unpay must be set for paid -> in_draw; it is the explicit reversal
	// of a payment, not a routine edit.
	Unpay bool
}

// legalTransitions is the complete edge table.
var legalTransitions = map[Status][]Status{
	StatusNeedsReview:      {StatusReadyForApproval, StatusDenied},
	StatusReadyForApproval: {StatusApproved, StatusDenied, StatusNeedsReview},
	StatusApproved:         {StatusInDraw, StatusReadyForApproval},
	StatusInDraw:           {StatusPaid, StatusApproved},
	StatusDenied:           {StatusNeedsReview},
	StatusPaid:             {StatusInDraw},
	StatusSplit:            {},
}

// TransitionAllowed reports whether the edge exists in the table. Guards
// are checked separately by CheckTransition.
func TransitionAllowed(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition validates the edge and all of its guards against a single
// consistent snapshot of the invoice and its allocation set. It performs no
// writes; violations are detected before anything is persisted.
func CheckTransition(inv *Invoice, allocs []Allocation, to Status, p TransitionParams) error {
	if p.PerformedBy == "" {
		return &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if !TransitionAllowed(inv.Status, to) {
		return &TransitionError{From: inv.Status, To: to}
	}

	switch {
	case inv.Status == StatusNeedsReview && to == StatusReadyForApproval:
		if inv.JobID == "" || inv.VendorID == "" {
			return &TransitionError{From: inv.Status, To: to,
				Reason: "job and vendor must be assigned"}
		}

	case inv.Status == StatusReadyForApproval && to == StatusApproved:
		return checkApprovalGuards(inv, allocs, p)

	case inv.Status == StatusApproved && to == StatusInDraw:
		if p.DrawID == "" {
			return &ValidationError{Field: "draw_id", Detail: "target draw is required"}
		}

	case inv.Status == StatusPaid && to == StatusInDraw:
		if !p.Unpay {
			return &TransitionError{From: inv.Status, To: to,
				Reason: "paid invoices can only be reversed by an explicit unpay"}
		}
	}

	return nil
}

// checkApprovalGuards enforces the approval balance rules and the
// change-order linkage requirement.
func checkApprovalGuards(inv *Invoice, allocs []Allocation, p TransitionParams) error {
	total := AllocationTotal(allocs)

	if ExceedsWithEpsilon(total, inv.Amount) {
		return &AllocationError{Rule: "over_allocation",
			Detail: "allocated " + total.StringFixed(2) + " exceeds invoice amount " + inv.Amount.StringFixed(2)}
	}

	// Every change-order-coded line must be linked before approval. The
	// client redirects to the coding editor on this error; the server
	// re-validates here as a hard guard.
	var unlinked []CostCodeID
	for _, a := range allocs {
		if IsChangeOrderCoded(a.CostCodeID) && a.ChangeOrderID == "" {
			unlinked = append(unlinked, a.CostCodeID)
		}
	}
	if len(unlinked) > 0 {
		return &ChangeOrderLinkError{CostCodes: unlinked}
	}

	if underAllocated(inv, total) && p.Note == "" {
		return &ValidationError{Field: "note",
			Detail: "a note is required to approve a partially allocated invoice"}
	}

	return nil
}

func underAllocated(inv *Invoice, total decimal.Decimal) bool {
	return inv.Amount.Sub(total).GreaterThan(Epsilon)
}

// applyTransition mutates the invoice fields for a validated edge. Callers
// have already run CheckTransition against the same snapshot.
func applyTransition(inv *Invoice, allocs []Allocation, to Status, p TransitionParams) {
	from := inv.Status
	inv.Status = to

	switch {
	case from == StatusReadyForApproval && to == StatusApproved:
		if underAllocated(inv, AllocationTotal(allocs)) {
			inv.AddFlag(FlagPartialApproval)
		} else {
			inv.RemoveFlag(FlagPartialApproval)
		}

	case from == StatusApproved && to == StatusInDraw:
		inv.DrawID = p.DrawID

	case from == StatusInDraw && to == StatusApproved:
		// Removed from its draw.
		inv.DrawID = ""

	case from == StatusInDraw && to == StatusPaid:
		if inv.BilledAmount.IsZero() {
			inv.PaidAmount = inv.Amount
		} else {
			inv.PaidAmount = inv.BilledAmount
		}

	case from == StatusPaid && to == StatusInDraw:
		// Unpay: the payment is reversed, the invoice returns to its draw.
		inv.PaidAmount = decimal.Zero
	}
}
