/*
allocations.go - Allocation ledger validation and summaries

PURPOSE:
  Validates how an invoice's amount is distributed across cost codes and
  computes the balance summary displayed next to the coding editor.

RULES (checked in order):
  (a) every amount must be positive
  (b) every entry must name a cost code
  (c) the sum must not exceed the invoice amount by more than epsilon

  Over-allocation is always rejected. Under-allocation is always accepted
  and flagged for display - money left to code is normal mid-cycle, money
  double-counted is never acceptable.

REPLACE SEMANTICS:
  Allocation sets are rewritten whole (delete-then-insert), never merged.
  The engine performs the replace inside one storage transaction.

SEE ALSO:
  - transitions.go: Approval guard re-checks the same balance rules
  - engine.go: SetAllocations orchestration
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// AllocationInput is one caller-supplied allocation line.
type AllocationInput struct {
	CostCodeID    CostCodeID
	Amount        decimal.Decimal
	ChangeOrderID ChangeOrderID
}

// AllocationSummary is the balance view of an invoice's allocation set.
type AllocationSummary struct {
	Total     decimal.Decimal
	Remaining decimal.Decimal
	Balanced  bool
}

// ValidateAllocations checks a replacement allocation set against the
// invoice. Returns an *AllocationError naming the first failing rule.
func ValidateAllocations(inv *Invoice, inputs []AllocationInput) error {
	for _, in := range inputs {
		if !in.Amount.IsPositive() {
			return &AllocationError{Rule: "amount_not_positive",
				Detail: "allocation amounts must be greater than zero"}
		}
	}
	for _, in := range inputs {
		if in.CostCodeID == "" {
			return &AllocationError{Rule: "missing_cost_code",
				Detail: "every allocation must name a cost code"}
		}
	}

	total := decimal.Zero
	for _, in := range inputs {
		total = total.Add(in.Amount)
	}
	if ExceedsWithEpsilon(total, inv.Amount) {
		return &AllocationError{Rule: "over_allocation",
			Detail: "allocated " + total.StringFixed(2) +
				" exceeds invoice amount " + inv.Amount.StringFixed(2)}
	}

	return nil
}

// Summarize computes {total, remaining, balanced} for an allocation set.
func Summarize(inv *Invoice, allocs []Allocation) AllocationSummary {
	total := AllocationTotal(allocs)
	remaining := inv.Amount.Sub(total)
	return AllocationSummary{
		Total:     total,
		Remaining: remaining,
		Balanced:  remaining.Abs().LessThanOrEqual(Epsilon),
	}
}
