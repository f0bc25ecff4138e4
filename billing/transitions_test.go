package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func reviewInvoice(amount string) *Invoice {
	return &Invoice{
		ID:       "inv-1",
		Number:   "INV-100",
		Amount:   money(amount),
		Status:   StatusNeedsReview,
		JobID:    "job-1",
		VendorID: "vendor-1",
		Version:  1,
	}
}

func alloc(code string, amount string, changeOrder ChangeOrderID) Allocation {
	return Allocation{
		ID:            "alloc-" + code,
		InvoiceID:     "inv-1",
		CostCodeID:    CostCodeID(code),
		Amount:        money(amount),
		ChangeOrderID: changeOrder,
	}
}

func actor() TransitionParams {
	return TransitionParams{PerformedBy: "pm-1"}
}

// =============================================================================
// EDGE TABLE
// =============================================================================

func TestTransitionTable_IsTotal(t *testing.T) {
	// Every (from, to) pair has a defined answer; anything outside the
	// edge list is rejected.
	allowed := map[Status]map[Status]bool{
		StatusNeedsReview:      {StatusReadyForApproval: true, StatusDenied: true},
		StatusReadyForApproval: {StatusApproved: true, StatusDenied: true, StatusNeedsReview: true},
		StatusApproved:         {StatusInDraw: true, StatusReadyForApproval: true},
		StatusInDraw:           {StatusPaid: true, StatusApproved: true},
		StatusDenied:           {StatusNeedsReview: true},
		StatusPaid:             {StatusInDraw: true},
		StatusSplit:            {},
	}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			got := TransitionAllowed(from, to)
			want := allowed[from][to]
			if got != want {
				t.Errorf("TransitionAllowed(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionTable_SplitIsTerminal(t *testing.T) {
	for _, to := range Statuses() {
		if TransitionAllowed(StatusSplit, to) {
			t.Errorf("split must have no outgoing edges, but %s is allowed", to)
		}
	}
}

// =============================================================================
// GUARDS
// =============================================================================

func TestCheckTransition_RequiresPerformedBy(t *testing.T) {
	inv := reviewInvoice("100.00")

	err := CheckTransition(inv, nil, StatusReadyForApproval, TransitionParams{})
	if CodeOf(err) != CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestCheckTransition_ReadyRequiresJobAndVendor(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.VendorID = ""

	err := CheckTransition(inv, nil, StatusReadyForApproval, actor())
	if CodeOf(err) != CodeTransitionNotAllowed {
		t.Fatalf("expected TRANSITION_NOT_ALLOWED, got %v", err)
	}

	inv.VendorID = "vendor-1"
	if err := CheckTransition(inv, nil, StatusReadyForApproval, actor()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestCheckTransition_IllegalEdge(t *testing.T) {
	inv := reviewInvoice("100.00")

	err := CheckTransition(inv, nil, StatusPaid, actor())
	if CodeOf(err) != CodeTransitionNotAllowed {
		t.Fatalf("expected TRANSITION_NOT_ALLOWED, got %v", err)
	}
}

func TestApprovalGuard_OverAllocationRejected(t *testing.T) {
	inv := reviewInvoice("1426.14")
	inv.Status = StatusReadyForApproval
	allocs := []Allocation{alloc("01-100", "1500.00", "")}

	err := CheckTransition(inv, allocs, StatusApproved, actor())
	if CodeOf(err) != CodeAllocationInvalid {
		t.Fatalf("expected ALLOCATION_INVALID, got %v", err)
	}
}

func TestApprovalGuard_WithinEpsilonPasses(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.Status = StatusReadyForApproval
	allocs := []Allocation{alloc("01-100", "100.01", "")}

	if err := CheckTransition(inv, allocs, StatusApproved, actor()); err != nil {
		t.Fatalf("sum within epsilon should pass, got %v", err)
	}
}

func TestApprovalGuard_UnlinkedChangeOrderBlocks(t *testing.T) {
	// A cost code ending in C denotes a change-order line; approval
	// requires the link, and linking it clears the guard.
	inv := reviewInvoice("8000.00")
	inv.Status = StatusReadyForApproval
	allocs := []Allocation{
		alloc("04-100", "5000.00", ""),
		alloc("04-900C", "3000.00", ""),
	}

	err := CheckTransition(inv, allocs, StatusApproved, actor())
	if CodeOf(err) != CodeChangeOrderLinkRequired {
		t.Fatalf("expected CHANGE_ORDER_LINK_REQUIRED, got %v", err)
	}

	allocs[1].ChangeOrderID = "co-17"
	if err := CheckTransition(inv, allocs, StatusApproved, actor()); err != nil {
		t.Fatalf("linked change order should pass, got %v", err)
	}
}

func TestApprovalGuard_UnderAllocationNeedsNote(t *testing.T) {
	inv := reviewInvoice("1426.14")
	inv.Status = StatusReadyForApproval
	allocs := []Allocation{alloc("01-100", "800.00", "")}

	err := CheckTransition(inv, allocs, StatusApproved, actor())
	if CodeOf(err) != CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED without note, got %v", err)
	}

	p := actor()
	p.Note = "vendor will invoice the remainder next month"
	if err := CheckTransition(inv, allocs, StatusApproved, p); err != nil {
		t.Fatalf("expected success with note, got %v", err)
	}
}

func TestCheckTransition_InDrawRequiresDrawID(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.Status = StatusApproved

	if err := CheckTransition(inv, nil, StatusInDraw, actor()); CodeOf(err) != CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED without draw_id, got %v", err)
	}

	p := actor()
	p.DrawID = "draw-1"
	if err := CheckTransition(inv, nil, StatusInDraw, p); err != nil {
		t.Fatalf("expected success with draw_id, got %v", err)
	}
}

func TestCheckTransition_PaidRequiresExplicitUnpay(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.Status = StatusPaid

	if err := CheckTransition(inv, nil, StatusInDraw, actor()); CodeOf(err) != CodeTransitionNotAllowed {
		t.Fatalf("expected TRANSITION_NOT_ALLOWED without unpay, got %v", err)
	}

	p := actor()
	p.Unpay = true
	if err := CheckTransition(inv, nil, StatusInDraw, p); err != nil {
		t.Fatalf("expected success with unpay, got %v", err)
	}
}

// =============================================================================
// FIELD EFFECTS
// =============================================================================

func TestApplyTransition_PartialApprovalFlag(t *testing.T) {
	inv := reviewInvoice("1426.14")
	inv.Status = StatusReadyForApproval
	allocs := []Allocation{alloc("01-100", "800.00", "")}

	applyTransition(inv, allocs, StatusApproved, actor())

	if !inv.HasFlag(FlagPartialApproval) {
		t.Fatal("partial approval should set the flag")
	}

	// Re-approving fully allocated clears the flag.
	inv.Status = StatusReadyForApproval
	full := []Allocation{alloc("01-100", "1426.14", "")}
	applyTransition(inv, full, StatusApproved, actor())

	if inv.HasFlag(FlagPartialApproval) {
		t.Fatal("full approval should clear the flag")
	}
}

func TestApplyTransition_DrawMembership(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.Status = StatusApproved

	p := actor()
	p.DrawID = "draw-9"
	applyTransition(inv, nil, StatusInDraw, p)
	if inv.DrawID != "draw-9" {
		t.Fatalf("expected draw-9, got %s", inv.DrawID)
	}

	applyTransition(inv, nil, StatusApproved, actor())
	if inv.DrawID != "" {
		t.Fatalf("leaving the draw should clear draw_id, got %s", inv.DrawID)
	}
}

func TestApplyTransition_PaidAmount(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.Status = StatusInDraw

	applyTransition(inv, nil, StatusPaid, actor())
	if !inv.PaidAmount.Equal(money("100.00")) {
		t.Fatalf("expected paid 100.00, got %s", inv.PaidAmount)
	}

	// Unpay reverses the payment.
	p := actor()
	p.Unpay = true
	applyTransition(inv, nil, StatusInDraw, p)
	if !inv.PaidAmount.IsZero() {
		t.Fatalf("unpay should zero paid_amount, got %s", inv.PaidAmount)
	}
}

func TestApplyTransition_PartiallyBilledPaysBilledAmount(t *testing.T) {
	inv := reviewInvoice("100.00")
	inv.Status = StatusInDraw
	inv.BilledAmount = money("60.00")

	applyTransition(inv, nil, StatusPaid, actor())
	if !inv.PaidAmount.Equal(money("60.00")) {
		t.Fatalf("expected paid 60.00 (the billed portion), got %s", inv.PaidAmount)
	}
}

// =============================================================================
// STATUS PARSING
// =============================================================================

func TestParseStatus_LegacyAliases(t *testing.T) {
	cases := map[string]Status{
		"received":           StatusNeedsReview,
		"needs_review":       StatusNeedsReview,
		"needs_approval":     StatusReadyForApproval,
		"ready_for_approval": StatusReadyForApproval,
		"  Approved ":        StatusApproved,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseStatus("bogus"); CodeOf(err) != CodeValidationFailed {
		t.Fatalf("unknown status should fail validation, got %v", err)
	}
}
