/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates invoices, allocations,
	and status history that demonstrate specific features.

AVAILABLE SCENARIOS:

	review-queue:     A batch of fresh invoices awaiting review
	approval-flow:    Invoices at each lifecycle stage with allocations
	split-family:     A split invoice spread across three jobs
	change-orders:    Change-order-coded allocations, some unlinked

HOW SCENARIOS WORK:
 1. Create invoices via the engine (so versions and events are real)
 2. Allocate cost codes
 3. Walk invoices through status transitions

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "approval-flow"}

NOTE:

	Scenarios add data; they do not reset the database. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Handler dependencies
  - server.go: Route registration
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakeross838/Construction-Management-Software-sub003/billing"
)

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "review-queue",
		Name:        "Review Queue",
		Description: "A batch of fresh vendor invoices awaiting review",
	},
	{
		ID:          "approval-flow",
		Name:        "Approval Flow",
		Description: "Invoices at each lifecycle stage with cost-code allocations",
	},
	{
		ID:          "split-family",
		Name:        "Split Family",
		Description: "One invoice split across three jobs",
	},
	{
		ID:          "change-orders",
		Name:        "Change Orders",
		Description: "Change-order-coded allocations, one left unlinked",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario populates the database with a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "review-queue":
		err = h.loadReviewQueueScenario(ctx)
	case "approval-flow":
		err = h.loadApprovalFlowScenario(ctx)
	case "split-family":
		err = h.loadSplitFamilyScenario(ctx)
	case "change-orders":
		err = h.loadChangeOrdersScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const scenarioActor = "demo"

func (h *Handler) seedInvoice(ctx context.Context, number, amount, job, vendor string) (*billing.Invoice, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return h.Engine.CreateInvoice(ctx, billing.CreateInvoiceParams{
		Number:      number,
		Amount:      amt,
		JobID:       billing.JobID(job),
		VendorID:    billing.VendorID(vendor),
		InvoiceDate: time.Now().UTC(),
		PerformedBy: scenarioActor,
	})
}

func (h *Handler) loadReviewQueueScenario(ctx context.Context) error {
	seeds := []struct {
		number, amount, job, vendor string
	}{
		{"INV-1001", "4250.00", "job-oakridge", "vendor-acme-concrete"},
		{"INV-1002", "18730.50", "job-oakridge", "vendor-steel-supply"},
		{"INV-1003", "960.00", "job-maple", "vendor-plumbing-pro"},
		{"INV-1004", "-500.00", "job-maple", "vendor-plumbing-pro"},
		{"INV-1005", "7200.00", "job-hillcrest", "vendor-electric-co"},
	}
	for _, s := range seeds {
		if _, err := h.seedInvoice(ctx, s.number, s.amount, s.job, s.vendor); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadApprovalFlowScenario(ctx context.Context) error {
	// One invoice per lifecycle stage.
	inv, err := h.seedInvoice(ctx, "INV-2001", "12000.00", "job-oakridge", "vendor-framing")
	if err != nil {
		return err
	}
	if err := h.allocateFully(ctx, inv, "01-300"); err != nil {
		return err
	}
	if _, err := h.Engine.Transition(ctx, inv.ID, billing.StatusReadyForApproval,
		billing.TransitionParams{PerformedBy: scenarioActor}); err != nil {
		return err
	}

	inv, err = h.seedInvoice(ctx, "INV-2002", "5400.00", "job-oakridge", "vendor-roofing")
	if err != nil {
		return err
	}
	if err := h.allocateFully(ctx, inv, "02-100"); err != nil {
		return err
	}
	for _, step := range []billing.Status{billing.StatusReadyForApproval, billing.StatusApproved} {
		if _, err := h.Engine.Transition(ctx, inv.ID, step,
			billing.TransitionParams{PerformedBy: scenarioActor}); err != nil {
			return err
		}
	}

	inv, err = h.seedInvoice(ctx, "INV-2003", "2100.00", "job-maple", "vendor-drywall")
	if err != nil {
		return err
	}
	if err := h.allocateFully(ctx, inv, "03-200"); err != nil {
		return err
	}
	steps := []struct {
		to billing.Status
		p  billing.TransitionParams
	}{
		{billing.StatusReadyForApproval, billing.TransitionParams{PerformedBy: scenarioActor}},
		{billing.StatusApproved, billing.TransitionParams{PerformedBy: scenarioActor}},
		{billing.StatusInDraw, billing.TransitionParams{PerformedBy: scenarioActor, DrawID: "draw-2026-08"}},
		{billing.StatusPaid, billing.TransitionParams{PerformedBy: scenarioActor}},
	}
	for _, s := range steps {
		if _, err := h.Engine.Transition(ctx, inv.ID, s.to, s.p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSplitFamilyScenario(ctx context.Context) error {
	inv, err := h.seedInvoice(ctx, "INV-3001", "30000.00", "job-oakridge", "vendor-sitework")
	if err != nil {
		return err
	}
	_, err = h.Engine.Split(ctx, inv.ID, []billing.SplitEntry{
		{JobID: "job-oakridge", Amount: decimal.NewFromInt(15000)},
		{JobID: "job-maple", Amount: decimal.NewFromInt(9000)},
		{JobID: "job-hillcrest", Amount: decimal.NewFromInt(6000), Notes: "shared mobilization"},
	}, scenarioActor)
	return err
}

func (h *Handler) loadChangeOrdersScenario(ctx context.Context) error {
	inv, err := h.seedInvoice(ctx, "INV-4001", "8000.00", "job-hillcrest", "vendor-electric-co")
	if err != nil {
		return err
	}
	// One base line, one linked change-order line, one left unlinked so
	// approval demonstrates the link guard.
	_, err = h.Engine.SetAllocations(ctx, inv.ID, []billing.AllocationInput{
		{CostCodeID: "04-100", Amount: decimal.NewFromInt(5000)},
		{CostCodeID: "04-900C", Amount: decimal.NewFromInt(2000), ChangeOrderID: "co-17"},
		{CostCodeID: "04-910C", Amount: decimal.NewFromInt(1000)},
	}, scenarioActor)
	if err != nil {
		return err
	}
	_, err = h.Engine.Transition(ctx, inv.ID, billing.StatusReadyForApproval,
		billing.TransitionParams{PerformedBy: scenarioActor})
	return err
}

func (h *Handler) allocateFully(ctx context.Context, inv *billing.Invoice, costCode string) error {
	_, err := h.Engine.SetAllocations(ctx, inv.ID, []billing.AllocationInput{
		{CostCodeID: billing.CostCodeID(costCode), Amount: inv.Amount},
	}, scenarioActor)
	return err
}
