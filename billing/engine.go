/*
engine.go - Mutation orchestration

PURPOSE:
  The Engine ties the state machine, allocation ledger, split manager,
  lock gate, and undo log together. Every mutation follows the same shape:

    1. Lock gate: reject if another actor holds an active lease
    2. Open one storage transaction
    3. Load the invoice and its allocations (single consistent snapshot)
    4. Run the guards - all violations detected before any write
    5. Record the undo snapshot
    6. Apply the change, bump the version, commit
    7. Publish a change event (fire-and-forget, after commit)

  A rejected mutation leaves every record exactly as it was: guards run
  before writes, and the transaction rolls back on any failure.

SEE ALSO:
  - transitions.go, allocations.go, split.go: The guards
  - snapshot.go: Undo payload capture and restore
  - events: Change notification fan-out
*/
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jakeross838/Construction-Management-Software-sub003/events"
	"github.com/jakeross838/Construction-Management-Software-sub003/locking"
	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

// Engine orchestrates all invoice mutations.
type Engine struct {
	store Store
	locks *locking.Manager
	bus   events.Publisher

	now   func() time.Time
	newID func() string
}

// NewEngine wires the engine. locks and bus may be nil in tests; a nil bus
// silently drops events and a nil lock manager disables the gate.
func NewEngine(store Store, locks *locking.Manager, bus events.Publisher) *Engine {
	if bus == nil {
		bus = events.Nop{}
	}
	return &Engine{
		store: store,
		locks: locks,
		bus:   bus,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// gate rejects a mutation when an active lease on the invoice is held by a
// different actor. Checked on every mutating call, not just editor open,
// to close the check/use gap.
func (e *Engine) gate(id InvoiceID, actor string) error {
	if e.locks == nil {
		return nil
	}
	return e.locks.HeldByAnother(EntityInvoice, string(id), actor)
}

// recordUndo captures the pre-mutation snapshot inside the transaction.
func (e *Engine) recordUndo(ctx context.Context, tx Tx, inv *Invoice, action, performedBy string) error {
	snapshot, err := captureSnapshot(ctx, tx, inv)
	if err != nil {
		return err
	}
	return tx.RecordUndo(ctx, undo.Entry{
		ID:              e.newID(),
		EntityType:      EntityInvoice,
		EntityID:        string(inv.ID),
		Action:          action,
		Snapshot:        snapshot,
		RecordedVersion: inv.Version,
		PerformedBy:     performedBy,
		CreatedAt:       e.now(),
	})
}

// =============================================================================
// INTAKE AND READS
// =============================================================================

// CreateInvoiceParams describes an intake.
type CreateInvoiceParams struct {
	Number          string
	Amount          decimal.Decimal
	JobID           JobID
	VendorID        VendorID
	PurchaseOrderID string
	InvoiceDate     time.Time
	PerformedBy     string
}

// CreateInvoice records a new invoice at needs_review.
func (e *Engine) CreateInvoice(ctx context.Context, p CreateInvoiceParams) (*Invoice, error) {
	if p.PerformedBy == "" {
		return nil, &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if p.Amount.IsZero() {
		return nil, &ValidationError{Field: "amount", Detail: "must not be zero"}
	}

	now := e.now()
	inv := &Invoice{
		ID:              InvoiceID(e.newID()),
		Number:          p.Number,
		Amount:          p.Amount,
		Status:          StatusNeedsReview,
		JobID:           p.JobID,
		VendorID:        p.VendorID,
		PurchaseOrderID: p.PurchaseOrderID,
		InvoiceDate:     p.InvoiceDate,
		BilledAmount:    decimal.Zero,
		PaidAmount:      decimal.Zero,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateInvoice(ctx, inv)
	}); err != nil {
		return nil, err
	}

	e.bus.Publish(events.InvoiceCreated, invoiceEvent(inv))
	return inv, nil
}

// GetInvoice returns a single non-deleted invoice.
func (e *Engine) GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error) {
	return e.store.GetInvoice(ctx, id)
}

// ListInvoices returns non-deleted invoices, optionally filtered.
func (e *Engine) ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error) {
	return e.store.ListInvoices(ctx, filter)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// Transition moves an invoice along a legal edge.
func (e *Engine) Transition(ctx context.Context, id InvoiceID, to Status, p TransitionParams) (*Invoice, error) {
	if err := e.gate(id, p.PerformedBy); err != nil {
		return nil, err
	}

	var updated *Invoice
	err := e.store.WithTx(ctx, func(tx Tx) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		allocs, err := tx.Allocations(ctx, id)
		if err != nil {
			return err
		}

		if err := CheckTransition(inv, allocs, to, p); err != nil {
			return err
		}
		if err := e.recordUndo(ctx, tx, inv, undo.ActionStatusChange, p.PerformedBy); err != nil {
			return err
		}

		applyTransition(inv, allocs, to, p)
		inv.Version++
		inv.UpdatedAt = e.now()
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(events.InvoiceUpdated, invoiceEvent(updated))
	return updated, nil
}

// =============================================================================
// ALLOCATION LEDGER
// =============================================================================

// SetAllocations replaces the invoice's full allocation set atomically and
// returns the resulting balance summary.
func (e *Engine) SetAllocations(ctx context.Context, id InvoiceID, inputs []AllocationInput, performedBy string) (AllocationSummary, error) {
	if performedBy == "" {
		return AllocationSummary{}, &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if err := e.gate(id, performedBy); err != nil {
		return AllocationSummary{}, err
	}

	var summary AllocationSummary
	err := e.store.WithTx(ctx, func(tx Tx) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusSplit || inv.Status == StatusPaid {
			return &ValidationError{Field: "status",
				Detail: "allocations cannot be edited in status " + string(inv.Status)}
		}
		if err := ValidateAllocations(inv, inputs); err != nil {
			return err
		}
		if err := e.recordUndo(ctx, tx, inv, undo.ActionAllocationUpdate, performedBy); err != nil {
			return err
		}

		now := e.now()
		allocs := make([]Allocation, len(inputs))
		for i, in := range inputs {
			allocs[i] = Allocation{
				ID:            e.newID(),
				InvoiceID:     id,
				CostCodeID:    in.CostCodeID,
				Amount:        in.Amount,
				ChangeOrderID: in.ChangeOrderID,
				CreatedAt:     now,
			}
		}
		if err := tx.ReplaceAllocations(ctx, id, allocs); err != nil {
			return err
		}

		inv.Version++
		inv.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		summary = Summarize(inv, allocs)
		return nil
	})
	if err != nil {
		return AllocationSummary{}, err
	}

	e.bus.Publish(events.InvoiceUpdated, map[string]any{"invoice_id": id, "change": "allocations"})
	return summary, nil
}

// AllocationSummaryFor returns the current balance view of an invoice.
func (e *Engine) AllocationSummaryFor(ctx context.Context, id InvoiceID) (AllocationSummary, []Allocation, error) {
	inv, err := e.store.GetInvoice(ctx, id)
	if err != nil {
		return AllocationSummary{}, nil, err
	}
	allocs, err := e.store.Allocations(ctx, id)
	if err != nil {
		return AllocationSummary{}, nil, err
	}
	return Summarize(inv, allocs), allocs, nil
}

// =============================================================================
// SPLIT / UNSPLIT
// =============================================================================

// Split divides an invoice into children, one per entry, and freezes the
// parent. All child creations and parent updates commit together.
func (e *Engine) Split(ctx context.Context, id InvoiceID, entries []SplitEntry, performedBy string) (*Family, error) {
	if performedBy == "" {
		return nil, &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if err := e.gate(id, performedBy); err != nil {
		return nil, err
	}

	var family *Family
	err := e.store.WithTx(ctx, func(tx Tx) error {
		parent, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateSplit(parent, entries); err != nil {
			return err
		}
		if err := e.recordUndo(ctx, tx, parent, undo.ActionSplit, performedBy); err != nil {
			return err
		}

		now := e.now()
		applySplit(parent)
		parent.Version++
		parent.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, parent); err != nil {
			return err
		}

		children := buildChildren(parent, entries, e.newID, now)
		for _, child := range children {
			if err := tx.CreateInvoice(ctx, child); err != nil {
				return err
			}
		}
		family = &Family{IsSplit: true, Parent: parent, Children: children}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(events.InvoiceSplit, map[string]any{
		"parent_id": family.Parent.ID,
		"children":  len(family.Children),
	})
	return family, nil
}

// Unsplit dissolves a family: deletes all children and restores the parent
// to its pre-split amount and status.
func (e *Engine) Unsplit(ctx context.Context, id InvoiceID, performedBy string) (*Invoice, error) {
	if performedBy == "" {
		return nil, &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if err := e.gate(id, performedBy); err != nil {
		return nil, err
	}

	var parent *Invoice
	err := e.store.WithTx(ctx, func(tx Tx) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		children, err := tx.Children(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateUnsplit(inv, children); err != nil {
			return err
		}
		if err := e.recordUndo(ctx, tx, inv, undo.ActionUnsplit, performedBy); err != nil {
			return err
		}

		now := e.now()
		for _, child := range children {
			if err := tx.SoftDeleteInvoice(ctx, child.ID, now); err != nil {
				return err
			}
		}

		applyUnsplit(inv)
		inv.Version++
		inv.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		parent = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(events.InvoiceUnsplit, invoiceEvent(parent))
	return parent, nil
}

// Family resolves the split family from either the parent or a child id.
func (e *Engine) Family(ctx context.Context, id InvoiceID) (*Family, error) {
	inv, err := e.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	root := inv
	if inv.IsChild() {
		root, err = e.store.GetInvoice(ctx, inv.ParentInvoiceID)
		if err != nil {
			return nil, err
		}
	}
	if !root.IsSplitParent {
		return &Family{IsSplit: false, Parent: root}, nil
	}
	children, err := e.store.Children(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	return &Family{IsSplit: true, Parent: root, Children: children}, nil
}

// =============================================================================
// PARTIAL BILLING CYCLE
// =============================================================================

// FinalizeBilling records the portion of an in_draw invoice covered by a
// finalized draw batch. A partially billed invoice re-enters needs_review
// with a cleared allocation ledger so the remainder can fund a later draw.
func (e *Engine) FinalizeBilling(ctx context.Context, id InvoiceID, portion decimal.Decimal, performedBy string) (*Invoice, error) {
	if performedBy == "" {
		return nil, &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if err := e.gate(id, performedBy); err != nil {
		return nil, err
	}

	var updated *Invoice
	err := e.store.WithTx(ctx, func(tx Tx) error {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusInDraw {
			return &TransitionError{From: inv.Status, To: inv.Status,
				Reason: "billing can only be finalized while in a draw"}
		}
		if !portion.IsPositive() {
			return &ValidationError{Field: "amount", Detail: "billed portion must be positive"}
		}
		if ExceedsWithEpsilon(inv.BilledAmount.Add(portion), inv.Amount) {
			return &ValidationError{Field: "amount", Detail: "billed portion exceeds the open amount"}
		}
		if err := e.recordUndo(ctx, tx, inv, undo.ActionBillingFinalized, performedBy); err != nil {
			return err
		}

		now := e.now()
		inv.BilledAmount = inv.BilledAmount.Add(portion)
		if inv.OpenAmount().GreaterThan(Epsilon) {
			// Remainder funds a later cycle: back to review with an empty
			// ledger.
			inv.Status = StatusNeedsReview
			inv.DrawID = ""
			inv.RemoveFlag(FlagPartialApproval)
			if err := tx.ReplaceAllocations(ctx, id, nil); err != nil {
				return err
			}
		}
		inv.Version++
		inv.UpdatedAt = now
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(events.InvoiceUpdated, invoiceEvent(updated))
	return updated, nil
}

// =============================================================================
// UNDO
// =============================================================================

// UndoResult reports a completed rollback.
type UndoResult struct {
	UndoneAction string
	Label        string
	Restored     *Invoice
}

// AvailableUndo returns the entity's current available undo entry, nil if
// none exists.
func (e *Engine) AvailableUndo(ctx context.Context, entityType, entityID string) (*undo.Entry, error) {
	return e.store.AvailableUndo(ctx, entityType, entityID)
}

// Undo atomically consumes the entity's available entry and overwrites the
// entity (and allocation set, and child tombstones) with the recorded
// prior state.
func (e *Engine) Undo(ctx context.Context, entityType, entityID, performedBy string) (*UndoResult, error) {
	if performedBy == "" {
		return nil, &ValidationError{Field: "performed_by", Detail: "required"}
	}
	if entityType != EntityInvoice {
		return nil, &ValidationError{Field: "entity_type",
			Detail: "undo is not supported for " + entityType}
	}
	id := InvoiceID(entityID)
	if err := e.gate(id, performedBy); err != nil {
		return nil, err
	}

	var result *UndoResult
	err := e.store.WithTx(ctx, func(tx Tx) error {
		entry, err := tx.AvailableUndo(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if entry == nil {
			return undo.ErrNotFound
		}

		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.Version != entry.RecordedVersion+1 {
			return &undo.StaleError{
				EntityType:      entityType,
				EntityID:        entityID,
				RecordedVersion: entry.RecordedVersion,
				CurrentVersion:  inv.Version,
			}
		}

		payload, err := decodeSnapshot(entry.Snapshot)
		if err != nil {
			return err
		}
		if err := tx.ConsumeUndo(ctx, entry.ID); err != nil {
			return err
		}
		restored, err := e.restoreSnapshot(ctx, tx, payload, inv.Version)
		if err != nil {
			return err
		}
		result = &UndoResult{
			UndoneAction: entry.Action,
			Label:        entry.Label(),
			Restored:     restored,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.bus.Publish(events.InvoiceUndone, map[string]any{
		"invoice_id": result.Restored.ID,
		"action":     result.UndoneAction,
	})
	return result, nil
}

// restoreSnapshot overwrites the invoice, its allocation set, and its child
// tombstones with the recorded prior state. The restore itself advances the
// version: it is a mutation like any other, just one whose content is the
// past.
func (e *Engine) restoreSnapshot(ctx context.Context, tx Tx, payload *snapshotPayload, currentVersion int64) (*Invoice, error) {
	restored := payload.Invoice
	restored.Version = currentVersion + 1
	restored.UpdatedAt = e.now()
	if err := tx.UpdateInvoice(ctx, &restored); err != nil {
		return nil, err
	}
	if err := tx.ReplaceAllocations(ctx, restored.ID, payload.Allocations); err != nil {
		return nil, err
	}

	// Reconcile children: tombstone the ones the snapshot does not know,
	// clear tombstones on the ones it does. A child that has progressed
	// past review holds committed financial state, so it blocks the
	// restore the same way it blocks an unsplit.
	current, err := tx.Children(ctx, restored.ID)
	if err != nil {
		return nil, err
	}
	want := make(map[InvoiceID]bool, len(payload.Children))
	for _, c := range payload.Children {
		want[c.ID] = true
	}
	have := make(map[InvoiceID]bool, len(current))
	now := e.now()
	for _, c := range current {
		have[c.ID] = true
		if !want[c.ID] {
			if childProcessed(c) {
				return nil, &ChildProcessedError{ChildID: c.ID, Status: c.Status}
			}
			if err := tx.SoftDeleteInvoice(ctx, c.ID, now); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range payload.Children {
		if !have[c.ID] {
			if err := tx.UndeleteInvoice(ctx, c.ID); err != nil {
				return nil, err
			}
		}
	}
	return &restored, nil
}

// invoiceEvent is the envelope body for invoice change events.
func invoiceEvent(inv *Invoice) map[string]any {
	return map[string]any{
		"invoice_id": inv.ID,
		"status":     inv.Status,
		"version":    inv.Version,
	}
}
