/*
sqlite_test.go - Round-trip tests against an in-memory database

Tests for:
- Invoice CRUD with full field fidelity (decimals, flags, timestamps)
- Soft-delete filtering and undelete
- Allocation replace semantics
- Undo entry supersede/consume
- WithTx rollback
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakeross838/Construction-Management-Software-sub003/billing"
	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testInvoice(id billing.InvoiceID) *billing.Invoice {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &billing.Invoice{
		ID:              id,
		Number:          "INV-100",
		Amount:          decimal.RequireFromString("1426.14"),
		Status:          billing.StatusNeedsReview,
		JobID:           "job-1",
		VendorID:        "vendor-1",
		PurchaseOrderID: "po-7",
		InvoiceDate:     now,
		BilledAmount:    decimal.Zero,
		PaidAmount:      decimal.Zero,
		OriginalAmount:  decimal.Zero,
		ReviewFlags:     []billing.ReviewFlag{billing.FlagPartialApproval},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestInvoice_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testInvoice("inv-1")
	if err := s.CreateInvoice(ctx, want); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	got, err := s.GetInvoice(ctx, "inv-1")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}

	if got.Number != want.Number || got.JobID != want.JobID || got.VendorID != want.VendorID {
		t.Fatalf("identity fields mismatch: %+v", got)
	}
	if !got.Amount.Equal(want.Amount) {
		t.Fatalf("amount %s, want %s", got.Amount, want.Amount)
	}
	if !got.InvoiceDate.Equal(want.InvoiceDate) {
		t.Fatalf("invoice_date %s, want %s", got.InvoiceDate, want.InvoiceDate)
	}
	if !got.HasFlag(billing.FlagPartialApproval) {
		t.Fatal("review flags lost in round trip")
	}
	if got.Version != 1 || got.DeletedAt != nil {
		t.Fatalf("unexpected version/tombstone: %+v", got)
	}
}

func TestGetInvoice_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetInvoice(context.Background(), "missing")
	if billing.CodeOf(err) != billing.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdateInvoice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inv := testInvoice("inv-1")
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	inv.Status = billing.StatusReadyForApproval
	inv.Version = 2
	if err := s.UpdateInvoice(ctx, inv); err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}

	got, _ := s.GetInvoice(ctx, "inv-1")
	if got.Status != billing.StatusReadyForApproval || got.Version != 2 {
		t.Fatalf("update not persisted: %s v%d", got.Status, got.Version)
	}

	// Updating a row that does not exist is NOT_FOUND.
	ghost := testInvoice("ghost")
	if err := s.UpdateInvoice(ctx, ghost); billing.CodeOf(err) != billing.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSoftDelete_FiltersReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateInvoice(ctx, testInvoice("inv-1")); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if err := s.SoftDeleteInvoice(ctx, "inv-1", time.Now()); err != nil {
		t.Fatalf("SoftDeleteInvoice: %v", err)
	}

	if _, err := s.GetInvoice(ctx, "inv-1"); billing.CodeOf(err) != billing.CodeNotFound {
		t.Fatalf("tombstoned invoice should read as absent, got %v", err)
	}
	rows, err := s.ListInvoices(ctx, billing.ListFilter{})
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty listing, got %d", len(rows))
	}

	if err := s.UndeleteInvoice(ctx, "inv-1"); err != nil {
		t.Fatalf("UndeleteInvoice: %v", err)
	}
	if _, err := s.GetInvoice(ctx, "inv-1"); err != nil {
		t.Fatalf("undeleted invoice should be readable, got %v", err)
	}
}

func TestListInvoices_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testInvoice("inv-a")
	b := testInvoice("inv-b")
	b.Status = billing.StatusApproved
	b.JobID = "job-2"
	for _, inv := range []*billing.Invoice{a, b} {
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}

	status := billing.StatusApproved
	rows, err := s.ListInvoices(ctx, billing.ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "inv-b" {
		t.Fatalf("status filter returned %+v", rows)
	}

	job := billing.JobID("job-1")
	rows, err = s.ListInvoices(ctx, billing.ListFilter{JobID: &job})
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "inv-a" {
		t.Fatalf("job filter returned %+v", rows)
	}
}

func TestChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent := testInvoice("parent")
	if err := s.CreateInvoice(ctx, parent); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []billing.InvoiceID{"child-1", "child-2"} {
		c := testInvoice(id)
		c.ParentInvoiceID = "parent"
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreateInvoice(ctx, c); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}

	children, err := s.Children(ctx, "parent")
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 || children[0].ID != "child-1" {
		t.Fatalf("expected 2 ordered children, got %+v", children)
	}

	// A tombstoned child disappears from the family.
	if err := s.SoftDeleteInvoice(ctx, "child-1", time.Now()); err != nil {
		t.Fatalf("SoftDeleteInvoice: %v", err)
	}
	children, _ = s.Children(ctx, "parent")
	if len(children) != 1 || children[0].ID != "child-2" {
		t.Fatalf("expected only child-2, got %+v", children)
	}
}

func TestReplaceAllocations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateInvoice(ctx, testInvoice("inv-1")); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	now := time.Now().UTC()
	first := []billing.Allocation{
		{ID: "a-1", InvoiceID: "inv-1", CostCodeID: "01-100",
			Amount: decimal.RequireFromString("800.00"), CreatedAt: now},
		{ID: "a-2", InvoiceID: "inv-1", CostCodeID: "04-900C",
			Amount: decimal.RequireFromString("100.00"), ChangeOrderID: "co-17", CreatedAt: now},
	}
	if err := s.ReplaceAllocations(ctx, "inv-1", first); err != nil {
		t.Fatalf("ReplaceAllocations: %v", err)
	}

	got, err := s.Allocations(ctx, "inv-1")
	if err != nil {
		t.Fatalf("Allocations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(got))
	}
	if got[1].ChangeOrderID != "co-17" {
		t.Fatalf("change order link lost: %+v", got[1])
	}

	// Replace is whole-set: old rows are gone, not merged.
	second := []billing.Allocation{
		{ID: "a-3", InvoiceID: "inv-1", CostCodeID: "02-200",
			Amount: decimal.RequireFromString("500.00"), CreatedAt: now},
	}
	if err := s.ReplaceAllocations(ctx, "inv-1", second); err != nil {
		t.Fatalf("ReplaceAllocations: %v", err)
	}
	got, _ = s.Allocations(ctx, "inv-1")
	if len(got) != 1 || got[0].ID != "a-3" {
		t.Fatalf("expected replaced set, got %+v", got)
	}

	// Replacing with nil clears the ledger.
	if err := s.ReplaceAllocations(ctx, "inv-1", nil); err != nil {
		t.Fatalf("ReplaceAllocations: %v", err)
	}
	got, _ = s.Allocations(ctx, "inv-1")
	if len(got) != 0 {
		t.Fatalf("expected empty ledger, got %+v", got)
	}
}

func TestUndoEntries_SupersedeAndConsume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := undo.Entry{ID: "u-1", EntityType: "invoice", EntityID: "inv-1",
		Action: undo.ActionStatusChange, Snapshot: []byte(`{}`),
		RecordedVersion: 1, PerformedBy: "pm-1", CreatedAt: now}
	second := undo.Entry{ID: "u-2", EntityType: "invoice", EntityID: "inv-1",
		Action: undo.ActionAllocationUpdate, Snapshot: []byte(`{}`),
		RecordedVersion: 2, PerformedBy: "pm-1", CreatedAt: now.Add(time.Second)}

	if err := s.RecordUndo(ctx, first); err != nil {
		t.Fatalf("RecordUndo: %v", err)
	}
	if err := s.RecordUndo(ctx, second); err != nil {
		t.Fatalf("RecordUndo: %v", err)
	}

	entry, err := s.AvailableUndo(ctx, "invoice", "inv-1")
	if err != nil {
		t.Fatalf("AvailableUndo: %v", err)
	}
	if entry == nil || entry.ID != "u-2" {
		t.Fatalf("expected u-2, got %+v", entry)
	}

	if err := s.ConsumeUndo(ctx, "u-1"); !errors.Is(err, undo.ErrNotFound) {
		t.Fatalf("superseded entry must not consume, got %v", err)
	}
	if err := s.ConsumeUndo(ctx, "u-2"); err != nil {
		t.Fatalf("ConsumeUndo: %v", err)
	}

	entry, err = s.AvailableUndo(ctx, "invoice", "inv-1")
	if err != nil {
		t.Fatalf("AvailableUndo: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected no available entry, got %+v", entry)
	}
}

func TestAvailableUndo_NoEntry(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.AvailableUndo(context.Background(), "invoice", "inv-1")
	if err != nil {
		t.Fatalf("AvailableUndo: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil, got %+v", entry)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateInvoice(ctx, testInvoice("inv-1")); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx billing.Tx) error {
		inv, err := tx.GetInvoice(ctx, "inv-1")
		if err != nil {
			return err
		}
		inv.Status = billing.StatusDenied
		inv.Version = 2
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.CreateInvoice(ctx, testInvoice("inv-2")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := s.GetInvoice(ctx, "inv-1")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != billing.StatusNeedsReview || got.Version != 1 {
		t.Fatalf("rollback left partial state: %s v%d", got.Status, got.Version)
	}
	if _, err := s.GetInvoice(ctx, "inv-2"); billing.CodeOf(err) != billing.CodeNotFound {
		t.Fatalf("rolled-back insert should be absent, got %v", err)
	}
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx billing.Tx) error {
		return tx.CreateInvoice(ctx, testInvoice("inv-1"))
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	if _, err := s.GetInvoice(ctx, "inv-1"); err != nil {
		t.Fatalf("committed invoice should be readable, got %v", err)
	}
}
