// Package store provides an in-memory billing.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub003/billing"
	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements billing.Store with plain maps. WithTx snapshots the
// whole state up front and restores it when fn fails, so the rollback
// semantics match the sqlite store.
type Memory struct {
	mu          sync.Mutex
	invoices    map[billing.InvoiceID]*billing.Invoice
	allocations map[billing.InvoiceID][]billing.Allocation
	undos       map[string]*undo.Entry
}

func NewMemory() *Memory {
	return &Memory{
		invoices:    make(map[billing.InvoiceID]*billing.Invoice),
		allocations: make(map[billing.InvoiceID][]billing.Allocation),
		undos:       make(map[string]*undo.Entry),
	}
}

// WithTx rolls the whole state back when fn errors.
func (m *Memory) WithTx(ctx context.Context, fn func(billing.Tx) error) error {
	m.mu.Lock()
	backup := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.invoices = backup.invoices
		m.allocations = backup.allocations
		m.undos = backup.undos
		m.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	invoices    map[billing.InvoiceID]*billing.Invoice
	allocations map[billing.InvoiceID][]billing.Allocation
	undos       map[string]*undo.Entry
}

func (m *Memory) snapshotLocked() memSnapshot {
	s := memSnapshot{
		invoices:    make(map[billing.InvoiceID]*billing.Invoice, len(m.invoices)),
		allocations: make(map[billing.InvoiceID][]billing.Allocation, len(m.allocations)),
		undos:       make(map[string]*undo.Entry, len(m.undos)),
	}
	for id, inv := range m.invoices {
		s.invoices[id] = inv.Clone()
	}
	for id, allocs := range m.allocations {
		s.allocations[id] = append([]billing.Allocation(nil), allocs...)
	}
	for id, e := range m.undos {
		cp := *e
		s.undos[id] = &cp
	}
	return s
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) GetInvoice(_ context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok || inv.DeletedAt != nil {
		return nil, &billing.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	return inv.Clone(), nil
}

func (m *Memory) CreateInvoice(_ context.Context, inv *billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv.Clone()
	return nil
}

func (m *Memory) UpdateInvoice(_ context.Context, inv *billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[inv.ID]; !ok {
		return &billing.NotFoundError{Kind: "invoice", ID: string(inv.ID)}
	}
	m.invoices[inv.ID] = inv.Clone()
	return nil
}

func (m *Memory) SoftDeleteInvoice(_ context.Context, id billing.InvoiceID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inv, ok := m.invoices[id]; ok {
		t := at
		inv.DeletedAt = &t
	}
	return nil
}

func (m *Memory) UndeleteInvoice(_ context.Context, id billing.InvoiceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inv, ok := m.invoices[id]; ok {
		inv.DeletedAt = nil
	}
	return nil
}

func (m *Memory) Children(_ context.Context, parentID billing.InvoiceID) ([]*billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var children []*billing.Invoice
	for _, inv := range m.invoices {
		if inv.ParentInvoiceID == parentID && inv.DeletedAt == nil {
			children = append(children, inv.Clone())
		}
	}
	sortInvoices(children)
	return children, nil
}

func (m *Memory) ListInvoices(_ context.Context, filter billing.ListFilter) ([]*billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*billing.Invoice
	for _, inv := range m.invoices {
		if inv.DeletedAt != nil {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.JobID != nil && inv.JobID != *filter.JobID {
			continue
		}
		out = append(out, inv.Clone())
	}
	sortInvoices(out)
	return out, nil
}

func sortInvoices(invs []*billing.Invoice) {
	sort.Slice(invs, func(i, j int) bool {
		if invs[i].CreatedAt.Equal(invs[j].CreatedAt) {
			return invs[i].ID < invs[j].ID
		}
		return invs[i].CreatedAt.Before(invs[j].CreatedAt)
	})
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (m *Memory) Allocations(_ context.Context, invoiceID billing.InvoiceID) ([]billing.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]billing.Allocation(nil), m.allocations[invoiceID]...), nil
}

func (m *Memory) ReplaceAllocations(_ context.Context, invoiceID billing.InvoiceID, allocs []billing.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(allocs) == 0 {
		delete(m.allocations, invoiceID)
		return nil
	}
	m.allocations[invoiceID] = append([]billing.Allocation(nil), allocs...)
	return nil
}

// =============================================================================
// UNDO ENTRIES
// =============================================================================

func (m *Memory) RecordUndo(_ context.Context, entry undo.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.undos {
		if existing.EntityType == entry.EntityType &&
			existing.EntityID == entry.EntityID &&
			existing.Available() {
			existing.Superseded = true
		}
	}
	cp := entry
	m.undos[entry.ID] = &cp
	return nil
}

func (m *Memory) AvailableUndo(_ context.Context, entityType, entityID string) (*undo.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.undos {
		if e.EntityType == entityType && e.EntityID == entityID && e.Available() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ConsumeUndo(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.undos[entryID]
	if !ok || !e.Available() {
		return undo.ErrNotFound
	}
	e.Consumed = true
	return nil
}
