/*
store.go - Persistence interface for invoices, allocations, and undo entries

PURPOSE:
  Defines the interface between the engine and the database. Undo entries
  live behind the same interface so a mutation and its snapshot commit in
  one transaction.

SOFT DELETE:
  Invoices are never hard-deleted. GetInvoice and Children filter
  tombstoned rows; UndeleteInvoice clears a tombstone (used when an undo
  restores children removed by a split reversal).

TRANSACTIONS:
  WithTx runs fn against a transactional view. If fn returns an error the
  transaction rolls back and no partial effects remain. Every engine
  mutation runs inside WithTx, so balance checks and status guards observe
  a single consistent snapshot.

IMPLEMENTATIONS:
  - store/sqlite: Production store
  - billing/store (memory): In-memory store for tests

SEE ALSO:
  - engine.go: The only caller of these interfaces
*/
package billing

import (
	"context"
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

// ListFilter narrows ListInvoices.
type ListFilter struct {
	Status *Status
	JobID  *JobID
}

// Tx is the set of storage operations available inside a transaction.
type Tx interface {
	// GetInvoice returns a non-deleted invoice or *NotFoundError.
	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	CreateInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	SoftDeleteInvoice(ctx context.Context, id InvoiceID, at time.Time) error
	UndeleteInvoice(ctx context.Context, id InvoiceID) error

	// Children returns the non-deleted children of a split parent,
	// ordered by creation.
	Children(ctx context.Context, parentID InvoiceID) ([]*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error)

	// Allocations returns the invoice's allocation set.
	Allocations(ctx context.Context, invoiceID InvoiceID) ([]Allocation, error)
	// ReplaceAllocations rewrites the set whole: delete-then-insert.
	ReplaceAllocations(ctx context.Context, invoiceID InvoiceID, allocs []Allocation) error

	// RecordUndo stores an entry and supersedes any prior available entry
	// for the same entity, enforcing the one-active-entry invariant.
	RecordUndo(ctx context.Context, entry undo.Entry) error
	// AvailableUndo returns the current available entry, nil if none.
	AvailableUndo(ctx context.Context, entityType, entityID string) (*undo.Entry, error)
	// ConsumeUndo marks an entry consumed. Consumed entries are inert.
	ConsumeUndo(ctx context.Context, entryID string) error
}

// Store is the full persistence surface.
type Store interface {
	Tx

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Tx) error) error
}
