/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  Persists invoices, their cost-code allocations, and the undo log. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  invoices:     Invoice records with lifecycle status and version counter
  allocations:  Cost-code allocation rows, replaced as a set per invoice
  undo_entries: Pre-mutation snapshots for single-step undo

SOFT DELETE:
  Invoices carry a deleted_at tombstone. Read paths filter tombstoned
  rows; UndeleteInvoice clears the tombstone (used when an undo restores
  children removed by a split reversal). Allocation rows survive their
  invoice's tombstone so an undelete brings the ledger back intact.

TRANSACTIONS:
  WithTx wraps fn in a real sql.Tx. All per-record methods run against a
  shared querier interface, so the same code serves both the plain *sql.DB
  path and the transactional path. Every engine mutation runs inside
  WithTx, so an undo snapshot commits with the mutation it reverses.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := billing.NewEngine(store, locks, bus)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/jakeross838/Construction-Management-Software-sub003/billing"
	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the record methods need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a SQLite store and migrates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent API calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id                TEXT PRIMARY KEY,
		number            TEXT NOT NULL,
		amount            TEXT NOT NULL,
		status            TEXT NOT NULL,
		job_id            TEXT NOT NULL,
		vendor_id         TEXT NOT NULL DEFAULT '',
		purchase_order_id TEXT NOT NULL DEFAULT '',
		invoice_date      TEXT NOT NULL,
		billed_amount     TEXT NOT NULL,
		paid_amount       TEXT NOT NULL,
		draw_id           TEXT NOT NULL DEFAULT '',
		is_split_parent   INTEGER NOT NULL DEFAULT 0,
		parent_invoice_id TEXT NOT NULL DEFAULT '',
		original_amount   TEXT NOT NULL,
		pre_split_status  TEXT NOT NULL DEFAULT '',
		review_flags      TEXT NOT NULL DEFAULT '[]',
		version           INTEGER NOT NULL,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		deleted_at        TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_status
		ON invoices(status) WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_invoices_job
		ON invoices(job_id) WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_invoices_parent
		ON invoices(parent_invoice_id) WHERE parent_invoice_id != '';

	CREATE TABLE IF NOT EXISTS allocations (
		id              TEXT PRIMARY KEY,
		invoice_id      TEXT NOT NULL,
		cost_code_id    TEXT NOT NULL,
		amount          TEXT NOT NULL,
		change_order_id TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		FOREIGN KEY (invoice_id) REFERENCES invoices(id)
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_invoice
		ON allocations(invoice_id);

	CREATE TABLE IF NOT EXISTS undo_entries (
		id               TEXT PRIMARY KEY,
		entity_type      TEXT NOT NULL,
		entity_id        TEXT NOT NULL,
		action           TEXT NOT NULL,
		snapshot         BLOB NOT NULL,
		recorded_version INTEGER NOT NULL,
		performed_by     TEXT NOT NULL,
		consumed         INTEGER NOT NULL DEFAULT 0,
		superseded       INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_undo_available
		ON undo_entries(entity_type, entity_id)
		WHERE consumed = 0 AND superseded = 0;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, number, amount, status, job_id, vendor_id,
	purchase_order_id, invoice_date, billed_amount, paid_amount, draw_id,
	is_split_parent, parent_invoice_id, original_amount, pre_split_status,
	review_flags, version, created_at, updated_at, deleted_at`

func (s *Store) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

func getInvoice(ctx context.Context, q querier, id billing.InvoiceID) (*billing.Invoice, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND deleted_at IS NULL`,
		string(id),
	)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	if err != nil {
		return nil, &billing.StorageError{Op: "get invoice", Err: err}
	}
	return inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	return createInvoice(ctx, s.db, inv)
}

func createInvoice(ctx context.Context, q querier, inv *billing.Invoice) error {
	flagsJSON, _ := json.Marshal(inv.ReviewFlags)

	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices
		(id, number, amount, status, job_id, vendor_id, purchase_order_id,
		 invoice_date, billed_amount, paid_amount, draw_id, is_split_parent,
		 parent_invoice_id, original_amount, pre_split_status, review_flags,
		 version, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(inv.ID),
		inv.Number,
		inv.Amount.String(),
		string(inv.Status),
		string(inv.JobID),
		string(inv.VendorID),
		inv.PurchaseOrderID,
		inv.InvoiceDate.UTC().Format(time.RFC3339),
		inv.BilledAmount.String(),
		inv.PaidAmount.String(),
		string(inv.DrawID),
		boolToInt(inv.IsSplitParent),
		string(inv.ParentInvoiceID),
		inv.OriginalAmount.String(),
		string(inv.PreSplitStatus),
		string(flagsJSON),
		inv.Version,
		inv.CreatedAt.UTC().Format(time.RFC3339),
		inv.UpdatedAt.UTC().Format(time.RFC3339),
		nullTime(inv.DeletedAt),
	)
	if err != nil {
		return &billing.StorageError{Op: "create invoice", Err: err}
	}
	return nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *billing.Invoice) error {
	return updateInvoice(ctx, s.db, inv)
}

func updateInvoice(ctx context.Context, q querier, inv *billing.Invoice) error {
	flagsJSON, _ := json.Marshal(inv.ReviewFlags)

	res, err := q.ExecContext(ctx, `
		UPDATE invoices SET
			number = ?, amount = ?, status = ?, job_id = ?, vendor_id = ?,
			purchase_order_id = ?, invoice_date = ?, billed_amount = ?,
			paid_amount = ?, draw_id = ?, is_split_parent = ?,
			parent_invoice_id = ?, original_amount = ?, pre_split_status = ?,
			review_flags = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		inv.Number,
		inv.Amount.String(),
		string(inv.Status),
		string(inv.JobID),
		string(inv.VendorID),
		inv.PurchaseOrderID,
		inv.InvoiceDate.UTC().Format(time.RFC3339),
		inv.BilledAmount.String(),
		inv.PaidAmount.String(),
		string(inv.DrawID),
		boolToInt(inv.IsSplitParent),
		string(inv.ParentInvoiceID),
		inv.OriginalAmount.String(),
		string(inv.PreSplitStatus),
		string(flagsJSON),
		inv.Version,
		inv.UpdatedAt.UTC().Format(time.RFC3339),
		string(inv.ID),
	)
	if err != nil {
		return &billing.StorageError{Op: "update invoice", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &billing.NotFoundError{Kind: "invoice", ID: string(inv.ID)}
	}
	return nil
}

func (s *Store) SoftDeleteInvoice(ctx context.Context, id billing.InvoiceID, at time.Time) error {
	return softDeleteInvoice(ctx, s.db, id, at)
}

func softDeleteInvoice(ctx context.Context, q querier, id billing.InvoiceID, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE invoices SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at.UTC().Format(time.RFC3339), string(id),
	)
	if err != nil {
		return &billing.StorageError{Op: "soft delete invoice", Err: err}
	}
	return nil
}

func (s *Store) UndeleteInvoice(ctx context.Context, id billing.InvoiceID) error {
	return undeleteInvoice(ctx, s.db, id)
}

func undeleteInvoice(ctx context.Context, q querier, id billing.InvoiceID) error {
	_, err := q.ExecContext(ctx,
		`UPDATE invoices SET deleted_at = NULL WHERE id = ?`,
		string(id),
	)
	if err != nil {
		return &billing.StorageError{Op: "undelete invoice", Err: err}
	}
	return nil
}

func (s *Store) Children(ctx context.Context, parentID billing.InvoiceID) ([]*billing.Invoice, error) {
	return children(ctx, s.db, parentID)
}

func children(ctx context.Context, q querier, parentID billing.InvoiceID) ([]*billing.Invoice, error) {
	return queryInvoices(ctx, q,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE parent_invoice_id = ? AND deleted_at IS NULL
		 ORDER BY created_at ASC, id ASC`,
		string(parentID),
	)
}

func (s *Store) ListInvoices(ctx context.Context, filter billing.ListFilter) ([]*billing.Invoice, error) {
	return listInvoices(ctx, s.db, filter)
}

func listInvoices(ctx context.Context, q querier, filter billing.ListFilter) ([]*billing.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE deleted_at IS NULL`
	var args []any
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.JobID != nil {
		query += ` AND job_id = ?`
		args = append(args, string(*filter.JobID))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	return queryInvoices(ctx, q, query, args...)
}

func queryInvoices(ctx context.Context, q querier, query string, args ...any) ([]*billing.Invoice, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &billing.StorageError{Op: "query invoices", Err: err}
	}
	defer rows.Close()

	var out []*billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, &billing.StorageError{Op: "scan invoice", Err: err}
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, &billing.StorageError{Op: "query invoices", Err: err}
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(sc scanner) (*billing.Invoice, error) {
	var (
		inv            billing.Invoice
		id, status     string
		jobID, vendor  string
		parentID, draw string
		preSplit       string
		amount         string
		billed, paid   string
		original       string
		flagsJSON      string
		splitParent    int
		invoiceDate    string
		createdAt      string
		updatedAt      string
		deletedAt      sql.NullString
	)

	err := sc.Scan(
		&id, &inv.Number, &amount, &status, &jobID, &vendor,
		&inv.PurchaseOrderID, &invoiceDate, &billed, &paid, &draw,
		&splitParent, &parentID, &original, &preSplit,
		&flagsJSON, &inv.Version, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.ID = billing.InvoiceID(id)
	inv.Status = billing.Status(status)
	inv.JobID = billing.JobID(jobID)
	inv.VendorID = billing.VendorID(vendor)
	inv.DrawID = billing.DrawID(draw)
	inv.IsSplitParent = splitParent != 0
	inv.ParentInvoiceID = billing.InvoiceID(parentID)
	inv.PreSplitStatus = billing.Status(preSplit)

	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if inv.BilledAmount, err = decimal.NewFromString(billed); err != nil {
		return nil, fmt.Errorf("invalid billed_amount %q: %w", billed, err)
	}
	if inv.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("invalid paid_amount %q: %w", paid, err)
	}
	if inv.OriginalAmount, err = decimal.NewFromString(original); err != nil {
		return nil, fmt.Errorf("invalid original_amount %q: %w", original, err)
	}

	if err := json.Unmarshal([]byte(flagsJSON), &inv.ReviewFlags); err != nil {
		return nil, fmt.Errorf("invalid review_flags %q: %w", flagsJSON, err)
	}

	if inv.InvoiceDate, err = time.Parse(time.RFC3339, invoiceDate); err != nil {
		return nil, fmt.Errorf("invalid invoice_date %q: %w", invoiceDate, err)
	}
	if inv.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if inv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid deleted_at %q: %w", deletedAt.String, err)
		}
		inv.DeletedAt = &t
	}

	return &inv, nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (s *Store) Allocations(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Allocation, error) {
	return allocations(ctx, s.db, invoiceID)
}

func allocations(ctx context.Context, q querier, invoiceID billing.InvoiceID) ([]billing.Allocation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, cost_code_id, amount, change_order_id, created_at
		FROM allocations
		WHERE invoice_id = ?
		ORDER BY created_at ASC, id ASC`,
		string(invoiceID),
	)
	if err != nil {
		return nil, &billing.StorageError{Op: "query allocations", Err: err}
	}
	defer rows.Close()

	var out []billing.Allocation
	for rows.Next() {
		var (
			a         billing.Allocation
			invID     string
			costCode  string
			amount    string
			changeOrd string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &invID, &costCode, &amount, &changeOrd, &createdAt); err != nil {
			return nil, &billing.StorageError{Op: "scan allocation", Err: err}
		}
		a.InvoiceID = billing.InvoiceID(invID)
		a.CostCodeID = billing.CostCodeID(costCode)
		a.ChangeOrderID = billing.ChangeOrderID(changeOrd)
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, &billing.StorageError{Op: "scan allocation", Err: err}
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, &billing.StorageError{Op: "scan allocation", Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &billing.StorageError{Op: "query allocations", Err: err}
	}
	return out, nil
}

func (s *Store) ReplaceAllocations(ctx context.Context, invoiceID billing.InvoiceID, allocs []billing.Allocation) error {
	// Delete-then-insert must be atomic even outside an engine transaction.
	return s.WithTx(ctx, func(tx billing.Tx) error {
		return tx.ReplaceAllocations(ctx, invoiceID, allocs)
	})
}

func replaceAllocations(ctx context.Context, q querier, invoiceID billing.InvoiceID, allocs []billing.Allocation) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM allocations WHERE invoice_id = ?`, string(invoiceID),
	); err != nil {
		return &billing.StorageError{Op: "replace allocations", Err: err}
	}

	for _, a := range allocs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO allocations
			(id, invoice_id, cost_code_id, amount, change_order_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID,
			string(invoiceID),
			string(a.CostCodeID),
			a.Amount.String(),
			string(a.ChangeOrderID),
			a.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return &billing.StorageError{Op: "replace allocations", Err: err}
		}
	}
	return nil
}

// =============================================================================
// UNDO LOG
// =============================================================================

func (s *Store) RecordUndo(ctx context.Context, entry undo.Entry) error {
	// Supersede-then-insert must be atomic even outside an engine transaction.
	return s.WithTx(ctx, func(tx billing.Tx) error {
		return tx.RecordUndo(ctx, entry)
	})
}

func recordUndo(ctx context.Context, q querier, entry undo.Entry) error {
	// One available entry per entity: recording supersedes prior ones.
	if _, err := q.ExecContext(ctx, `
		UPDATE undo_entries SET superseded = 1
		WHERE entity_type = ? AND entity_id = ? AND consumed = 0 AND superseded = 0`,
		entry.EntityType, entry.EntityID,
	); err != nil {
		return &billing.StorageError{Op: "supersede undo entries", Err: err}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO undo_entries
		(id, entity_type, entity_id, action, snapshot, recorded_version,
		 performed_by, consumed, superseded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.Snapshot,
		entry.RecordedVersion,
		entry.PerformedBy,
		boolToInt(entry.Consumed),
		boolToInt(entry.Superseded),
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &billing.StorageError{Op: "record undo entry", Err: err}
	}
	return nil
}

func (s *Store) AvailableUndo(ctx context.Context, entityType, entityID string) (*undo.Entry, error) {
	return availableUndo(ctx, s.db, entityType, entityID)
}

func availableUndo(ctx context.Context, q querier, entityType, entityID string) (*undo.Entry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, action, snapshot, recorded_version,
		       performed_by, consumed, superseded, created_at
		FROM undo_entries
		WHERE entity_type = ? AND entity_id = ? AND consumed = 0 AND superseded = 0
		ORDER BY created_at DESC LIMIT 1`,
		entityType, entityID,
	)

	entry, err := scanUndoEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &billing.StorageError{Op: "get undo entry", Err: err}
	}
	return entry, nil
}

func scanUndoEntry(sc scanner) (*undo.Entry, error) {
	var (
		e          undo.Entry
		consumed   int
		superseded int
		createdAt  string
	)
	err := sc.Scan(
		&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.Snapshot,
		&e.RecordedVersion, &e.PerformedBy, &consumed, &superseded, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	e.Consumed = consumed != 0
	e.Superseded = superseded != 0
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return &e, nil
}

func (s *Store) ConsumeUndo(ctx context.Context, entryID string) error {
	return consumeUndo(ctx, s.db, entryID)
}

func consumeUndo(ctx context.Context, q querier, entryID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE undo_entries SET consumed = 1
		WHERE id = ? AND consumed = 0 AND superseded = 0`,
		entryID,
	)
	if err != nil {
		return &billing.StorageError{Op: "consume undo entry", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return undo.ErrNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx billing.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &billing.StorageError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &billing.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return getInvoice(ctx, ts.tx, id)
}

func (ts *txStore) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	return createInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) UpdateInvoice(ctx context.Context, inv *billing.Invoice) error {
	return updateInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) SoftDeleteInvoice(ctx context.Context, id billing.InvoiceID, at time.Time) error {
	return softDeleteInvoice(ctx, ts.tx, id, at)
}

func (ts *txStore) UndeleteInvoice(ctx context.Context, id billing.InvoiceID) error {
	return undeleteInvoice(ctx, ts.tx, id)
}

func (ts *txStore) Children(ctx context.Context, parentID billing.InvoiceID) ([]*billing.Invoice, error) {
	return children(ctx, ts.tx, parentID)
}

func (ts *txStore) ListInvoices(ctx context.Context, filter billing.ListFilter) ([]*billing.Invoice, error) {
	return listInvoices(ctx, ts.tx, filter)
}

func (ts *txStore) Allocations(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Allocation, error) {
	return allocations(ctx, ts.tx, invoiceID)
}

func (ts *txStore) ReplaceAllocations(ctx context.Context, invoiceID billing.InvoiceID, allocs []billing.Allocation) error {
	return replaceAllocations(ctx, ts.tx, invoiceID, allocs)
}

func (ts *txStore) RecordUndo(ctx context.Context, entry undo.Entry) error {
	return recordUndo(ctx, ts.tx, entry)
}

func (ts *txStore) AvailableUndo(ctx context.Context, entityType, entityID string) (*undo.Entry, error) {
	return availableUndo(ctx, ts.tx, entityType, entityID)
}

func (ts *txStore) ConsumeUndo(ctx context.Context, entryID string) error {
	return consumeUndo(ctx, ts.tx, entryID)
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
