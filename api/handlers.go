/*
handlers.go - HTTP API handlers for the invoice billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Invoices:
    GET    /api/invoices                    List invoices (filter by status, job)
    POST   /api/invoices                    Record a new invoice
    GET    /api/invoices/{id}               Get invoice details
    POST   /api/invoices/{id}/transition    Move invoice to a new status
    GET    /api/invoices/{id}/allocations   Allocation set and balance summary
    PUT    /api/invoices/{id}/allocations   Replace the allocation set
    POST   /api/invoices/{id}/split         Split across jobs
    POST   /api/invoices/{id}/unsplit       Dissolve a split family
    GET    /api/invoices/{id}/family        Resolve the split family
    POST   /api/invoices/{id}/billing       Finalize a draw billing portion

  Locks:
    POST   /api/locks                       Acquire or refresh a lease
    POST   /api/locks/release               Release a lease
    GET    /api/locks/check                 Inspect a lease

  Undo:
    GET    /api/undo                        Describe the available undo entry
    POST   /api/undo                        Execute the available undo entry

ERROR HANDLING:
  Domain errors carry a machine-readable code; writeDomainError maps the
  code to an HTTP status:
  - 400: Malformed input, missing required fields
  - 404: Invoice or undo entry not found
  - 409: Lock held by someone else, stale undo entry
  - 422: Business rule rejections (illegal transition, unbalanced split, ...)
  - 500: Storage failures

SECURITY NOTE:
  Currently NO authentication or authorization. Callers self-identify via
  performed_by / locked_by fields. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/jakeross838/Construction-Management-Software-sub003/billing"
	"github.com/jakeross838/Construction-Management-Software-sub003/events"
	"github.com/jakeross838/Construction-Management-Software-sub003/locking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *billing.Engine
	Locks  *locking.Manager
	Bus    *events.Bus
}

// NewHandler creates a new handler. Bus may be nil when event streaming is
// disabled.
func NewHandler(engine *billing.Engine, locks *locking.Manager, bus *events.Bus) *Handler {
	return &Handler{Engine: engine, Locks: locks, Bus: bus}
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns non-deleted invoices, optionally filtered by status
// and job.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	var filter billing.ListFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := billing.ParseStatus(raw)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		jobID := billing.JobID(raw)
		filter.JobID = &jobID
	}

	invoices, err := h.Engine.ListInvoices(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTOs(invoices))
}

// CreateInvoice records a new invoice at needs_review.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	invoiceDate := time.Now().UTC()
	if req.InvoiceDate != "" {
		invoiceDate, err = time.Parse("2006-01-02", req.InvoiceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid invoice_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	inv, err := h.Engine.CreateInvoice(r.Context(), billing.CreateInvoiceParams{
		Number:          req.Number,
		Amount:          amount,
		JobID:           billing.JobID(req.JobID),
		VendorID:        billing.VendorID(req.VendorID),
		PurchaseOrderID: req.PurchaseOrderID,
		InvoiceDate:     invoiceDate,
		PerformedBy:     req.PerformedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// GetInvoice returns a single invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Engine.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// Transition moves an invoice along a legal status edge.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	to, err := billing.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	inv, err := h.Engine.Transition(r.Context(), id, to, billing.TransitionParams{
		PerformedBy: req.PerformedBy,
		Note:        req.Note,
		DrawID:      billing.DrawID(req.DrawID),
		Unpay:       req.Unpay,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// GetAllocations returns the invoice's allocation set with its balance
// summary.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	summary, allocs, err := h.Engine.AllocationSummaryFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllocationSummaryDTO{
		Total:       summary.Total.String(),
		Remaining:   summary.Remaining.String(),
		Balanced:    summary.Balanced,
		Allocations: toAllocationDTOs(allocs),
	})
}

// SetAllocations replaces the invoice's allocation set whole.
func (h *Handler) SetAllocations(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	var req SetAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inputs := make([]billing.AllocationInput, 0, len(req.Allocations))
	for _, line := range req.Allocations {
		amount, err := decimal.NewFromString(line.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid allocation amount", err)
			return
		}
		inputs = append(inputs, billing.AllocationInput{
			CostCodeID:    billing.CostCodeID(line.CostCodeID),
			Amount:        amount,
			ChangeOrderID: billing.ChangeOrderID(line.ChangeOrderID),
		})
	}

	summary, err := h.Engine.SetAllocations(r.Context(), id, inputs, req.PerformedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllocationSummaryDTO{
		Total:     summary.Total.String(),
		Remaining: summary.Remaining.String(),
		Balanced:  summary.Balanced,
	})
}

// =============================================================================
// SPLIT HANDLERS
// =============================================================================

// Split divides an invoice across jobs.
func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entries := make([]billing.SplitEntry, 0, len(req.Entries))
	for _, line := range req.Entries {
		amount, err := decimal.NewFromString(line.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid split amount", err)
			return
		}
		entries = append(entries, billing.SplitEntry{
			JobID:  billing.JobID(line.JobID),
			Amount: amount,
			Notes:  line.Notes,
		})
	}

	family, err := h.Engine.Split(r.Context(), id, entries, req.PerformedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFamilyDTO(family))
}

// Unsplit dissolves a split family, restoring the parent.
func (h *Handler) Unsplit(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	var req UnsplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := h.Engine.Unsplit(r.Context(), id, req.PerformedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// Family resolves the split family of an invoice (parent or child).
func (h *Handler) Family(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	family, err := h.Engine.Family(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFamilyDTO(family))
}

func toFamilyDTO(f *billing.Family) FamilyDTO {
	return FamilyDTO{
		IsSplit:  f.IsSplit,
		Parent:   toInvoiceDTO(f.Parent),
		Children: toInvoiceDTOs(f.Children),
	}
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// FinalizeBilling bills a portion of an in-draw invoice.
func (h *Handler) FinalizeBilling(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	var req FinalizeBillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	portion, err := decimal.NewFromString(req.Portion)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid portion", err)
		return
	}

	inv, err := h.Engine.FinalizeBilling(r.Context(), id, portion, req.PerformedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// =============================================================================
// LOCK HANDLERS
// =============================================================================

// AcquireLock grants or refreshes a lease on an entity.
func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	var req AcquireLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Locks.Acquire(req.EntityType, req.EntityID, req.LockedBy)
	if err != nil {
		if billing.IsConflict(err) {
			writeDomainError(w, err)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid lock request", err)
		}
		return
	}

	h.publish(events.LockAcquired, map[string]any{
		"entity_type": result.Lock.EntityType,
		"entity_id":   result.Lock.EntityID,
		"locked_by":   result.Lock.LockedBy,
		"refreshed":   result.Refreshed,
	})

	status := http.StatusCreated
	if result.Refreshed {
		status = http.StatusOK
	}
	writeJSON(w, status, toLockDTO(result.Lock))
}

// ReleaseLock releases a held lease, by lock id or by entity. Releasing an
// unknown or expired lease is a no-op.
func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	var req ReleaseLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	switch {
	case req.LockID != "":
		h.Locks.Release(req.LockID, req.LockedBy)
	case req.EntityType != "" && req.EntityID != "":
		h.Locks.ReleaseEntity(req.EntityType, req.EntityID, req.LockedBy)
	default:
		writeError(w, http.StatusBadRequest, "lock_id or entity_type+entity_id is required", nil)
		return
	}

	h.publish(events.LockReleased, map[string]any{
		"lock_id":     req.LockID,
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
		"locked_by":   req.LockedBy,
	})

	writeJSON(w, http.StatusOK, map[string]any{"released": true})
}

// CheckLock reports whether an entity is currently leased.
func (h *Handler) CheckLock(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "entity_type and entity_id are required", nil)
		return
	}

	lock, held := h.Locks.Check(entityType, entityID)
	resp := LockStatusDTO{Locked: held}
	if held {
		dto := toLockDTO(*lock)
		resp.Lock = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// UNDO HANDLERS
// =============================================================================

// AvailableUndo describes the entity's available undo entry, if any.
func (h *Handler) AvailableUndo(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "entity_type and entity_id are required", nil)
		return
	}

	entry, err := h.Engine.AvailableUndo(r.Context(), entityType, entityID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUndoEntryDTO(entry))
}

// ExecuteUndo consumes the entity's available entry and restores the
// recorded prior state.
func (h *Handler) ExecuteUndo(w http.ResponseWriter, r *http.Request) {
	var req UndoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.Undo(r.Context(), req.EntityType, req.EntityID, req.PerformedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UndoResultDTO{
		UndoneAction: result.UndoneAction,
		Label:        result.Label,
		Restored:     toInvoiceDTO(result.Restored),
	})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) publish(event string, data any) {
	if h.Bus != nil {
		h.Bus.Publish(event, data)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error code to an HTTP status and writes
// the error envelope. Lock conflicts carry the holder and lease expiry so
// the client can show who to wait for.
func writeDomainError(w http.ResponseWriter, err error) {
	code := billing.CodeOf(err)
	resp := ErrorResponse{
		Error: err.Error(),
		Code:  string(code),
	}
	var conflict *billing.LockConflict
	if errors.As(err, &conflict) {
		resp.Details = fmt.Sprintf("held by %s until %s",
			conflict.Holder, conflict.ExpiresAt.Format(time.RFC3339))
	}
	writeJSON(w, httpStatusFor(code), resp)
}

func httpStatusFor(code billing.Code) int {
	switch code {
	case billing.CodeNotFound, billing.CodeUndoNotFound:
		return http.StatusNotFound
	case billing.CodeLockHeld, billing.CodeUndoStale:
		return http.StatusConflict
	case billing.CodeValidationFailed:
		return http.StatusBadRequest
	case billing.CodeTransitionNotAllowed,
		billing.CodeAllocationInvalid,
		billing.CodeChangeOrderLinkRequired,
		billing.CodeAlreadySplit,
		billing.CodeInvalidStatusForSplit,
		billing.CodeSplitSumMismatch,
		billing.CodeChildAlreadyProcessed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
