/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts cross the wire as strings ("1234.56"). JSON numbers are floats
  and would reintroduce the precision problems decimal.Decimal exists to
  avoid.

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/jakeross838/Construction-Management-Software-sub003/billing"
	"github.com/jakeross838/Construction-Management-Software-sub003/locking"
	"github.com/jakeross838/Construction-Management-Software-sub003/undo"
)

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID              string   `json:"id"`
	Number          string   `json:"number"`
	Amount          string   `json:"amount"`
	Status          string   `json:"status"`
	JobID           string   `json:"job_id"`
	VendorID        string   `json:"vendor_id,omitempty"`
	PurchaseOrderID string   `json:"purchase_order_id,omitempty"`
	InvoiceDate     string   `json:"invoice_date"`
	BilledAmount    string   `json:"billed_amount"`
	PaidAmount      string   `json:"paid_amount"`
	OpenAmount      string   `json:"open_amount"`
	DrawID          string   `json:"draw_id,omitempty"`
	IsSplitParent   bool     `json:"is_split_parent,omitempty"`
	ParentInvoiceID string   `json:"parent_invoice_id,omitempty"`
	OriginalAmount  string   `json:"original_amount,omitempty"`
	PreSplitStatus  string   `json:"pre_split_status,omitempty"`
	ReviewFlags     []string `json:"review_flags,omitempty"`
	Version         int64    `json:"version"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

func toInvoiceDTO(inv *billing.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:              string(inv.ID),
		Number:          inv.Number,
		Amount:          inv.Amount.String(),
		Status:          string(inv.Status),
		JobID:           string(inv.JobID),
		VendorID:        string(inv.VendorID),
		PurchaseOrderID: inv.PurchaseOrderID,
		InvoiceDate:     inv.InvoiceDate.Format("2006-01-02"),
		BilledAmount:    inv.BilledAmount.String(),
		PaidAmount:      inv.PaidAmount.String(),
		OpenAmount:      inv.OpenAmount().String(),
		DrawID:          string(inv.DrawID),
		IsSplitParent:   inv.IsSplitParent,
		ParentInvoiceID: string(inv.ParentInvoiceID),
		Version:         inv.Version,
		CreatedAt:       inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       inv.UpdatedAt.Format(time.RFC3339),
	}
	if inv.IsSplitParent {
		dto.OriginalAmount = inv.OriginalAmount.String()
		dto.PreSplitStatus = string(inv.PreSplitStatus)
	}
	for _, f := range inv.ReviewFlags {
		dto.ReviewFlags = append(dto.ReviewFlags, string(f))
	}
	return dto
}

func toInvoiceDTOs(invs []*billing.Invoice) []InvoiceDTO {
	dtos := make([]InvoiceDTO, len(invs))
	for i, inv := range invs {
		dtos[i] = toInvoiceDTO(inv)
	}
	return dtos
}

// CreateInvoiceRequest is the request to record a new invoice.
type CreateInvoiceRequest struct {
	Number          string `json:"number"`
	Amount          string `json:"amount"`
	JobID           string `json:"job_id"`
	VendorID        string `json:"vendor_id"`
	PurchaseOrderID string `json:"purchase_order_id"`
	InvoiceDate     string `json:"invoice_date"`
	PerformedBy     string `json:"performed_by"`
}

// TransitionRequest moves an invoice to a new status.
type TransitionRequest struct {
	Status      string `json:"status"`
	PerformedBy string `json:"performed_by"`
	Note        string `json:"note,omitempty"`
	DrawID      string `json:"draw_id,omitempty"`
	Unpay       bool   `json:"unpay,omitempty"`
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// AllocationDTO represents one cost-code allocation line.
type AllocationDTO struct {
	ID            string `json:"id"`
	CostCodeID    string `json:"cost_code_id"`
	Amount        string `json:"amount"`
	ChangeOrderID string `json:"change_order_id,omitempty"`
}

// AllocationLineRequest is one line of a replacement allocation set.
type AllocationLineRequest struct {
	CostCodeID    string `json:"cost_code_id"`
	Amount        string `json:"amount"`
	ChangeOrderID string `json:"change_order_id,omitempty"`
}

// SetAllocationsRequest replaces an invoice's allocation set whole.
type SetAllocationsRequest struct {
	Allocations []AllocationLineRequest `json:"allocations"`
	PerformedBy string                  `json:"performed_by"`
}

// AllocationSummaryDTO is the balance view of an allocation set.
type AllocationSummaryDTO struct {
	Total       string          `json:"total"`
	Remaining   string          `json:"remaining"`
	Balanced    bool            `json:"balanced"`
	Allocations []AllocationDTO `json:"allocations,omitempty"`
}

func toAllocationDTOs(allocs []billing.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = AllocationDTO{
			ID:            a.ID,
			CostCodeID:    string(a.CostCodeID),
			Amount:        a.Amount.String(),
			ChangeOrderID: string(a.ChangeOrderID),
		}
	}
	return dtos
}

// =============================================================================
// SPLIT FAMILIES
// =============================================================================

// SplitLineRequest is one child of a requested split.
type SplitLineRequest struct {
	JobID  string `json:"job_id"`
	Amount string `json:"amount"`
	Notes  string `json:"notes,omitempty"`
}

// SplitRequest splits an invoice across jobs.
type SplitRequest struct {
	Entries     []SplitLineRequest `json:"entries"`
	PerformedBy string             `json:"performed_by"`
}

// UnsplitRequest dissolves a split family.
type UnsplitRequest struct {
	PerformedBy string `json:"performed_by"`
}

// FamilyDTO is a resolved split family.
type FamilyDTO struct {
	IsSplit  bool         `json:"is_split"`
	Parent   InvoiceDTO   `json:"parent"`
	Children []InvoiceDTO `json:"children,omitempty"`
}

// =============================================================================
// BILLING
// =============================================================================

// FinalizeBillingRequest bills a portion of an in-draw invoice.
type FinalizeBillingRequest struct {
	Portion     string `json:"portion"`
	PerformedBy string `json:"performed_by"`
}

// =============================================================================
// LOCKS
// =============================================================================

// AcquireLockRequest requests a lease on an entity.
type AcquireLockRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	LockedBy   string `json:"locked_by"`
}

// ReleaseLockRequest releases a held lease, addressed either by lock id or
// by the entity it covers.
type ReleaseLockRequest struct {
	LockID     string `json:"lock_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	LockedBy   string `json:"locked_by"`
}

// LockDTO represents a lease in API responses.
type LockDTO struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	LockedBy   string `json:"locked_by"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at"`
}

// LockStatusDTO is the response to a lock check.
type LockStatusDTO struct {
	Locked bool     `json:"locked"`
	Lock   *LockDTO `json:"lock,omitempty"`
}

func toLockDTO(l locking.Lock) LockDTO {
	return LockDTO{
		ID:         l.ID,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		LockedBy:   l.LockedBy,
		AcquiredAt: l.AcquiredAt.Format(time.RFC3339),
		ExpiresAt:  l.ExpiresAt.Format(time.RFC3339),
	}
}

// =============================================================================
// UNDO
// =============================================================================

// UndoRequest executes the entity's available undo entry.
type UndoRequest struct {
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	PerformedBy string `json:"performed_by"`
}

// UndoEntryDTO describes an available undo entry.
type UndoEntryDTO struct {
	Available  bool   `json:"available"`
	Action     string `json:"action,omitempty"`
	Label      string `json:"label,omitempty"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

func toUndoEntryDTO(e *undo.Entry) UndoEntryDTO {
	if e == nil {
		return UndoEntryDTO{Available: false}
	}
	return UndoEntryDTO{
		Available:  true,
		Action:     e.Action,
		Label:      e.Label(),
		RecordedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// UndoResultDTO reports a completed rollback.
type UndoResultDTO struct {
	UndoneAction string     `json:"undone_action"`
	Label        string     `json:"label"`
	Restored     InvoiceDTO `json:"restored"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
