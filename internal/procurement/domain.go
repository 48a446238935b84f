package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// Purchase request lifecycle statuses.
type PRStatus string

const (
	PRStatusDraft     PRStatus = "DRAFT"
	PRStatusSubmitted PRStatus = "SUBMITTED"
	PRStatusApproved  PRStatus = "APPROVED"
	PRStatusCompleted PRStatus = "COMPLETED"
	PRStatusCancelled PRStatus = "CANCELLED"
)

// PurchaseType distinguishes requests routed through a purchase order from
// direct purchases fulfilled straight by a goods receipt.
type PurchaseType string

const (
	PurchaseTypeStockRequisition PurchaseType = "STOCK_REQUISITION"
	PurchaseTypeDirectPurchase   PurchaseType = "DIRECT_PURCHASE"
)

// Purchase order lifecycle statuses. Transitions are forward-only; a
// cancelled or completed order is terminal.
type POStatus string

const (
	POStatusDraft           POStatus = "DRAFT"
	POStatusIssued          POStatus = "ISSUED"
	POStatusPartialReceived POStatus = "PARTIAL_RECEIVED"
	POStatusCompleted       POStatus = "COMPLETED"
	POStatusCancelled       POStatus = "CANCELLED"
)

// Goods receipt statuses.
type GRStatus string

const (
	GRStatusDraft     GRStatus = "DRAFT"
	GRStatusCompleted GRStatus = "COMPLETED"
)

// DiscountType selects how the order discount is applied.
type DiscountType string

const (
	DiscountNone    DiscountType = "NONE"
	DiscountPercent DiscountType = "PERCENT"
	DiscountAmount  DiscountType = "AMOUNT"
)

// PurchaseRequest is the upstream requisition document.
type PurchaseRequest struct {
	ID          int64
	Number      string
	Type        PurchaseType
	Status      PRStatus
	RequestedBy string
	Note        string
	CreatedAt   time.Time
}

// PRItem is one requested line.
type PRItem struct {
	ID         int64
	PRID       int64
	MaterialID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
}

// PurchaseOrder is the aggregate root for a vendor commitment. Vendor name
// and contact are copied at creation time; later vendor edits never alter
// historical documents. All derived totals are recomputed from the current
// items and parameters, never hand-edited.
type PurchaseOrder struct {
	ID              int64
	Number          string
	VendorID        int64
	VendorName      string
	VendorContact   string
	Status          POStatus
	PRID            int64
	TaxPercent      decimal.Decimal
	DiscountType    DiscountType
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Shipping        decimal.Decimal
	Subtotal        decimal.Decimal
	DiscountApplied decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	ApprovedBy      string
	ApprovalDate    time.Time
	Note            string
	CreatedAt       time.Time
}

// POItem is one ordered line. LineSubtotal is always recomputed from
// quantity and price.
type POItem struct {
	ID           int64
	POID         int64
	MaterialID   int64
	QtyOrdered   decimal.Decimal
	QtyReceived  decimal.Decimal
	UnitPrice    decimal.Decimal
	LineSubtotal decimal.Decimal
}

// GoodsReceipt records one vendor delivery event. It references at most one
// purchase order or one purchase request, never both.
type GoodsReceipt struct {
	ID            int64
	Number        string
	POID          int64
	PRID          int64
	VendorID      int64
	VendorName    string
	VendorContact string
	Status        GRStatus
	ReceivedAt    time.Time
	CheckedBy     string
	Note          string
	CreatedAt     time.Time
}

// GRItem is one received line. POItemID links the line back to the ordered
// line for reconciliation; zero means unlinked.
type GRItem struct {
	ID          int64
	ReceiptID   int64
	MaterialID  int64
	POItemID    int64
	QtyReceived decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// PurchasePayment is the automatic full-value payment record written when a
// direct-purchase request is closed by a receipt.
type PurchasePayment struct {
	ID            int64
	Number        string
	PRID          int64
	ReceiptNumber string
	Amount        decimal.Decimal
	PaidAt        time.Time
}

var (
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: %w", shared.ErrValidation)
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = fmt.Errorf("procurement: %w", shared.ErrInvalidState)
	// ErrNotFound indicates a missing record.
	ErrNotFound = fmt.Errorf("procurement: %w", shared.ErrNotFound)
)

// Approve stamps the approval metadata. Approval does not change status;
// it is the precondition for issuing.
func (po *PurchaseOrder) Approve(approvedBy string, at time.Time) error {
	if strings.TrimSpace(approvedBy) == "" {
		return fmt.Errorf("approver name required: %w", ErrValidation)
	}
	if po.Status != POStatusDraft {
		return fmt.Errorf("approve requires DRAFT, got %s: %w", po.Status, ErrInvalidState)
	}
	po.ApprovedBy = approvedBy
	po.ApprovalDate = at
	return nil
}

// Issue moves an approved draft to ISSUED.
func (po *PurchaseOrder) Issue() error {
	if po.Status != POStatusDraft {
		return fmt.Errorf("issue requires DRAFT, got %s: %w", po.Status, ErrInvalidState)
	}
	if po.ApprovedBy == "" {
		return fmt.Errorf("issue requires approval: %w", ErrInvalidState)
	}
	po.Status = POStatusIssued
	return nil
}

// Cancel terminates the order. Completed and cancelled orders never resurrect.
func (po *PurchaseOrder) Cancel() error {
	switch po.Status {
	case POStatusDraft, POStatusIssued, POStatusPartialReceived:
		po.Status = POStatusCancelled
		return nil
	default:
		return fmt.Errorf("cancel not allowed from %s: %w", po.Status, ErrInvalidState)
	}
}

// ReceiveStatus derives the post-receipt status from the current items:
// COMPLETED when every line is fully received, PARTIAL_RECEIVED when any
// line has received quantity, otherwise the current status is kept.
func (po *PurchaseOrder) ReceiveStatus(items []POItem) POStatus {
	if len(items) == 0 {
		return po.Status
	}
	complete := true
	anyReceived := false
	for _, item := range items {
		if item.QtyReceived.LessThan(item.QtyOrdered) {
			complete = false
		}
		if item.QtyReceived.IsPositive() {
			anyReceived = true
		}
	}
	switch {
	case complete:
		return POStatusCompleted
	case anyReceived:
		return POStatusPartialReceived
	default:
		return po.Status
	}
}
