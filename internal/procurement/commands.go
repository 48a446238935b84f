package procurement

import "github.com/shopspring/decimal"

// Transition commands are closed structs so illegal field combinations are
// unrepresentable; there is no generic partial-update payload.

// ApproveOrderCommand stamps approval on a draft order.
type ApproveOrderCommand struct {
	OrderID    int64
	ApprovedBy string
}

// IssueOrderCommand issues an approved draft order to the vendor.
type IssueOrderCommand struct {
	OrderID  int64
	IssuedBy string
}

// CancelOrderCommand terminates an order.
type CancelOrderCommand struct {
	OrderID     int64
	CancelledBy string
}

// UpdateOrderTermsCommand replaces the discount/tax/shipping parameters of
// a draft order; totals are recomputed, never patched.
type UpdateOrderTermsCommand struct {
	OrderID         int64
	TaxPercent      decimal.Decimal
	DiscountType    DiscountType
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Shipping        decimal.Decimal
}

// CompleteReceiptCommand runs the reconciliation protocol for one draft
// goods receipt.
type CompleteReceiptCommand struct {
	ReceiptID int64
	CheckedBy string
	Operator  string
}
