package procurement

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TotalParams carries the order-level percentage and amount parameters the
// totals derive from.
type TotalParams struct {
	TaxPercent      decimal.Decimal
	DiscountType    DiscountType
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Shipping        decimal.Decimal
}

// Totals is the derived monetary composition of a purchase order.
type Totals struct {
	Subtotal        decimal.Decimal
	DiscountApplied decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
}

// ComputeTotals recomputes the monetary composition from the current items
// and parameters. It is pure and must be re-invoked after every item or
// parameter change; no stored total is ever trusted as ground truth.
//
// The discount is not clamped to the subtotal. A discount larger than the
// subtotal yields a negative taxable base; whether that is accepted is the
// caller's policy decision.
func ComputeTotals(items []POItem, params TotalParams) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.QtyOrdered.Mul(item.UnitPrice))
	}

	var discount decimal.Decimal
	switch params.DiscountType {
	case DiscountPercent:
		discount = subtotal.Mul(params.DiscountPercent).Div(hundred)
	case DiscountAmount:
		discount = params.DiscountAmount
	default:
		discount = decimal.Zero
	}

	base := subtotal.Sub(discount)
	tax := base.Mul(params.TaxPercent).Div(hundred)

	return Totals{
		Subtotal:        subtotal,
		DiscountApplied: discount,
		TaxAmount:       tax,
		Total:           base.Add(tax).Add(params.Shipping),
	}
}
