package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TxStore is the slice of an open database transaction the ledger protocol
// needs. GetStockForUpdate must take a row-level lock on the material so a
// read-then-write of the balance serializes against concurrent writers.
type TxStore interface {
	GetStockForUpdate(ctx context.Context, materialID int64) (Stock, error)
	UpdateStock(ctx context.Context, materialID int64, newStock Stock) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
}

// Stock is the current on-hand quantity of one material.
type Stock struct {
	OnHand decimal.Decimal
}

// Ledger applies stock movements inside a caller-owned transaction. It is
// the only code path allowed to mutate stock_on_hand or append ledger rows.
type Ledger struct {
	allowNegative bool
}

// NewLedger constructs the ledger protocol object.
func NewLedger(allowNegative bool) *Ledger {
	return &Ledger{allowNegative: allowNegative}
}

// Post validates the movement, adjusts the material balance and appends one
// immutable transaction row snapshotting the resulting stock. It never
// commits; the surrounding unit of work decides.
func (l *Ledger) Post(ctx context.Context, store TxStore, input MovementInput) (Transaction, error) {
	if input.MaterialID == 0 {
		return Transaction{}, ErrMaterialNotFound
	}
	if !input.Quantity.IsPositive() {
		return Transaction{}, ErrInvalidQuantity
	}
	if input.UnitPrice.IsNegative() {
		return Transaction{}, ErrInvalidUnitPrice
	}

	stock, err := store.GetStockForUpdate(ctx, input.MaterialID)
	if err != nil {
		return Transaction{}, err
	}

	delta := input.Quantity
	if input.Direction == DirectionOut {
		delta = delta.Neg()
	}
	newOnHand := stock.OnHand.Add(delta)
	if !l.allowNegative && newOnHand.IsNegative() {
		return Transaction{}, ErrNegativeStock
	}

	if err := store.UpdateStock(ctx, input.MaterialID, Stock{OnHand: newOnHand}); err != nil {
		return Transaction{}, err
	}

	row := Transaction{
		MaterialID:     input.MaterialID,
		Direction:      input.Direction,
		Quantity:       input.Quantity,
		ResultingStock: newOnHand,
		UnitPrice:      input.UnitPrice,
		LineTotal:      input.Quantity.Mul(input.UnitPrice),
		RefNumber:      input.RefNumber,
		RefID:          input.RefID,
		Operator:       input.Operator,
		PostedAt:       time.Now().UTC(),
	}
	id, err := store.InsertTransaction(ctx, row)
	if err != nil {
		return Transaction{}, err
	}
	row.ID = id
	return row, nil
}
