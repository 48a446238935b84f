package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// Direction enumerates stock movement directions.
type Direction string

const (
	// DirectionIn represents an inbound movement (receipt).
	DirectionIn Direction = "IN"
	// DirectionOut represents an outbound movement (usage, issue).
	DirectionOut Direction = "OUT"
)

// Transaction is one immutable ledger row. Rows are only ever inserted;
// ResultingStock snapshots the material balance after this movement.
type Transaction struct {
	ID             int64
	MaterialID     int64
	Direction      Direction
	Quantity       decimal.Decimal
	ResultingStock decimal.Decimal
	UnitPrice      decimal.Decimal
	LineTotal      decimal.Decimal
	RefNumber      string
	RefID          string
	Operator       string
	PostedAt       time.Time
}

// MovementInput describes a requested stock movement.
type MovementInput struct {
	MaterialID int64
	Direction  Direction
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	RefNumber  string
	RefID      string
	Operator   string
}

// LedgerFilter filters ledger listings.
type LedgerFilter struct {
	MaterialID int64
	From       time.Time
	To         time.Time
	Limit      int
}

var (
	// ErrMaterialNotFound indicates the referenced material row is missing.
	ErrMaterialNotFound = fmt.Errorf("inventory: material %w", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	// ErrInvalidUnitPrice indicates a negative unit price.
	ErrInvalidUnitPrice = fmt.Errorf("inventory: unit price must be >= 0: %w", shared.ErrValidation)
	// ErrNegativeStock triggered when an outbound movement would drive the
	// balance below zero and the guard is enabled.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrValidation)
)
