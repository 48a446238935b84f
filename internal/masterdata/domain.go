package masterdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// Material is one stocked item. StockOnHand is owned by the inventory
// ledger; master data reads it but never writes it.
type Material struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	StockOnHand decimal.Decimal `json:"stock_on_hand"`
	MinStock    decimal.Decimal `json:"min_stock"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Vendor is one supplier. Procurement documents snapshot the name and
// contact at creation, so edits here never rewrite history.
type Vendor struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

var (
	ErrMaterialNotFound = fmt.Errorf("masterdata: material %w", shared.ErrNotFound)
	ErrVendorNotFound   = fmt.Errorf("masterdata: vendor %w", shared.ErrNotFound)
	ErrDuplicateCode    = fmt.Errorf("masterdata: code already exists: %w", shared.ErrValidation)
)
