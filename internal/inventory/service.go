package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	ListTransactions(ctx context.Context, filter LedgerFilter) ([]Transaction, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates manual stock movements outside the receipt path.
// Receipt-driven movements run through procurement's orchestrator, which
// uses the same Ledger protocol inside its own transaction.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	audit  AuditPort
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, ledger: NewLedger(cfg.AllowNegativeStock), audit: audit}
}

// AdjustmentInput describes a manual stock adjustment.
type AdjustmentInput struct {
	MaterialID int64
	Direction  Direction
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	RefNumber  string
	Operator   string
}

// PostAdjustment applies one manual movement atomically.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Transaction, error) {
	if input.Direction != DirectionIn && input.Direction != DirectionOut {
		return Transaction{}, fmt.Errorf("inventory: unknown direction %q: %w", input.Direction, shared.ErrValidation)
	}
	refNumber := input.RefNumber
	if refNumber == "" {
		refNumber = fmt.Sprintf("ADJ-%d", time.Now().UnixNano())
	}
	var posted Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		entry, err := s.ledger.Post(ctx, store, MovementInput{
			MaterialID: input.MaterialID,
			Direction:  input.Direction,
			Quantity:   input.Quantity,
			UnitPrice:  input.UnitPrice,
			RefNumber:  refNumber,
			RefID:      uuid.NewString(),
			Operator:   input.Operator,
		})
		if err != nil {
			return err
		}
		posted = entry
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, input.Operator, "STOCK_ADJUST", posted)
	return posted, nil
}

// GetLedger lists ledger entries for one material.
func (s *Service) GetLedger(ctx context.Context, filter LedgerFilter) ([]Transaction, error) {
	if filter.MaterialID == 0 {
		return nil, fmt.Errorf("inventory: material id required: %w", shared.ErrValidation)
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, operator, action string, entry Transaction) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Operator: operator,
		Action:   action,
		Entity:   "inventory_tx",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"material_id":     entry.MaterialID,
			"direction":       entry.Direction,
			"qty":             entry.Quantity.String(),
			"resulting_stock": entry.ResultingStock.String(),
			"ref_number":      entry.RefNumber,
		},
	})
}
