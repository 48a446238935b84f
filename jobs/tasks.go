package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/forgeline-erp/forgeline-erp/internal/masterdata"
	"github.com/forgeline-erp/forgeline-erp/internal/procurement"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceiptCompleted notifies downstream consumers that a goods
	// receipt committed.
	TaskReceiptCompleted = "procurement:receipt_completed"
	// TaskLowStockScan checks materials against their minimum stock.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencySweep removes idempotency keys past retention.
	TaskIdempotencySweep = "shared:idempotency_sweep"
)

// ReceiptCompletedPayload is the queued form of the completion event.
// Quantities travel as strings to keep exact decimal values.
type ReceiptCompletedPayload struct {
	ReceiptID   int64              `json:"receipt_id"`
	Number      string             `json:"number"`
	OrderID     int64              `json:"order_id,omitempty"`
	RequestID   int64              `json:"request_id,omitempty"`
	OrderStatus string             `json:"order_status,omitempty"`
	CheckedBy   string             `json:"checked_by"`
	CompletedAt time.Time          `json:"completed_at"`
	Lines       []ReceiptLineEntry `json:"lines"`
}

// ReceiptLineEntry is one received line in the queued payload.
type ReceiptLineEntry struct {
	MaterialID  int64  `json:"material_id"`
	QtyReceived string `json:"qty_received"`
	UnitPrice   string `json:"unit_price"`
}

// NewReceiptCompletedTask constructs the Asynq task from the domain event.
func NewReceiptCompletedTask(evt procurement.ReceiptCompletedEvent) (*asynq.Task, error) {
	payload := ReceiptCompletedPayload{
		ReceiptID:   evt.ReceiptID,
		Number:      evt.Number,
		OrderID:     evt.OrderID,
		RequestID:   evt.RequestID,
		OrderStatus: string(evt.OrderStatus),
		CheckedBy:   evt.CheckedBy,
		CompletedAt: evt.CompletedAt,
	}
	for _, line := range evt.Lines {
		payload.Lines = append(payload.Lines, ReceiptLineEntry{
			MaterialID:  line.MaterialID,
			QtyReceived: line.QtyReceived.String(),
			UnitPrice:   line.UnitPrice.String(),
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptCompleted, data), nil
}

// NewReceiptCompletedHandler processes TaskReceiptCompleted tasks. Delivery
// is at-least-once, so the handler only reports; it never re-applies stock.
func NewReceiptCompletedHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReceiptCompletedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("goods receipt completed",
			slog.String("number", payload.Number),
			slog.Int64("order_id", payload.OrderID),
			slog.Int64("request_id", payload.RequestID),
			slog.String("order_status", payload.OrderStatus),
			slog.Int("lines", len(payload.Lines)),
		)
		return nil
	}
}

// NewLowStockScanTask constructs the periodic low-stock scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil)
}

// NewLowStockScanHandler reports every active material at or below its
// minimum stock.
func NewLowStockScanHandler(service *masterdata.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		materials, err := service.LowStockMaterials(ctx)
		if err != nil {
			return err
		}
		for _, m := range materials {
			logger.Warn("material below minimum stock",
				slog.String("code", m.Code),
				slog.String("name", m.Name),
				slog.String("stock_on_hand", m.StockOnHand.String()),
				slog.String("min_stock", m.MinStock.String()),
			)
		}
		logger.Info("low stock scan finished", slog.Int("flagged", len(materials)))
		return nil
	}
}

// NewIdempotencySweepTask constructs the periodic key retention sweep task.
func NewIdempotencySweepTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencySweep, nil)
}

// NewIdempotencySweepHandler deletes idempotency keys older than retention.
func NewIdempotencySweepHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency sweep finished", slog.Duration("retention", retention))
		return nil
	}
}
