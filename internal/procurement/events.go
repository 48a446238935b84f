package procurement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptLineEvent describes one received line for downstream consumers.
type ReceiptLineEvent struct {
	MaterialID  int64
	QtyReceived decimal.Decimal
	UnitPrice   decimal.Decimal
}

// ReceiptCompletedEvent is emitted after a goods receipt commits. The
// notification layer renders it; the core only produces it.
type ReceiptCompletedEvent struct {
	ReceiptID   int64
	Number      string
	OrderID     int64
	RequestID   int64
	OrderStatus POStatus
	CheckedBy   string
	CompletedAt time.Time
	Lines       []ReceiptLineEvent
}

// NotifierPort receives completion events. Implementations must tolerate
// at-least-once delivery; the event fires only after the transaction commits.
type NotifierPort interface {
	NotifyReceiptCompleted(ctx context.Context, evt ReceiptCompletedEvent) error
}
