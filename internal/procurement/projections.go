package procurement

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/httpx"
)

// Printable document projections. These resolve material codes and names by
// join at read time; the monetary figures come straight from the stored
// document, which the write path keeps recomputed.

// DocumentLine is one resolved line on a printable document.
type DocumentLine struct {
	MaterialID   int64           `json:"material_id"`
	MaterialCode string          `json:"material_code"`
	MaterialName string          `json:"material_name"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// PurchaseOrderDocument is the order rendered for print or display.
type PurchaseOrderDocument struct {
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	VendorName      string          `json:"vendor_name"`
	VendorContact   string          `json:"vendor_contact"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovalDate    *time.Time      `json:"approval_date,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Shipping        decimal.Decimal `json:"shipping"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Note            string          `json:"note,omitempty"`
	Lines           []DocumentLine  `json:"lines"`
}

// GoodsReceiptDocument is the receipt rendered for print or display.
type GoodsReceiptDocument struct {
	Number      string         `json:"number"`
	Status      string         `json:"status"`
	OrderNumber string         `json:"order_number,omitempty"`
	VendorName  string         `json:"vendor_name"`
	ReceivedAt  time.Time      `json:"received_at"`
	CheckedBy   string         `json:"checked_by,omitempty"`
	Note        string         `json:"note,omitempty"`
	Lines       []DocumentLine `json:"lines"`
}

// PurchaseRequestDocument is the request rendered for print or display.
type PurchaseRequestDocument struct {
	Number      string         `json:"number"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	RequestedBy string         `json:"requested_by"`
	Note        string         `json:"note,omitempty"`
	Lines       []DocumentLine `json:"lines"`
}

// GetPODocument builds the printable order projection.
func (r *Repository) GetPODocument(ctx context.Context, id int64) (PurchaseOrderDocument, error) {
	po, _, err := r.GetPO(ctx, id)
	if err != nil {
		return PurchaseOrderDocument{}, err
	}
	doc := PurchaseOrderDocument{
		Number:          po.Number,
		Status:          string(po.Status),
		VendorName:      po.VendorName,
		VendorContact:   po.VendorContact,
		ApprovedBy:      po.ApprovedBy,
		Subtotal:        po.Subtotal,
		DiscountApplied: po.DiscountApplied,
		TaxAmount:       po.TaxAmount,
		Shipping:        po.Shipping,
		TotalAmount:     po.TotalAmount,
		Note:            po.Note,
	}
	if !po.ApprovalDate.IsZero() {
		at := po.ApprovalDate
		doc.ApprovalDate = &at
	}
	doc.Lines, err = r.documentLines(ctx,
		`SELECT i.material_id, m.code, m.name, m.unit, i.qty_ordered, i.unit_price, i.line_subtotal
		 FROM purchase_order_items i JOIN materials m ON m.id = i.material_id
		 WHERE i.po_id = $1 ORDER BY i.id`, id)
	return doc, err
}

// GetGRDocument builds the printable receipt projection.
func (r *Repository) GetGRDocument(ctx context.Context, id int64) (GoodsReceiptDocument, error) {
	gr, _, err := r.GetReceipt(ctx, id)
	if err != nil {
		return GoodsReceiptDocument{}, err
	}
	doc := GoodsReceiptDocument{
		Number:     gr.Number,
		Status:     string(gr.Status),
		VendorName: gr.VendorName,
		ReceivedAt: gr.ReceivedAt,
		CheckedBy:  gr.CheckedBy,
		Note:       gr.Note,
	}
	if gr.POID != 0 {
		if err := r.pool.QueryRow(ctx, `SELECT number FROM purchase_orders WHERE id = $1`, gr.POID).Scan(&doc.OrderNumber); err != nil {
			return GoodsReceiptDocument{}, err
		}
	}
	doc.Lines, err = r.documentLines(ctx,
		`SELECT i.material_id, m.code, m.name, m.unit, i.qty_received, i.unit_price, i.line_total
		 FROM goods_receipt_items i JOIN materials m ON m.id = i.material_id
		 WHERE i.gr_id = $1 ORDER BY i.id`, id)
	return doc, err
}

// GetPRDocument builds the printable request projection.
func (r *Repository) GetPRDocument(ctx context.Context, id int64) (PurchaseRequestDocument, error) {
	pr, _, err := r.GetPR(ctx, id)
	if err != nil {
		return PurchaseRequestDocument{}, err
	}
	doc := PurchaseRequestDocument{
		Number:      pr.Number,
		Type:        string(pr.Type),
		Status:      string(pr.Status),
		RequestedBy: pr.RequestedBy,
		Note:        pr.Note,
	}
	doc.Lines, err = r.documentLines(ctx,
		`SELECT i.material_id, m.code, m.name, m.unit, i.qty, i.unit_price, i.qty * i.unit_price
		 FROM purchase_request_items i JOIN materials m ON m.id = i.material_id
		 WHERE i.pr_id = $1 ORDER BY i.id`, id)
	return doc, err
}

func (r *Repository) documentLines(ctx context.Context, sql string, id int64) ([]DocumentLine, error) {
	rows, err := r.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []DocumentLine
	for rows.Next() {
		var line DocumentLine
		var qty, price, total pgtype.Numeric
		if err := rows.Scan(&line.MaterialID, &line.MaterialCode, &line.MaterialName, &line.Unit, &qty, &price, &total); err != nil {
			return nil, err
		}
		line.Quantity = numericToDecimal(qty)
		line.UnitPrice = numericToDecimal(price)
		line.LineTotal = numericToDecimal(total)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetPurchaseOrderDocument returns the printable order projection.
func (s *Service) GetPurchaseOrderDocument(ctx context.Context, id int64) (PurchaseOrderDocument, error) {
	return s.repo.GetPODocument(ctx, id)
}

// GetGoodsReceiptDocument returns the printable receipt projection.
func (s *Service) GetGoodsReceiptDocument(ctx context.Context, id int64) (GoodsReceiptDocument, error) {
	return s.repo.GetGRDocument(ctx, id)
}

// GetPurchaseRequestDocument returns the printable request projection.
func (s *Service) GetPurchaseRequestDocument(ctx context.Context, id int64) (PurchaseRequestDocument, error) {
	return s.repo.GetPRDocument(ctx, id)
}

func (h *Handler) getPODocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetPurchaseOrderDocument(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) getGRDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetGoodsReceiptDocument(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) getPRDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetPurchaseRequestDocument(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}
