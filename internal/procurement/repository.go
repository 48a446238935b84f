package procurement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// TxRepository is the write surface available inside one unit of work. It
// embeds the inventory TxStore so a receipt completion mutates stock, the
// ledger and every procurement document under a single transaction.
type TxRepository interface {
	inventory.TxStore

	CreatePR(ctx context.Context, pr PurchaseRequest) (int64, error)
	InsertPRItem(ctx context.Context, item PRItem) error
	UpdatePRStatus(ctx context.Context, prID int64, status PRStatus) error
	GetPRForUpdate(ctx context.Context, prID int64) (PurchaseRequest, error)

	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOItem(ctx context.Context, item POItem) error
	UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error
	SetPOApproval(ctx context.Context, poID int64, approvedBy string, at time.Time) error
	GetPOForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error)
	ListPOItems(ctx context.Context, poID int64) ([]POItem, error)
	GetPOItemForUpdate(ctx context.Context, itemID int64) (POItem, error)
	UpdatePOItem(ctx context.Context, item POItem) error
	UpdatePOTerms(ctx context.Context, poID int64, params TotalParams, totals Totals) error
	UpdatePOTotals(ctx context.Context, poID int64, totals Totals) error

	CreateReceipt(ctx context.Context, gr GoodsReceipt) (int64, error)
	InsertReceiptItem(ctx context.Context, item GRItem) error
	GetReceiptForUpdate(ctx context.Context, grID int64) (GoodsReceipt, error)
	ListReceiptItems(ctx context.Context, grID int64) ([]GRItem, error)
	SetReceiptCompleted(ctx context.Context, grID int64, checkedBy string) error

	CreatePayment(ctx context.Context, payment PurchasePayment) (int64, error)

	// InsertIdempotencyKey claims key within the unit of work, so the
	// claim commits or rolls back together with the protocol it guards.
	// A duplicate key surfaces as shared.ErrIdempotencyConflict.
	InsertIdempotencyKey(ctx context.Context, key, module string) error
}

// Repository persists procurement documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
// Serialization and lock failures surface as shared.ErrConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &txRepository{tx: tx, TxStore: inventory.NewTxStore(tx)}); err != nil {
		return inventory.TranslateConflict(err)
	}
	return inventory.TranslateConflict(tx.Commit(ctx))
}

const prColumns = `id, number, type, status, requested_by, note, created_at`

func scanPR(row pgx.Row) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := row.Scan(&pr.ID, &pr.Number, &pr.Type, &pr.Status, &pr.RequestedBy, &pr.Note, &pr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRequest{}, fmt.Errorf("purchase request: %w", ErrNotFound)
	}
	return pr, err
}

const poColumns = `id, number, vendor_id, vendor_name, vendor_contact, status, COALESCE(pr_id, 0),
	tax_percent, discount_type, discount_percent, discount_amount, shipping,
	subtotal, discount_applied, tax_amount, total_amount,
	COALESCE(approved_by, ''), approval_date, note, created_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var taxPct, discPct, discAmt, shipping, subtotal, discApplied, taxAmt, total pgtype.Numeric
	var approvalDate pgtype.Timestamptz
	err := row.Scan(&po.ID, &po.Number, &po.VendorID, &po.VendorName, &po.VendorContact, &po.Status, &po.PRID,
		&taxPct, &po.DiscountType, &discPct, &discAmt, &shipping,
		&subtotal, &discApplied, &taxAmt, &total,
		&po.ApprovedBy, &approvalDate, &po.Note, &po.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, fmt.Errorf("purchase order: %w", ErrNotFound)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.TaxPercent = numericToDecimal(taxPct)
	po.DiscountPercent = numericToDecimal(discPct)
	po.DiscountAmount = numericToDecimal(discAmt)
	po.Shipping = numericToDecimal(shipping)
	po.Subtotal = numericToDecimal(subtotal)
	po.DiscountApplied = numericToDecimal(discApplied)
	po.TaxAmount = numericToDecimal(taxAmt)
	po.TotalAmount = numericToDecimal(total)
	if approvalDate.Valid {
		po.ApprovalDate = approvalDate.Time
	}
	return po, nil
}

const poItemColumns = `id, po_id, material_id, qty_ordered, qty_received, unit_price, line_subtotal`

func scanPOItem(row pgx.Row) (POItem, error) {
	var item POItem
	var ordered, received, price, subtotal pgtype.Numeric
	err := row.Scan(&item.ID, &item.POID, &item.MaterialID, &ordered, &received, &price, &subtotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return POItem{}, fmt.Errorf("purchase order item: %w", ErrNotFound)
	}
	if err != nil {
		return POItem{}, err
	}
	item.QtyOrdered = numericToDecimal(ordered)
	item.QtyReceived = numericToDecimal(received)
	item.UnitPrice = numericToDecimal(price)
	item.LineSubtotal = numericToDecimal(subtotal)
	return item, nil
}

const grColumns = `id, number, COALESCE(po_id, 0), COALESCE(pr_id, 0), vendor_id, vendor_name, vendor_contact,
	status, received_at, COALESCE(checked_by, ''), note, created_at`

func scanGR(row pgx.Row) (GoodsReceipt, error) {
	var gr GoodsReceipt
	err := row.Scan(&gr.ID, &gr.Number, &gr.POID, &gr.PRID, &gr.VendorID, &gr.VendorName, &gr.VendorContact,
		&gr.Status, &gr.ReceivedAt, &gr.CheckedBy, &gr.Note, &gr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, fmt.Errorf("goods receipt: %w", ErrNotFound)
	}
	return gr, err
}

// GetPR loads the request header and lines.
func (r *Repository) GetPR(ctx context.Context, id int64) (PurchaseRequest, []PRItem, error) {
	pr, err := scanPR(r.pool.QueryRow(ctx,
		`SELECT `+prColumns+` FROM purchase_requests WHERE id = $1`, id))
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, pr_id, material_id, qty, unit_price FROM purchase_request_items WHERE pr_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	defer rows.Close()
	var items []PRItem
	for rows.Next() {
		var item PRItem
		var qty, price pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.PRID, &item.MaterialID, &qty, &price); err != nil {
			return PurchaseRequest{}, nil, err
		}
		item.Quantity = numericToDecimal(qty)
		item.UnitPrice = numericToDecimal(price)
		items = append(items, item)
	}
	return pr, items, rows.Err()
}

// GetPO loads the order header and lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POItem, error) {
	po, err := scanPO(r.pool.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+poItemColumns+` FROM purchase_order_items WHERE po_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var items []POItem
	for rows.Next() {
		item, err := scanPOItem(rows)
		if err != nil {
			return PurchaseOrder{}, nil, err
		}
		items = append(items, item)
	}
	return po, items, rows.Err()
}

// GetReceipt loads the receipt header and lines.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (GoodsReceipt, []GRItem, error) {
	gr, err := scanGR(r.pool.QueryRow(ctx,
		`SELECT `+grColumns+` FROM goods_receipts WHERE id = $1`, id))
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	items, err := listReceiptItems(ctx, r.pool, id)
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	return gr, items, nil
}

// POFilter narrows ListPOs.
type POFilter struct {
	Status   POStatus
	VendorID int64
	Search   string
	Page     int
	PageSize int
}

// ListPOs returns a page of order headers and the total match count.
func (r *Repository) ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filter.Status != "" {
		where += ` AND status = $` + strconv.Itoa(argNum)
		args = append(args, filter.Status)
		argNum++
	}
	if filter.VendorID != 0 {
		where += ` AND vendor_id = $` + strconv.Itoa(argNum)
		args = append(args, filter.VendorID)
		argNum++
	}
	if filter.Search != "" {
		where += ` AND (number ILIKE $` + strconv.Itoa(argNum) + ` OR vendor_name ILIKE $` + strconv.Itoa(argNum) + `)`
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	sql := `SELECT ` + poColumns + ` FROM purchase_orders` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var pos []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		pos = append(pos, po)
	}
	return pos, total, rows.Err()
}

// ReceiptFilter narrows ListReceipts.
type ReceiptFilter struct {
	Status   GRStatus
	POID     int64
	Page     int
	PageSize int
}

// ListReceipts returns a page of receipt headers and the total match count.
func (r *Repository) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]GoodsReceipt, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filter.Status != "" {
		where += ` AND status = $` + strconv.Itoa(argNum)
		args = append(args, filter.Status)
		argNum++
	}
	if filter.POID != 0 {
		where += ` AND po_id = $` + strconv.Itoa(argNum)
		args = append(args, filter.POID)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM goods_receipts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	sql := `SELECT ` + grColumns + ` FROM goods_receipts` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var grs []GoodsReceipt
	for rows.Next() {
		gr, err := scanGR(rows)
		if err != nil {
			return nil, 0, err
		}
		grs = append(grs, gr)
	}
	return grs, total, rows.Err()
}

// ListPayments returns the payments recorded against a request.
func (r *Repository) ListPayments(ctx context.Context, prID int64) ([]PurchasePayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, pr_id, receipt_number, amount, paid_at FROM purchase_payments WHERE pr_id = $1 ORDER BY id`, prID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []PurchasePayment
	for rows.Next() {
		var p PurchasePayment
		var amount pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.Number, &p.PRID, &p.ReceiptNumber, &amount, &p.PaidAt); err != nil {
			return nil, err
		}
		p.Amount = numericToDecimal(amount)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type txRepository struct {
	inventory.TxStore
	tx pgx.Tx
}

func (r *txRepository) InsertIdempotencyKey(ctx context.Context, key, module string) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, NOW())`, key, module)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func (r *txRepository) CreatePR(ctx context.Context, pr PurchaseRequest) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_requests (number, type, status, requested_by, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		pr.Number, string(pr.Type), string(pr.Status), pr.RequestedBy, pr.Note).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPRItem(ctx context.Context, item PRItem) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO purchase_request_items (pr_id, material_id, qty, unit_price) VALUES ($1, $2, $3, $4)`,
		item.PRID, item.MaterialID, decimalToNumeric(item.Quantity), decimalToNumeric(item.UnitPrice))
	return err
}

func (r *txRepository) UpdatePRStatus(ctx context.Context, prID int64, status PRStatus) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_requests SET status = $2, updated_at = NOW() WHERE id = $1`, prID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase request %d: %w", prID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) GetPRForUpdate(ctx context.Context, prID int64) (PurchaseRequest, error) {
	return scanPR(r.tx.QueryRow(ctx,
		`SELECT `+prColumns+` FROM purchase_requests WHERE id = $1 FOR UPDATE`, prID))
}

func (r *txRepository) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_orders (number, vendor_id, vendor_name, vendor_contact, status, pr_id,
			tax_percent, discount_type, discount_percent, discount_amount, shipping,
			subtotal, discount_applied, tax_amount, total_amount, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW()) RETURNING id`,
		po.Number, po.VendorID, po.VendorName, po.VendorContact, string(po.Status), nullableID(po.PRID),
		decimalToNumeric(po.TaxPercent), string(po.DiscountType),
		decimalToNumeric(po.DiscountPercent), decimalToNumeric(po.DiscountAmount), decimalToNumeric(po.Shipping),
		decimalToNumeric(po.Subtotal), decimalToNumeric(po.DiscountApplied),
		decimalToNumeric(po.TaxAmount), decimalToNumeric(po.TotalAmount), po.Note).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPOItem(ctx context.Context, item POItem) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO purchase_order_items (po_id, material_id, qty_ordered, qty_received, unit_price, line_subtotal)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.POID, item.MaterialID,
		decimalToNumeric(item.QtyOrdered), decimalToNumeric(item.QtyReceived),
		decimalToNumeric(item.UnitPrice), decimalToNumeric(item.LineSubtotal))
	return err
}

func (r *txRepository) UpdatePOStatus(ctx context.Context, poID int64, status POStatus) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, poID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) SetPOApproval(ctx context.Context, poID int64, approvedBy string, at time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET approved_by = $2, approval_date = $3, updated_at = NOW() WHERE id = $1`,
		poID, approvedBy, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) GetPOForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return scanPO(r.tx.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, poID))
}

func (r *txRepository) ListPOItems(ctx context.Context, poID int64) ([]POItem, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+poItemColumns+` FROM purchase_order_items WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []POItem
	for rows.Next() {
		item, err := scanPOItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) GetPOItemForUpdate(ctx context.Context, itemID int64) (POItem, error) {
	return scanPOItem(r.tx.QueryRow(ctx,
		`SELECT `+poItemColumns+` FROM purchase_order_items WHERE id = $1 FOR UPDATE`, itemID))
}

func (r *txRepository) UpdatePOItem(ctx context.Context, item POItem) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_order_items SET qty_ordered = $2, qty_received = $3, unit_price = $4, line_subtotal = $5 WHERE id = $1`,
		item.ID, decimalToNumeric(item.QtyOrdered), decimalToNumeric(item.QtyReceived),
		decimalToNumeric(item.UnitPrice), decimalToNumeric(item.LineSubtotal))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order item %d: %w", item.ID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) UpdatePOTerms(ctx context.Context, poID int64, params TotalParams, totals Totals) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET tax_percent = $2, discount_type = $3, discount_percent = $4,
			discount_amount = $5, shipping = $6,
			subtotal = $7, discount_applied = $8, tax_amount = $9, total_amount = $10, updated_at = NOW()
		 WHERE id = $1`,
		poID, decimalToNumeric(params.TaxPercent), string(params.DiscountType),
		decimalToNumeric(params.DiscountPercent), decimalToNumeric(params.DiscountAmount),
		decimalToNumeric(params.Shipping),
		decimalToNumeric(totals.Subtotal), decimalToNumeric(totals.DiscountApplied),
		decimalToNumeric(totals.TaxAmount), decimalToNumeric(totals.Total))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) UpdatePOTotals(ctx context.Context, poID int64, totals Totals) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET subtotal = $2, discount_applied = $3, tax_amount = $4, total_amount = $5, updated_at = NOW()
		 WHERE id = $1`,
		poID, decimalToNumeric(totals.Subtotal), decimalToNumeric(totals.DiscountApplied),
		decimalToNumeric(totals.TaxAmount), decimalToNumeric(totals.Total))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) CreateReceipt(ctx context.Context, gr GoodsReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO goods_receipts (number, po_id, pr_id, vendor_id, vendor_name, vendor_contact, status, received_at, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()) RETURNING id`,
		gr.Number, nullableID(gr.POID), nullableID(gr.PRID), gr.VendorID, gr.VendorName, gr.VendorContact,
		string(gr.Status), gr.ReceivedAt, gr.Note).Scan(&id)
	return id, err
}

func (r *txRepository) InsertReceiptItem(ctx context.Context, item GRItem) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO goods_receipt_items (gr_id, material_id, po_item_id, qty_received, unit_price, line_total)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ReceiptID, item.MaterialID, nullableID(item.POItemID),
		decimalToNumeric(item.QtyReceived), decimalToNumeric(item.UnitPrice), decimalToNumeric(item.LineTotal))
	return err
}

func (r *txRepository) GetReceiptForUpdate(ctx context.Context, grID int64) (GoodsReceipt, error) {
	return scanGR(r.tx.QueryRow(ctx,
		`SELECT `+grColumns+` FROM goods_receipts WHERE id = $1 FOR UPDATE`, grID))
}

func (r *txRepository) ListReceiptItems(ctx context.Context, grID int64) ([]GRItem, error) {
	return listReceiptItems(ctx, r.tx, grID)
}

func (r *txRepository) SetReceiptCompleted(ctx context.Context, grID int64, checkedBy string) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE goods_receipts SET status = $2, checked_by = $3, updated_at = NOW() WHERE id = $1 AND status = $4`,
		grID, string(GRStatusCompleted), checkedBy, string(GRStatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("goods receipt %d is not a draft: %w", grID, ErrInvalidState)
	}
	return nil
}

func (r *txRepository) CreatePayment(ctx context.Context, payment PurchasePayment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_payments (number, pr_id, receipt_number, amount, paid_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		payment.Number, payment.PRID, payment.ReceiptNumber, decimalToNumeric(payment.Amount), payment.PaidAt).Scan(&id)
	return id, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listReceiptItems(ctx context.Context, q querier, grID int64) ([]GRItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, gr_id, material_id, COALESCE(po_item_id, 0), qty_received, unit_price, line_total
		 FROM goods_receipt_items WHERE gr_id = $1 ORDER BY id`, grID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GRItem
	for rows.Next() {
		var item GRItem
		var qty, price, total pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.MaterialID, &item.POItemID, &qty, &price, &total); err != nil {
			return nil, err
		}
		item.QtyReceived = numericToDecimal(qty)
		item.UnitPrice = numericToDecimal(price)
		item.LineTotal = numericToDecimal(total)
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
