package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
// Serialization failures surface as shared.ErrConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, NewTxStore(tx)); err != nil {
		return TranslateConflict(err)
	}
	return TranslateConflict(tx.Commit(ctx))
}

// ListTransactions returns ledger rows, newest first. The ledger is
// append-only: this repository has no update or delete statement for
// inventory_transactions, and the schema grants none.
func (r *Repository) ListTransactions(ctx context.Context, filter LedgerFilter) ([]Transaction, error) {
	sql := `SELECT id, material_id, direction, qty, resulting_stock, unit_price, line_total, ref_number, COALESCE(ref_id::text, ''), operator, posted_at
		FROM inventory_transactions WHERE material_id = $1`
	args := []any{filter.MaterialID}
	argNum := 2
	if !filter.From.IsZero() {
		sql += fmt.Sprintf(" AND posted_at >= $%d", argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		sql += fmt.Sprintf(" AND posted_at <= $%d", argNum)
		args = append(args, filter.To)
		argNum++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	sql += fmt.Sprintf(" ORDER BY posted_at DESC, id DESC LIMIT $%d", argNum)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Transaction
	for rows.Next() {
		var entry Transaction
		var qty, resulting, price, total pgtype.Numeric
		if err := rows.Scan(&entry.ID, &entry.MaterialID, &entry.Direction, &qty, &resulting, &price, &total, &entry.RefNumber, &entry.RefID, &entry.Operator, &entry.PostedAt); err != nil {
			return nil, err
		}
		entry.Quantity = numericToDecimal(qty)
		entry.ResultingStock = numericToDecimal(resulting)
		entry.UnitPrice = numericToDecimal(price)
		entry.LineTotal = numericToDecimal(total)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// NewTxStore wraps an open pgx transaction as a ledger TxStore so other
// modules can run the ledger protocol inside their own unit of work.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) GetStockForUpdate(ctx context.Context, materialID int64) (Stock, error) {
	var onHand pgtype.Numeric
	err := s.tx.QueryRow(ctx, `SELECT stock_on_hand FROM materials WHERE id = $1 FOR UPDATE`, materialID).Scan(&onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrMaterialNotFound
		}
		return Stock{}, err
	}
	return Stock{OnHand: numericToDecimal(onHand)}, nil
}

func (s *txStore) UpdateStock(ctx context.Context, materialID int64, newStock Stock) error {
	tag, err := s.tx.Exec(ctx, `UPDATE materials SET stock_on_hand = $2, updated_at = NOW() WHERE id = $1`,
		materialID, decimalToNumeric(newStock.OnHand))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (s *txStore) InsertTransaction(ctx context.Context, entry Transaction) (int64, error) {
	var refID pgtype.UUID
	if entry.RefID != "" {
		_ = refID.Scan(entry.RefID)
	}
	var id int64
	err := s.tx.QueryRow(ctx,
		`INSERT INTO inventory_transactions (material_id, direction, qty, resulting_stock, unit_price, line_total, ref_number, ref_id, operator, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		entry.MaterialID, string(entry.Direction),
		decimalToNumeric(entry.Quantity), decimalToNumeric(entry.ResultingStock),
		decimalToNumeric(entry.UnitPrice), decimalToNumeric(entry.LineTotal),
		entry.RefNumber, refID, entry.Operator, entry.PostedAt).Scan(&id)
	return id, err
}

// TranslateConflict maps PostgreSQL serialization and lock failures onto
// shared.ErrConflict so callers can apply a bounded retry.
func TranslateConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w", pgErr.Message, shared.ErrConflict)
		}
	}
	return err
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
