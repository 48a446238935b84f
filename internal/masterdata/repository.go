package masterdata

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const materialColumns = `id, code, name, unit, stock_on_hand, min_stock, is_active, created_at, updated_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	var onHand, minStock pgtype.Numeric
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &onHand, &minStock, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Material{}, ErrMaterialNotFound
	}
	if err != nil {
		return Material{}, err
	}
	m.StockOnHand = numericToDecimal(onHand)
	m.MinStock = numericToDecimal(minStock)
	return m, nil
}

// GetMaterial loads one material by id.
func (r *Repository) GetMaterial(ctx context.Context, id int64) (Material, error) {
	return scanMaterial(r.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
}

// MaterialExists reports whether an active material row exists.
func (r *Repository) MaterialExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM materials WHERE id = $1 AND is_active)`, id).Scan(&ok)
	return ok, err
}

// CreateMaterial inserts a material with zero opening stock.
func (r *Repository) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO materials (code, name, unit, stock_on_hand, min_stock, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		m.Code, m.Name, m.Unit, decimalToNumeric(m.MinStock), m.IsActive).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Material{}, translateDuplicate(err)
	}
	m.StockOnHand = decimal.Zero
	return m, nil
}

// UpdateMaterial updates descriptive fields. Stock is not touchable here.
func (r *Repository) UpdateMaterial(ctx context.Context, id int64, m Material) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE materials SET code = $2, name = $3, unit = $4, min_stock = $5, is_active = $6, updated_at = NOW()
		 WHERE id = $1`,
		id, m.Code, m.Name, m.Unit, decimalToNumeric(m.MinStock), m.IsActive)
	if err != nil {
		return translateDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

// ListMaterials returns a page of materials and the total match count.
func (r *Repository) ListMaterials(ctx context.Context, filters ListFilters) ([]Material, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Search != "" {
		where += ` AND (code ILIKE $` + strconv.Itoa(argNum) + ` OR name ILIKE $` + strconv.Itoa(argNum) + `)`
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}
	if filters.IsActive != nil {
		where += ` AND is_active = $` + strconv.Itoa(argNum)
		args = append(args, *filters.IsActive)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM materials`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filters.Page, filters.Limit)
	sql := `SELECT ` + materialColumns + ` FROM materials` + where +
		` ORDER BY code LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var materials []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, err
		}
		materials = append(materials, m)
	}
	return materials, total, rows.Err()
}

// LowStockMaterials returns active materials at or below their minimum.
func (r *Repository) LowStockMaterials(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE is_active AND stock_on_hand <= min_stock ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var materials []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

const vendorColumns = `id, code, name, contact, phone, email, address, is_active, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.Contact, &v.Phone, &v.Email, &v.Address, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrVendorNotFound
	}
	return v, err
}

// GetVendor loads one vendor by id.
func (r *Repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(r.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
}

// CreateVendor inserts a vendor.
func (r *Repository) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO vendors (code, name, contact, phone, email, address, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		v.Code, v.Name, v.Contact, v.Phone, v.Email, v.Address, v.IsActive).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Vendor{}, translateDuplicate(err)
	}
	return v, nil
}

// UpdateVendor updates a vendor.
func (r *Repository) UpdateVendor(ctx context.Context, id int64, v Vendor) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vendors SET code = $2, name = $3, contact = $4, phone = $5, email = $6, address = $7, is_active = $8, updated_at = NOW()
		 WHERE id = $1`,
		id, v.Code, v.Name, v.Contact, v.Phone, v.Email, v.Address, v.IsActive)
	if err != nil {
		return translateDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}

// ListVendors returns a page of vendors and the total match count.
func (r *Repository) ListVendors(ctx context.Context, filters ListFilters) ([]Vendor, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Search != "" {
		where += ` AND (code ILIKE $` + strconv.Itoa(argNum) + ` OR name ILIKE $` + strconv.Itoa(argNum) + `)`
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}
	if filters.IsActive != nil {
		where += ` AND is_active = $` + strconv.Itoa(argNum)
		args = append(args, *filters.IsActive)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filters.Page, filters.Limit)
	sql := `SELECT ` + vendorColumns + ` FROM vendors` + where +
		` ORDER BY code LIMIT $` + strconv.Itoa(argNum) + ` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var vendors []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, v)
	}
	return vendors, total, rows.Err()
}

func translateDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
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

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}
