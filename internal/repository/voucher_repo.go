package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
)

const voucherColumns = `
	id, code, name, description, discount_type, discount_value, min_order_value,
	max_discount, max_usage, current_usage, is_active, start_date, end_date,
	created_at, updated_at
`

type voucherRepo struct {
	db DBTX
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row rowScanner) (models.Voucher, error) {
	var (
		v           models.Voucher
		description sql.NullString
		maxDiscount decimal.NullDecimal
	)
	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.Name,
		&description,
		&v.DiscountType,
		&v.DiscountValue,
		&v.MinOrderValue,
		&maxDiscount,
		&v.MaxUsage,
		&v.CurrentUsage,
		&v.IsActive,
		&v.StartDate,
		&v.EndDate,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return models.Voucher{}, err
	}
	v.Description = description.String
	if maxDiscount.Valid {
		md := maxDiscount.Decimal
		v.MaxDiscount = &md
	}
	return v, nil
}

func (r *voucherRepo) GetByID(ctx context.Context, id string) (models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`
	v, err := scanVoucher(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Voucher{}, mapError("get voucher", err)
	}
	return v, nil
}

func (r *voucherRepo) GetByCode(ctx context.Context, code string) (models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`
	v, err := scanVoucher(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		return models.Voucher{}, mapError("get voucher by code", err)
	}
	return v, nil
}

func (r *voucherRepo) Insert(ctx context.Context, v models.Voucher) error {
	query := `
		INSERT INTO vouchers
		(id, code, name, description, discount_type, discount_value, min_order_value,
		 max_discount, max_usage, current_usage, is_active, start_date, end_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	var maxDiscount decimal.NullDecimal
	if v.MaxDiscount != nil {
		maxDiscount = decimal.NullDecimal{Decimal: *v.MaxDiscount, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.Code,
		v.Name,
		nullString(v.Description),
		v.DiscountType,
		v.DiscountValue,
		v.MinOrderValue,
		maxDiscount,
		v.MaxUsage,
		v.CurrentUsage,
		v.IsActive,
		v.StartDate,
		v.EndDate,
		v.CreatedAt,
		v.UpdatedAt,
	)
	return mapError("insert voucher", err)
}

func (r *voucherRepo) Update(ctx context.Context, v models.Voucher) error {
	query := `
		UPDATE vouchers
		SET code = $2,
		    name = $3,
		    description = $4,
		    discount_type = $5,
		    discount_value = $6,
		    min_order_value = $7,
		    max_discount = $8,
		    max_usage = $9,
		    is_active = $10,
		    start_date = $11,
		    end_date = $12,
		    updated_at = $13
		WHERE id = $1 AND current_usage <= $9
	`
	var maxDiscount decimal.NullDecimal
	if v.MaxDiscount != nil {
		maxDiscount = decimal.NullDecimal{Decimal: *v.MaxDiscount, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.Code,
		v.Name,
		nullString(v.Description),
		v.DiscountType,
		v.DiscountValue,
		v.MinOrderValue,
		maxDiscount,
		v.MaxUsage,
		v.IsActive,
		v.StartDate,
		v.EndDate,
		v.UpdatedAt,
	)
	if err != nil {
		return mapError("update voucher", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("update voucher", err)
	}
	if n == 1 {
		return nil
	}
	ok, err := exists(r.db.QueryRowContext(ctx, `SELECT 1 FROM vouchers WHERE id = $1`, v.ID))
	if err != nil {
		return mapError("update voucher", err)
	}
	if !ok {
		return fmt.Errorf("update voucher %s: %w", v.ID, ErrNotFound)
	}
	return fmt.Errorf("update voucher %s: %w", v.ID, ErrConflict)
}

func (r *voucherRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vouchers WHERE id = $1`, id)
	if err != nil {
		return mapError("delete voucher", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("delete voucher", err)
	}
	if n == 0 {
		return fmt.Errorf("delete voucher %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *voucherRepo) List(ctx context.Context, filter models.VoucherFilter) ([]models.Voucher, int, error) {
	// Literal substring match; % and _ in the search term carry no meaning.
	where := `WHERE ($1::text = '' OR strpos(lower(code), lower($1::text)) > 0 OR strpos(lower(name), lower($1::text)) > 0)`
	search := strings.TrimSpace(filter.Query)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vouchers `+where, search).Scan(&total); err != nil {
		return nil, 0, mapError("count vouchers", err)
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers ` + where + `
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, mapError("list vouchers", err)
	}
	defer rows.Close()

	var out []models.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, mapError("scan voucher", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError("list vouchers", err)
	}
	return out, total, nil
}

// ListAvailable expresses every eligibility rule, including the usage cap,
// in one query.
func (r *voucherRepo) ListAvailable(ctx context.Context, orderValue decimal.Decimal, now time.Time) ([]models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers
		WHERE is_active
		  AND min_order_value <= $1
		  AND current_usage < max_usage
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY discount_value DESC, code`
	rows, err := r.db.QueryContext(ctx, query, orderValue, now)
	if err != nil {
		return nil, mapError("list available vouchers", err)
	}
	defer rows.Close()

	var out []models.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, mapError("scan voucher", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list available vouchers", err)
	}
	return out, nil
}

func (r *voucherRepo) CountOrders(ctx context.Context, id string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE voucher_id = $1`, id).Scan(&n); err != nil {
		return 0, mapError("count voucher orders", err)
	}
	return n, nil
}
