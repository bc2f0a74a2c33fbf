package repository

import (
	"context"
	"fmt"
)

// IncrementUsage consumes one use of the voucher. The cap is enforced by the
// WHERE clause so concurrent orders cannot push usage past max_usage.
func (r *voucherRepo) IncrementUsage(ctx context.Context, id string) error {
	query := `
		UPDATE vouchers
		SET current_usage = current_usage + 1,
		    updated_at = NOW()
		WHERE id = $1 AND current_usage < max_usage
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return mapError("increment voucher usage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("increment voucher usage", err)
	}
	if n == 1 {
		return nil
	}

	ok, err := exists(r.db.QueryRowContext(ctx, `SELECT 1 FROM vouchers WHERE id = $1`, id))
	if err != nil {
		return mapError("increment voucher usage", err)
	}
	if !ok {
		return fmt.Errorf("increment voucher usage %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("increment voucher usage %s: %w", id, ErrVoucherExhausted)
}

// DecrementUsage gives one use back. It never drops below zero; a voucher
// already at zero is left untouched.
func (r *voucherRepo) DecrementUsage(ctx context.Context, id string) error {
	query := `
		UPDATE vouchers
		SET current_usage = current_usage - 1,
		    updated_at = NOW()
		WHERE id = $1 AND current_usage > 0
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return mapError("decrement voucher usage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("decrement voucher usage", err)
	}
	if n == 1 {
		return nil
	}

	ok, err := exists(r.db.QueryRowContext(ctx, `SELECT 1 FROM vouchers WHERE id = $1`, id))
	if err != nil {
		return mapError("decrement voucher usage", err)
	}
	if !ok {
		return fmt.Errorf("decrement voucher usage %s: %w", id, ErrNotFound)
	}
	return nil
}
