package repository

import (
	"context"
	"fmt"

	"github.com/lephuong249/storefront-orders/internal/models"
)

type variantRepo struct {
	db DBTX
}

func (r *variantRepo) GetByID(ctx context.Context, id string) (models.ProductVariant, error) {
	query := `
		SELECT v.id, v.product_id, COALESCE(p.name, ''), v.price, v.stock_quantity,
		       v.size, v.color, v.image_url
		FROM product_variants v
		LEFT JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`
	var v models.ProductVariant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.ProductID,
		&v.ProductName,
		&v.Price,
		&v.Stock,
		&v.Size,
		&v.Color,
		&v.ImageRef,
	)
	if err != nil {
		return models.ProductVariant{}, mapError("get variant", err)
	}
	return v, nil
}

// DecrementStock is a single conditional update; two concurrent callers can
// never both take the last units.
func (r *variantRepo) DecrementStock(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity - $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
	`
	res, err := r.db.ExecContext(ctx, query, id, qty)
	if err != nil {
		return mapError("decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("decrement stock", err)
	}
	if n == 1 {
		return nil
	}

	ok, err := exists(r.db.QueryRowContext(ctx, `SELECT 1 FROM product_variants WHERE id = $1`, id))
	if err != nil {
		return mapError("decrement stock", err)
	}
	if !ok {
		return fmt.Errorf("decrement stock %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("decrement stock %s: %w", id, ErrInsufficientStock)
}

func (r *variantRepo) IncrementStock(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, qty)
	if err != nil {
		return mapError("increment stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("increment stock", err)
	}
	if n == 0 {
		return fmt.Errorf("increment stock %s: %w", id, ErrNotFound)
	}
	return nil
}
