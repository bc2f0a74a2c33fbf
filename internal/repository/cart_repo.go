package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
)

type cartRepo struct {
	db DBTX
}

func (r *cartRepo) GetByUser(ctx context.Context, userID string) (models.Cart, error) {
	var cart models.Cart
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id FROM carts WHERE user_id = $1`, userID).
		Scan(&cart.ID, &cart.UserID)
	if err != nil {
		return models.Cart{}, mapError("get cart", err)
	}

	// LEFT JOIN keeps lines whose variant has been removed so the caller can
	// reject them explicitly.
	query := `
		SELECT cl.id, cl.variant_id, cl.quantity,
		       v.id, v.product_id, p.name, v.price, v.stock_quantity, v.size, v.color, v.image_url
		FROM cart_lines cl
		LEFT JOIN product_variants v ON v.id = cl.variant_id
		LEFT JOIN products p ON p.id = v.product_id
		WHERE cl.cart_id = $1
		ORDER BY cl.created_at, cl.id
	`
	rows, err := r.db.QueryContext(ctx, query, cart.ID)
	if err != nil {
		return models.Cart{}, mapError("get cart lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line        models.CartLine
			variantID   sql.NullString
			productID   sql.NullString
			productName sql.NullString
			price       decimal.NullDecimal
			stock       sql.NullInt64
			size        sql.NullString
			color       sql.NullString
			imageURL    sql.NullString
		)
		if err := rows.Scan(
			&line.ID, &line.VariantID, &line.Quantity,
			&variantID, &productID, &productName, &price, &stock, &size, &color, &imageURL,
		); err != nil {
			return models.Cart{}, mapError("scan cart line", err)
		}
		if variantID.Valid {
			line.Variant = &models.ProductVariant{
				ID:          variantID.String,
				ProductID:   productID.String,
				ProductName: productName.String,
				Price:       price.Decimal,
				Stock:       int(stock.Int64),
				Size:        size.String,
				Color:       color.String,
				ImageRef:    imageURL.String,
			}
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return models.Cart{}, mapError("get cart lines", err)
	}
	return cart, nil
}

func (r *cartRepo) RemoveLines(ctx context.Context, cartID string, lines []models.CartLine) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]string, len(lines))
	variants := make([]string, len(lines))
	quantities := make([]int64, len(lines))
	for i, l := range lines {
		ids[i], variants[i], quantities[i] = l.ID, l.VariantID, int64(l.Quantity)
	}
	query := `
		DELETE FROM cart_lines c
		USING unnest($2::text[], $3::text[], $4::int[]) AS p(id, variant_id, quantity)
		WHERE c.cart_id = $1
		  AND c.id = p.id
		  AND c.variant_id = p.variant_id
		  AND c.quantity = p.quantity
	`
	res, err := r.db.ExecContext(ctx, query, cartID, pq.Array(ids), pq.Array(variants), pq.Array(quantities))
	if err != nil {
		return mapError("remove cart lines", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("remove cart lines", err)
	}
	if int(n) != len(lines) {
		return fmt.Errorf("remove cart lines %s: %w", cartID, ErrConflict)
	}
	return nil
}
