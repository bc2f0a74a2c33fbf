package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
)

const orderColumns = `
	id, order_number, user_id, address_id, payment_method_id, voucher_id,
	status, payment_status, subtotal, voucher_discount, total, note, admin_note,
	cancel_reason, created_at, updated_at, confirmed_at, shipped_at, delivered_at,
	cancelled_at
`

type orderRepo struct {
	db DBTX
}

func scanOrder(row rowScanner) (models.Order, error) {
	var (
		o                                           models.Order
		voucherID, note, adminNote, cancelReason    sql.NullString
		confirmedAt, shippedAt, deliveredAt, cancAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.AddressID,
		&o.PaymentMethodID,
		&voucherID,
		&o.Status,
		&o.PaymentStatus,
		&o.Subtotal,
		&o.VoucherDiscount,
		&o.Total,
		&note,
		&adminNote,
		&cancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&confirmedAt,
		&shippedAt,
		&deliveredAt,
		&cancAt,
	)
	if err != nil {
		return models.Order{}, err
	}
	o.VoucherID = voucherID.String
	o.Note = note.String
	o.AdminNote = adminNote.String
	o.CancelReason = cancelReason.String
	o.ConfirmedAt = timePtr(confirmedAt)
	o.ShippedAt = timePtr(shippedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.CancelledAt = timePtr(cancAt)
	return o, nil
}

func (r *orderRepo) Insert(ctx context.Context, o models.Order) error {
	query := `
		INSERT INTO orders
		(id, order_number, user_id, address_id, payment_method_id, voucher_id, status,
		 payment_status, subtotal, voucher_discount, total, note, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.AddressID,
		o.PaymentMethodID,
		nullString(o.VoucherID),
		o.Status,
		o.PaymentStatus,
		o.Subtotal,
		o.VoucherDiscount,
		o.Total,
		nullString(o.Note),
		o.CreatedAt,
		o.UpdatedAt,
	)
	return mapError("insert order", err)
}

func (r *orderRepo) InsertLine(ctx context.Context, l models.OrderLine) error {
	query := `
		INSERT INTO order_lines
		(id, order_id, product_id, variant_id, product_name, product_image, variant_name,
		 price, quantity, subtotal)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID,
		l.OrderID,
		l.ProductID,
		nullString(l.VariantID),
		l.ProductName,
		l.ProductImage,
		l.VariantName,
		l.Price,
		l.Quantity,
		l.Subtotal,
	)
	return mapError("insert order line", err)
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id string) (models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepo) get(ctx context.Context, query, id string) (models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Order{}, mapError("get order", err)
	}
	lines, err := r.linesFor(ctx, []string{o.ID})
	if err != nil {
		return models.Order{}, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *orderRepo) linesFor(ctx context.Context, orderIDs []string) (map[string][]models.OrderLine, error) {
	out := make(map[string][]models.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id, order_id, product_id, variant_id, product_name, product_image,
		       variant_name, price, quantity, subtotal
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, mapError("get order lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l         models.OrderLine
			variantID sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &variantID, &l.ProductName,
			&l.ProductImage, &l.VariantName, &l.Price, &l.Quantity, &l.Subtotal); err != nil {
			return nil, mapError("scan order line", err)
		}
		l.VariantID = variantID.String
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("get order lines", err)
	}
	return out, nil
}

func stampColumn(status models.OrderStatus) string {
	switch status {
	case models.OrderConfirmed:
		return "confirmed_at"
	case models.OrderShipping:
		return "shipped_at"
	case models.OrderDelivered:
		return "delivered_at"
	case models.OrderCancelled:
		return "cancelled_at"
	}
	return ""
}

// UpdateStatus moves the order only if it is still in u.From.
func (r *orderRepo) UpdateStatus(ctx context.Context, u models.StatusUpdate) error {
	args := []any{u.OrderID, u.From, u.To, u.At}
	sets := []string{"status = $3", "updated_at = $4"}
	if col := stampColumn(u.To); col != "" {
		sets = append(sets, col+" = $4")
	}
	if u.AdminNote != nil {
		args = append(args, *u.AdminNote)
		sets = append(sets, fmt.Sprintf("admin_note = $%d", len(args)))
	}
	if u.CancelReason != nil {
		args = append(args, *u.CancelReason)
		sets = append(sets, fmt.Sprintf("cancel_reason = $%d", len(args)))
	}
	query := `UPDATE orders SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("update order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("update order status", err)
	}
	if n == 1 {
		return nil
	}
	ok, err := exists(r.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = $1`, u.OrderID))
	if err != nil {
		return mapError("update order status", err)
	}
	if !ok {
		return fmt.Errorf("update order status %s: %w", u.OrderID, ErrNotFound)
	}
	return fmt.Errorf("update order status %s: %w", u.OrderID, ErrStatusConflict)
}

func orderWhere(filter models.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, q)
		conds = append(conds, fmt.Sprintf("strpos(lower(order_number), lower($%d::text)) > 0", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *orderRepo) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	where, args := orderWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list orders", err)
	}
	defer rows.Close()

	var (
		orders []models.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapError("scan order", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list orders", err)
	}
	rows.Close()

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *orderRepo) Count(ctx context.Context, filter models.OrderFilter) (int, error) {
	where, args := orderWhere(filter)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&n); err != nil {
		return 0, mapError("count orders", err)
	}
	return n, nil
}

func (r *orderRepo) Stats(ctx context.Context, userID string) (models.OrderStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE user_id = $1
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return models.OrderStats{}, mapError("order stats", err)
	}
	defer rows.Close()

	stats := models.OrderStats{TotalSpent: decimal.Zero}
	for rows.Next() {
		var (
			status models.OrderStatus
			count  int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return models.OrderStats{}, mapError("scan order stats", err)
		}
		stats.Add(status, count)
		if status == models.OrderDelivered {
			stats.TotalSpent = sum
		}
	}
	if err := rows.Err(); err != nil {
		return models.OrderStats{}, mapError("order stats", err)
	}
	return stats, nil
}
