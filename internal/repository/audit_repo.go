package repository

import (
	"context"
	"database/sql"

	"github.com/lephuong249/storefront-orders/internal/models"
)

type auditRepo struct {
	db DBTX
}

func (r *auditRepo) Append(ctx context.Context, e models.AuditEntry) error {
	query := `
		INSERT INTO order_audit_entries (id, order_id, actor_id, old_status, new_status, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.OrderID, e.ActorID, nullString(string(e.OldStatus)), e.NewStatus, nullString(e.Reason), e.CreatedAt)
	return mapError("append audit entry", err)
}

func (r *auditRepo) ListByOrder(ctx context.Context, orderID string) ([]models.AuditEntry, error) {
	query := `
		SELECT id, order_id, actor_id, old_status, new_status, reason, created_at
		FROM order_audit_entries
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, mapError("list audit entries", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			e         models.AuditEntry
			oldStatus sql.NullString
			reason    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ActorID, &oldStatus, &e.NewStatus, &reason, &e.CreatedAt); err != nil {
			return nil, mapError("scan audit entry", err)
		}
		e.OldStatus = models.OrderStatus(oldStatus.String)
		e.Reason = reason.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list audit entries", err)
	}
	return out, nil
}
