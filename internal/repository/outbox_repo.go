package repository

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/lephuong249/storefront-orders/internal/models"
)

type outboxRepo struct {
	db DBTX
}

func (r *outboxRepo) Insert(ctx context.Context, rec models.OutboxRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload, created_at) VALUES ($1, $2, $3, $4::jsonb, $5)`,
		rec.EventID, rec.Topic, rec.Key, string(rec.Payload), rec.CreatedAt)
	return mapError("insert outbox record", err)
}

func (r *outboxRepo) FetchPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	query := `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, mapError("fetch outbox", err)
	}
	defer rows.Close()

	var out []models.OutboxRecord
	for rows.Next() {
		var (
			rec     models.OutboxRecord
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, mapError("scan outbox record", err)
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("fetch outbox", err)
	}
	return out, nil
}

func (r *outboxRepo) MarkSent(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET sent_at = $2 WHERE id = ANY($1)`, pq.Array(ids), at)
	return mapError("mark outbox sent", err)
}
