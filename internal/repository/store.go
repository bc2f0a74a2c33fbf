package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const defaultTxTimeout = 5 * time.Second

// Postgres is the relational Store. Every InTx call runs in one database
// transaction bounded by the configured timeout.
type Postgres struct {
	db        *sql.DB
	txTimeout time.Duration
}

func NewPostgres(db *sql.DB, txTimeout time.Duration) *Postgres {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &Postgres{db: db, txTimeout: txTimeout}
}

func (p *Postgres) Repos() Repositories {
	return &queries{db: p.db}
}

func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.txTimeout)
	defer cancel()

	// Guarded single-statement updates carry the invariants, so READ COMMITTED
	// is enough and avoids serialization retries.
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}
	committed = true
	return nil
}

type queries struct {
	db DBTX
}

func (q *queries) Variants() VariantRepository             { return &variantRepo{db: q.db} }
func (q *queries) Vouchers() VoucherRepository             { return &voucherRepo{db: q.db} }
func (q *queries) Carts() CartRepository                   { return &cartRepo{db: q.db} }
func (q *queries) Addresses() AddressRepository            { return &addressRepo{db: q.db} }
func (q *queries) PaymentMethods() PaymentMethodRepository { return &paymentMethodRepo{db: q.db} }
func (q *queries) Users() UserRepository                   { return &userRepo{db: q.db} }
func (q *queries) Orders() OrderRepository                 { return &orderRepo{db: q.db} }
func (q *queries) Audit() AuditRepository                  { return &auditRepo{db: q.db} }
func (q *queries) Outbox() OutboxRepository                { return &outboxRepo{db: q.db} }
