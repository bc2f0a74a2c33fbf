package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lephuong249/storefront-orders/internal/models"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrInsufficientStock is returned when a guarded stock decrement matched no row.
	ErrInsufficientStock = errors.New("repository: insufficient stock")
	// ErrVoucherExhausted is returned when a guarded usage increment matched no row.
	ErrVoucherExhausted = errors.New("repository: voucher usage exhausted")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrStatusConflict is returned when an order no longer has the expected status.
	ErrStatusConflict = errors.New("repository: order status changed concurrently")
	// ErrConflict is returned when a guarded write found its rows changed since they were read.
	ErrConflict = errors.New("repository: rows changed concurrently")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type VariantRepository interface {
	GetByID(ctx context.Context, id string) (models.ProductVariant, error)
	// DecrementStock subtracts qty only if the resulting stock stays >= 0.
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}

type VoucherRepository interface {
	GetByID(ctx context.Context, id string) (models.Voucher, error)
	GetByCode(ctx context.Context, code string) (models.Voucher, error)
	Insert(ctx context.Context, v models.Voucher) error
	// Update rewrites the editable columns and leaves usage alone. It returns
	// ErrConflict when the new max usage is below the current usage.
	Update(ctx context.Context, v models.Voucher) error
	// Delete removes the voucher. Orders referencing it keep their row with
	// the reference cleared.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.VoucherFilter) ([]models.Voucher, int, error)
	ListAvailable(ctx context.Context, orderValue decimal.Decimal, now time.Time) ([]models.Voucher, error)
	// IncrementUsage adds one use only while current usage is below the cap.
	IncrementUsage(ctx context.Context, id string) error
	// DecrementUsage removes one use only while current usage is above zero.
	DecrementUsage(ctx context.Context, id string) error
	CountOrders(ctx context.Context, id string) (int, error)
}

type CartRepository interface {
	// GetByUser returns the cart with each line's live variant attached.
	GetByUser(ctx context.Context, userID string) (models.Cart, error)
	// RemoveLines deletes exactly the given lines, each matched on id, variant
	// and quantity. Lines added since are kept. ErrConflict is returned when
	// any given line changed or is gone.
	RemoveLines(ctx context.Context, cartID string, lines []models.CartLine) error
}

type AddressRepository interface {
	GetForUser(ctx context.Context, id, userID string) (models.Address, error)
	GetByID(ctx context.Context, id string) (models.Address, error)
}

type PaymentMethodRepository interface {
	GetActive(ctx context.Context, id string) (models.PaymentMethod, error)
	GetByID(ctx context.Context, id string) (models.PaymentMethod, error)
}

type UserRepository interface {
	GetSummary(ctx context.Context, id string) (models.UserSummary, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, order models.Order) error
	InsertLine(ctx context.Context, line models.OrderLine) error
	// GetByID returns the order row with its lines.
	GetByID(ctx context.Context, id string) (models.Order, error)
	// GetForUpdate is GetByID plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (models.Order, error)
	UpdateStatus(ctx context.Context, update models.StatusUpdate) error
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	Count(ctx context.Context, filter models.OrderFilter) (int, error)
	Stats(ctx context.Context, userID string) (models.OrderStats, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]models.AuditEntry, error)
}

type OutboxRepository interface {
	Insert(ctx context.Context, rec models.OutboxRecord) error
	// FetchPending returns unsent records, skipping rows locked by other relays.
	FetchPending(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkSent(ctx context.Context, ids []int64, at time.Time) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Variants() VariantRepository
	Vouchers() VoucherRepository
	Carts() CartRepository
	Addresses() AddressRepository
	PaymentMethods() PaymentMethodRepository
	Users() UserRepository
	Orders() OrderRepository
	Audit() AuditRepository
	Outbox() OutboxRepository
}

// Store hands out repositories. Work passed to InTx commits atomically or not at all.
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
