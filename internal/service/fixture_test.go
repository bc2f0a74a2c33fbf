package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
	"github.com/lephuong249/storefront-orders/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	store    *memory.Store
	orders   *OrderService
	vouchers *VoucherService
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%04d", n.Add(1)) }
}

// newFixture seeds user u1 with a cart holding 2 x v1 (100000, stock 5) and
// the WELCOME10 voucher.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	store.PutUser(models.UserSummary{ID: "u1", UserName: "linh", Email: "linh@example.com"})
	store.PutUser(models.UserSummary{ID: "u2", UserName: "minh", Email: "minh@example.com"})
	store.PutAddress(models.Address{ID: "a1", UserID: "u1", FullName: "Linh", City: "Hanoi", AddressLine: "1 Trang Tien"})
	store.PutAddress(models.Address{ID: "a2", UserID: "u2", FullName: "Minh", City: "Hue", AddressLine: "2 Le Loi"})
	store.PutPaymentMethod(models.PaymentMethod{ID: "cod", Name: "Cash on delivery", Code: "COD", IsActive: true})
	store.PutPaymentMethod(models.PaymentMethod{ID: "card", Name: "Card", Code: "CARD", IsActive: false})
	store.PutVariant(models.ProductVariant{
		ID: "v1", ProductID: "p1", ProductName: "Linen shirt", Price: dec(100000), Stock: 5,
		Size: "M", Color: "Black", ImageRef: "shirt.jpg",
	})
	store.PutVoucher(models.Voucher{
		ID: "welcome", Code: "WELCOME10", Name: "Welcome ten", DiscountType: models.DiscountPercentage,
		DiscountValue: dec(10), MinOrderValue: dec(100000), MaxUsage: 100, IsActive: true,
		StartDate: testNow.AddDate(0, -1, 0), EndDate: testNow.AddDate(0, 6, 0),
	})
	store.PutCart(models.Cart{ID: "c1", UserID: "u1", Lines: []models.CartLine{{ID: "cl1", VariantID: "v1", Quantity: 2}}})

	newID := sequentialIDs()
	vouchers, err := NewVoucherService(VoucherServiceDeps{Store: store, Clock: fixedClock, NewID: newID})
	require.NoError(t, err)
	orders, err := NewOrderService(OrderServiceDeps{
		Store:        store,
		Vouchers:     vouchers,
		OrderNumbers: NewOrderNumberGenerator("ORD", fixedClock),
		Clock:        fixedClock,
		NewID:        newID,
	})
	require.NoError(t, err)
	return &fixture{store: store, orders: orders, vouchers: vouchers}
}

// rebind rebuilds the order service on store, which normally wraps f.store.
func (f *fixture) rebind(t *testing.T, store repository.Store) {
	t.Helper()
	orders, err := NewOrderService(OrderServiceDeps{
		Store:        store,
		Vouchers:     f.vouchers,
		OrderNumbers: NewOrderNumberGenerator("ORD", fixedClock),
		Clock:        fixedClock,
		NewID:        sequentialIDs(),
	})
	require.NoError(t, err)
	f.orders = orders
}

// hookedStore runs before ahead of every transaction and lets wrap replace
// the repositories the transaction sees.
type hookedStore struct {
	*memory.Store
	before func()
	wrap   func(repository.Repositories) repository.Repositories
}

func (s *hookedStore) InTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if s.before != nil {
		s.before()
	}
	return s.Store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if s.wrap != nil {
			repos = s.wrap(repos)
		}
		return fn(ctx, repos)
	})
}

type outboxOverride struct {
	repository.Repositories
	outbox repository.OutboxRepository
}

func (r outboxOverride) Outbox() repository.OutboxRepository { return r.outbox }

// brokenOutbox fails every insert with err, or with the context error once
// ctx is done when err is nil.
type brokenOutbox struct {
	repository.OutboxRepository
	err error
}

func (o brokenOutbox) Insert(ctx context.Context, _ models.OutboxRecord) error {
	if o.err != nil {
		return o.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	v, ok := f.store.Variant(id)
	require.True(t, ok)
	return v.Stock
}

func (f *fixture) usage(t *testing.T, id string) int {
	t.Helper()
	v, ok := f.store.Voucher(id)
	require.True(t, ok)
	return v.CurrentUsage
}

func (f *fixture) place(t *testing.T, voucher string) models.Order {
	t.Helper()
	order, err := f.orders.Create(context.Background(), CreateOrderInput{
		UserID: "u1", AddressID: "a1", PaymentMethodID: "cod", VoucherCode: voucher,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) refill(userID string, qty int) {
	f.store.PutCart(models.Cart{ID: "c-" + userID, UserID: userID, Lines: []models.CartLine{{ID: "l-" + userID, VariantID: "v1", Quantity: qty}}})
}

func (f *fixture) advance(t *testing.T, orderID string, statuses ...models.OrderStatus) {
	t.Helper()
	for _, st := range statuses {
		_, err := f.orders.Transition(context.Background(), TransitionInput{OrderID: orderID, ActorID: "admin", Status: string(st)})
		require.NoError(t, err)
	}
}
