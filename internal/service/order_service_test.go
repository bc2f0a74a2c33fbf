package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

func TestCreateOrderWithVoucher(t *testing.T) {
	f := newFixture(t)

	order := f.place(t, "WELCOME10")

	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.True(t, dec(200000).Equal(order.Subtotal), order.Subtotal.String())
	assert.True(t, dec(20000).Equal(order.VoucherDiscount), order.VoucherDiscount.String())
	assert.True(t, dec(180000).Equal(order.Total), order.Total.String())
	assert.Equal(t, "welcome", order.VoucherID)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD"))
	assert.Len(t, order.OrderNumber, 12)

	require.Len(t, order.Lines, 1)
	line := order.Lines[0]
	assert.Equal(t, "Linen shirt", line.ProductName)
	assert.Equal(t, "M - Black", line.VariantName)
	assert.Equal(t, "shirt.jpg", line.ProductImage)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, dec(200000).Equal(line.Subtotal))

	require.NotNil(t, order.Address)
	require.NotNil(t, order.PaymentMethod)
	require.NotNil(t, order.Voucher)
	require.NotNil(t, order.User)
	assert.Equal(t, "linh", order.User.UserName)

	assert.Equal(t, 3, f.stock(t, "v1"))
	assert.Equal(t, 1, f.usage(t, "welcome"))
	assert.Zero(t, f.store.CartLines("u1"))
	assert.Equal(t, 1, f.store.OutboxLen())

	history, err := f.orders.History(context.Background(), order.ID, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderPending, history[0].NewStatus)
}

func TestCancelRestoresStockAndVoucher(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "WELCOME10")

	cancelled, err := f.orders.Cancel(context.Background(), CancelInput{OrderID: order.ID, UserID: "u1", Reason: "changed mind 123"})
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, "changed mind 123", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, f.stock(t, "v1"))
	assert.Equal(t, 0, f.usage(t, "welcome"))
	assert.Equal(t, 2, f.store.OutboxLen())

	history, err := f.orders.History(context.Background(), order.ID, "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderPending, history[1].OldStatus)
	assert.Equal(t, models.OrderCancelled, history[1].NewStatus)
	assert.Equal(t, "u1", history[1].ActorID)
}

func TestCreateOrderEmptyCartMutatesNothing(t *testing.T) {
	f := newFixture(t)
	f.store.PutCart(models.Cart{ID: "c1", UserID: "u1"})

	_, err := f.orders.Create(context.Background(), CreateOrderInput{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod", VoucherCode: "WELCOME10"})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeEmptyCart))
	assert.True(t, apperr.IsClient(err))

	assert.Equal(t, 5, f.stock(t, "v1"))
	assert.Equal(t, 0, f.usage(t, "welcome"))
	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.OutboxLen())
}

func TestCreateOrderRejectsBadReferences(t *testing.T) {
	cases := []struct {
		name string
		in   CreateOrderInput
		code apperr.Code
	}{
		{"missing address", CreateOrderInput{UserID: "u1", PaymentMethodID: "cod"}, apperr.CodeInvalidInput},
		{"address of another user", CreateOrderInput{UserID: "u1", AddressID: "a2", PaymentMethodID: "cod"}, apperr.CodeInvalidAddress},
		{"inactive payment method", CreateOrderInput{UserID: "u1", AddressID: "a1", PaymentMethodID: "card"}, apperr.CodeInvalidPayment},
		{"note too long", CreateOrderInput{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod", Note: strings.Repeat("x", 501)}, apperr.CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.orders.Create(context.Background(), tc.in)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tc.code), "got %v", err)
			assert.Zero(t, f.store.OrderCount())
			assert.Equal(t, 1, f.store.CartLines("u1"))
		})
	}
}

func TestCreateOrderIgnoresIneligibleVoucher(t *testing.T) {
	f := newFixture(t)
	v, _ := f.store.Voucher("welcome")
	v.MinOrderValue = dec(500000)
	f.store.PutVoucher(v)

	order := f.place(t, "WELCOME10")

	assert.True(t, order.VoucherDiscount.IsZero())
	assert.True(t, dec(200000).Equal(order.Total))
	assert.Empty(t, order.VoucherID)
	assert.Equal(t, 0, f.usage(t, "welcome"))

	f.refill("u1", 1)
	order = f.place(t, "NOPE")
	assert.True(t, order.VoucherDiscount.IsZero())
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.refill("u1", 6)

	_, err := f.orders.Create(context.Background(), CreateOrderInput{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod"})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientStock))
	assert.Equal(t, 5, f.stock(t, "v1"))
	assert.Equal(t, 1, f.store.CartLines("u1"))
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.refill("u1", 3)
	f.refill("u2", 3)

	inputs := []CreateOrderInput{
		{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod"},
		{UserID: "u2", AddressID: "a2", PaymentMethodID: "cod"},
	}
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.orders.Create(context.Background(), in)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientStock), "got %v", err)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, f.stock(t, "v1"))
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestVoucherCapHoldsUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	f.store.PutVariant(models.ProductVariant{ID: "v1", ProductID: "p1", ProductName: "Linen shirt", Price: dec(100000), Stock: 50, Size: "M", Color: "Black"})
	f.store.PutVoucher(models.Voucher{
		ID: "last", Code: "LAST1", Name: "Last one", DiscountType: models.DiscountFixedAmount,
		DiscountValue: dec(5000), MaxUsage: 1, IsActive: true,
		StartDate: testNow.AddDate(0, -1, 0), EndDate: testNow.AddDate(0, 1, 0),
	})
	f.refill("u1", 1)
	f.refill("u2", 1)

	inputs := []CreateOrderInput{
		{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod", VoucherCode: "LAST1"},
		{UserID: "u2", AddressID: "a2", PaymentMethodID: "cod", VoucherCode: "LAST1"},
	}
	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.orders.Create(context.Background(), in)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.usage(t, "last"))
}

func TestCreateOrderRetriesOnOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.orders.orderNumbers.intn = func(int) int {
		calls++
		if calls <= orderNumberSuffixLen {
			return 0
		}
		return 1
	}
	taken := f.orders.orderNumbers.Next()
	calls = 0
	require.NoError(t, f.store.Repos().Orders().Insert(context.Background(), models.Order{ID: "existing", OrderNumber: taken, UserID: "u2", Status: models.OrderPending}))

	order := f.place(t, "")

	assert.Equal(t, strings.TrimSuffix(taken, "000")+"111", order.OrderNumber)
	assert.Equal(t, 3, f.stock(t, "v1"))
	assert.Equal(t, 2, f.store.OrderCount())
}

func TestGetOrderIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "")

	_, err := f.orders.Get(context.Background(), order.ID, "u2")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	got, err := f.orders.Get(context.Background(), order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = f.orders.Get(context.Background(), "missing", "")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, 404, e.Status)
}

func TestListOrdersAndStats(t *testing.T) {
	f := newFixture(t)
	first := f.place(t, "")
	f.refill("u1", 1)
	f.place(t, "")
	f.refill("u1", 1)
	f.place(t, "")
	f.advance(t, first.ID, models.OrderConfirmed, models.OrderProcessing, models.OrderShipping, models.OrderDelivered)

	page, err := f.orders.ListForUser(context.Background(), "u1", ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, models.Pagination{Total: 3, TotalPages: 2, Limit: 2, Offset: 0}, page.Pagination)
	assert.NotNil(t, page.Data[0].Address)

	page, err = f.orders.List(context.Background(), ListQuery{Status: "delivered"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, first.ID, page.Data[0].ID)
	assert.Equal(t, DefaultListLimit, page.Pagination.Limit)
	require.NotNil(t, page.Data[0].User)

	page, err = f.orders.List(context.Background(), ListQuery{Search: strings.ToLower(first.OrderNumber), Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, page.Pagination.Limit)
	assert.Len(t, page.Data, 1)

	_, err = f.orders.List(context.Background(), ListQuery{Status: "LOST"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidStatus))

	stats, err := f.orders.Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Delivered)
	assert.True(t, dec(200000).Equal(stats.TotalSpent), stats.TotalSpent.String())
}

func TestCreateOrderKeepsLinesAddedDuringCheckout(t *testing.T) {
	f := newFixture(t)
	f.rebind(t, &hookedStore{Store: f.store, before: func() {
		f.store.PutCart(models.Cart{ID: "c1", UserID: "u1", Lines: []models.CartLine{
			{ID: "cl1", VariantID: "v1", Quantity: 2},
			{ID: "cl2", VariantID: "v1", Quantity: 1},
		}})
	}})

	order := f.place(t, "")

	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.Equal(t, 3, f.stock(t, "v1"))
	assert.Equal(t, 1, f.store.CartLines("u1"))
}

func TestCreateOrderRejectsLineChangedDuringCheckout(t *testing.T) {
	f := newFixture(t)
	f.rebind(t, &hookedStore{Store: f.store, before: func() {
		f.store.PutCart(models.Cart{ID: "c1", UserID: "u1", Lines: []models.CartLine{{ID: "cl1", VariantID: "v1", Quantity: 4}}})
	}})

	_, err := f.orders.Create(context.Background(), CreateOrderInput{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod", VoucherCode: "WELCOME10"})

	e, ok := apperr.As(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, apperr.CodeConflict, e.Code)
	assert.Equal(t, http.StatusConflict, e.Status)
	assert.Equal(t, 5, f.stock(t, "v1"))
	assert.Zero(t, f.usage(t, "welcome"))
	assert.Zero(t, f.store.OrderCount())
	assert.Equal(t, 1, f.store.CartLines("u1"))
}

func TestCreateOrderStoreFailureLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		timeout time.Duration
	}{
		{name: "write error", err: errors.New("write outbox: connection reset by peer")},
		{name: "deadline", timeout: 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.rebind(t, &hookedStore{Store: f.store, wrap: func(r repository.Repositories) repository.Repositories {
				return outboxOverride{Repositories: r, outbox: brokenOutbox{OutboxRepository: r.Outbox(), err: tt.err}}
			}})

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}
			_, err := f.orders.Create(ctx, CreateOrderInput{UserID: "u1", AddressID: "a1", PaymentMethodID: "cod", VoucherCode: "WELCOME10"})

			e, ok := apperr.As(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, apperr.CodeStoreUnavailable, e.Code)
			assert.Equal(t, http.StatusServiceUnavailable, e.Status)
			assert.True(t, e.Retryable)

			assert.Equal(t, 5, f.stock(t, "v1"))
			assert.Zero(t, f.usage(t, "welcome"))
			assert.Equal(t, 1, f.store.CartLines("u1"))
			assert.Zero(t, f.store.OrderCount())
			assert.Zero(t, f.store.OutboxLen())
		})
	}
}
