package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

func TestCanTransition(t *testing.T) {
	allowed := map[models.OrderStatus][]models.OrderStatus{
		models.OrderPending:    {models.OrderConfirmed, models.OrderCancelled},
		models.OrderConfirmed:  {models.OrderProcessing, models.OrderCancelled},
		models.OrderProcessing: {models.OrderShipping, models.OrderCancelled},
		models.OrderShipping:   {models.OrderDelivered},
	}
	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			want := false
			for _, ok := range allowed[from] {
				want = want || ok == to
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.Empty(t, NextStatuses(models.OrderDelivered))
	assert.Empty(t, NextStatuses(models.OrderCancelled))
}

func TestTransitionStampsTimestamps(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "")

	got, err := f.orders.Transition(context.Background(), TransitionInput{
		OrderID: order.ID, ActorID: "admin", Status: "confirmed", AdminNote: "paid by phone",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, got.Status)
	assert.Equal(t, "paid by phone", got.AdminNote)
	require.NotNil(t, got.ConfirmedAt)

	f.advance(t, order.ID, models.OrderProcessing, models.OrderShipping, models.OrderDelivered)
	got, err = f.orders.Get(context.Background(), order.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, got.ShippedAt)
	assert.NotNil(t, got.DeliveredAt)
	assert.Nil(t, got.CancelledAt)

	history, err := f.orders.History(context.Background(), order.ID, "")
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "admin", history[1].ActorID)
	assert.Equal(t, "paid by phone", history[1].Reason)
	assert.Equal(t, models.OrderShipping, history[4].OldStatus)
	assert.Equal(t, models.OrderDelivered, history[4].NewStatus)
}

func TestTransitionRejectsInvalidMoves(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "")
	f.advance(t, order.ID, models.OrderConfirmed, models.OrderProcessing, models.OrderShipping)

	_, err := f.orders.Transition(context.Background(), TransitionInput{OrderID: order.ID, ActorID: "admin", Status: "CONFIRMED"})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))
	assert.True(t, apperr.IsClient(err))

	_, err = f.orders.Transition(context.Background(), TransitionInput{OrderID: order.ID, Status: "CANCELLED", CancelReason: "too late now"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))

	_, err = f.orders.Transition(context.Background(), TransitionInput{OrderID: order.ID, Status: "LOST"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidStatus))

	_, err = f.orders.Transition(context.Background(), TransitionInput{OrderID: "missing", Status: "CONFIRMED"})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	got, err := f.orders.Get(context.Background(), order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipping, got.Status)
}

func TestAdminCancelRequiresReasonAndCompensates(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "WELCOME10")
	f.advance(t, order.ID, models.OrderConfirmed, models.OrderProcessing)

	_, err := f.orders.Transition(context.Background(), TransitionInput{OrderID: order.ID, ActorID: "admin", Status: "CANCELLED"})
	assert.True(t, apperr.HasCode(err, apperr.CodeCancelReasonRequired))
	assert.Equal(t, 3, f.stock(t, "v1"))

	got, err := f.orders.Transition(context.Background(), TransitionInput{
		OrderID: order.ID, ActorID: "admin", Status: "CANCELLED", CancelReason: "out of fabric",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, "out of fabric", got.CancelReason)
	assert.Equal(t, 5, f.stock(t, "v1"))
	assert.Equal(t, 0, f.usage(t, "welcome"))
}

func TestUserCancelRules(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "")
	ctx := context.Background()

	_, err := f.orders.Cancel(ctx, CancelInput{OrderID: order.ID, UserID: "u1", Reason: "short"})
	assert.True(t, apperr.HasCode(err, apperr.CodeCancelReasonRequired))

	_, err = f.orders.Cancel(ctx, CancelInput{OrderID: order.ID, UserID: "u2", Reason: "not my order at all"})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	f.advance(t, order.ID, models.OrderConfirmed)
	_, err = f.orders.Cancel(ctx, CancelInput{OrderID: order.ID, UserID: "u1", Reason: "found it cheaper"})
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, CancelInput{OrderID: order.ID, UserID: "u1", Reason: "found it cheaper"})
	assert.True(t, apperr.HasCode(err, apperr.CodeCancelNotAllowed))
	assert.Equal(t, 5, f.stock(t, "v1"))
}

func TestUserCannotCancelDeliveredOrder(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "")
	f.advance(t, order.ID, models.OrderConfirmed, models.OrderProcessing, models.OrderShipping, models.OrderDelivered)

	_, err := f.orders.Cancel(context.Background(), CancelInput{OrderID: order.ID, UserID: "u1", Reason: "changed mind 123"})
	require.Error(t, err)
	assert.True(t, apperr.IsClient(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeCancelNotAllowed))
	assert.Equal(t, 3, f.stock(t, "v1"))
}

func TestCancelSkipsDeletedVariant(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "")
	order.Lines[0].VariantID = ""

	err := f.store.InTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		return f.orders.Compensator().compensate(ctx, repos, order, compensation{actorID: "u1", reason: "variant removed"})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, "v1"))
}
