package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/events"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed:  {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderShipping, models.OrderCancelled},
	models.OrderShipping:   {models.OrderDelivered},
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from from.
func NextStatuses(from models.OrderStatus) []models.OrderStatus {
	return append([]models.OrderStatus(nil), transitions[from]...)
}

func invalidStatus(s string) *apperr.Error {
	return apperr.Client(apperr.CodeInvalidStatus, fmt.Sprintf("unknown order status %q", s), http.StatusBadRequest)
}

type TransitionInput struct {
	OrderID      string
	ActorID      string
	Status       string
	AdminNote    string
	CancelReason string
}

// OrderStateMachine applies administrator status changes. A move to
// CANCELLED is handed to the CancellationCompensator so stock and voucher
// usage are restored in the same transaction.
type OrderStateMachine struct {
	orders      *OrderService
	compensator *CancellationCompensator
}

func (m *OrderStateMachine) Transition(ctx context.Context, in TransitionInput) (models.Order, error) {
	s := m.orders
	to, err := in.validate()
	if err != nil {
		s.fail("transition", err, zap.String("order_id", in.OrderID))
		return models.Order{}, err
	}

	var from models.OrderStatus
	start := time.Now()
	err = s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		order, err := lockOrder(ctx, repos, in.OrderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !CanTransition(order.Status, to) {
			return apperr.InvalidTransition(string(order.Status), string(to))
		}
		if to == models.OrderCancelled {
			return m.compensator.compensate(ctx, repos, order, compensation{
				actorID:   in.ActorID,
				reason:    in.CancelReason,
				adminNote: in.AdminNote,
			})
		}
		return m.apply(ctx, repos, order, to, in)
	})
	s.metrics.ObserveTx("transition", time.Since(start))
	if err != nil {
		err = mapStoreError(err)
		s.fail("transition", err, zap.String("order_id", in.OrderID), zap.String("to", string(to)))
		return models.Order{}, err
	}

	s.metrics.ObserveTransition(string(from), string(to))
	if to == models.OrderCancelled {
		s.metrics.ObserveCancelled()
	}
	s.logger.Info("order status changed",
		zap.String("order_id", in.OrderID),
		zap.String("actor_id", in.ActorID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return s.Get(ctx, in.OrderID, "")
}

func (in *TransitionInput) validate() (models.OrderStatus, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.AdminNote = strings.TrimSpace(in.AdminNote)
	in.CancelReason = strings.TrimSpace(in.CancelReason)
	if in.OrderID == "" {
		return "", invalid("order id is required")
	}
	to := models.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !to.Valid() {
		return "", invalidStatus(in.Status)
	}
	if to == models.OrderCancelled && in.CancelReason == "" {
		return "", apperr.Client(apperr.CodeCancelReasonRequired, "a cancellation reason is required", http.StatusBadRequest)
	}
	return to, nil
}

func (m *OrderStateMachine) apply(ctx context.Context, repos repository.Repositories, order models.Order, to models.OrderStatus, in TransitionInput) error {
	s := m.orders
	now := s.now()
	update := models.StatusUpdate{OrderID: order.ID, From: order.Status, To: to, At: now}
	if in.AdminNote != "" {
		update.AdminNote = &in.AdminNote
	}
	if err := repos.Orders().UpdateStatus(ctx, update); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := repos.Audit().Append(ctx, models.AuditEntry{
		ID:        s.newID(),
		OrderID:   order.ID,
		ActorID:   in.ActorID,
		OldStatus: order.Status,
		NewStatus: to,
		Reason:    in.AdminNote,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	old := order.Status
	order.Status = to
	return s.events.Record(ctx, repos.Outbox(), events.NewEvent(events.OrderStatusChanged, order, old, in.ActorID, in.AdminNote, now))
}

func lockOrder(ctx context.Context, repos repository.Repositories, orderID string) (models.Order, error) {
	order, err := repos.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Order{}, apperr.NotFound("order not found")
		}
		return models.Order{}, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}
