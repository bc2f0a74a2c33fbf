package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/events"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

const (
	minCancelReason = 10
	maxCancelReason = 200
)

type CancelInput struct {
	OrderID string
	UserID  string
	Reason  string
}

// CancellationCompensator cancels orders and reverses the stock and voucher
// effects of checkout.
type CancellationCompensator struct {
	orders *OrderService
}

// userCancellable lists the statuses from which owners may cancel.
func userCancellable(st models.OrderStatus) bool {
	return st == models.OrderPending || st == models.OrderConfirmed
}

// Cancel cancels one of the user's own orders while it is still PENDING or
// CONFIRMED.
func (c *CancellationCompensator) Cancel(ctx context.Context, in CancelInput) (models.Order, error) {
	s := c.orders
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.Reason = strings.TrimSpace(in.Reason)
	if n := utf8.RuneCountInString(in.Reason); n < minCancelReason || n > maxCancelReason {
		err := apperr.Client(apperr.CodeCancelReasonRequired,
			fmt.Sprintf("cancellation reason must be %d to %d characters", minCancelReason, maxCancelReason), http.StatusBadRequest)
		s.fail("cancel", err, zap.String("order_id", in.OrderID))
		return models.Order{}, err
	}

	start := time.Now()
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		order, err := lockOrder(ctx, repos, in.OrderID)
		if err != nil {
			return err
		}
		if in.UserID != "" && order.UserID != in.UserID {
			return apperr.NotFound("order not found")
		}
		if !userCancellable(order.Status) {
			return apperr.Client(apperr.CodeCancelNotAllowed,
				fmt.Sprintf("orders in status %s can no longer be cancelled", order.Status), http.StatusBadRequest)
		}
		return c.compensate(ctx, repos, order, compensation{actorID: in.UserID, reason: in.Reason})
	})
	s.metrics.ObserveTx("cancel", time.Since(start))
	if err != nil {
		err = mapStoreError(err)
		s.fail("cancel", err, zap.String("order_id", in.OrderID), zap.String("user_id", in.UserID))
		return models.Order{}, err
	}

	s.metrics.ObserveCancelled()
	s.logger.Info("order cancelled", zap.String("order_id", in.OrderID), zap.String("user_id", in.UserID))
	return s.Get(ctx, in.OrderID, in.UserID)
}

type compensation struct {
	actorID   string
	reason    string
	adminNote string
}

// compensate moves a locked order to CANCELLED and restores the stock and
// voucher usage it consumed. It must run inside the caller's transaction.
func (c *CancellationCompensator) compensate(ctx context.Context, repos repository.Repositories, order models.Order, comp compensation) error {
	s := c.orders
	now := s.now()

	update := models.StatusUpdate{
		OrderID:      order.ID,
		From:         order.Status,
		To:           models.OrderCancelled,
		At:           now,
		CancelReason: &comp.reason,
	}
	if comp.adminNote != "" {
		update.AdminNote = &comp.adminNote
	}
	if err := repos.Orders().UpdateStatus(ctx, update); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	for _, line := range order.Lines {
		if line.VariantID == "" {
			continue
		}
		err := s.inventory.Release(ctx, repos.Variants(), line.VariantID, line.Quantity)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("variant gone, stock not restored",
				zap.String("order_id", order.ID), zap.String("variant_id", line.VariantID))
			continue
		}
		if err != nil {
			return fmt.Errorf("release stock: %w", err)
		}
	}

	if order.VoucherID != "" {
		err := repos.Vouchers().DecrementUsage(ctx, order.VoucherID)
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrVoucherExhausted):
			s.logger.Warn("voucher usage not restored",
				zap.String("order_id", order.ID), zap.String("voucher_id", order.VoucherID), zap.Error(err))
		case err != nil:
			return fmt.Errorf("restore voucher usage: %w", err)
		}
	}

	reason := comp.reason
	if comp.adminNote != "" {
		reason = comp.adminNote
	}
	if err := repos.Audit().Append(ctx, models.AuditEntry{
		ID:        s.newID(),
		OrderID:   order.ID,
		ActorID:   comp.actorID,
		OldStatus: order.Status,
		NewStatus: models.OrderCancelled,
		Reason:    reason,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	old := order.Status
	order.Status = models.OrderCancelled
	return s.events.Record(ctx, repos.Outbox(), events.NewEvent(events.OrderCancelled, order, old, comp.actorID, comp.reason, now))
}
