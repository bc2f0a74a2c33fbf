package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/concurrency"
	"github.com/lephuong249/storefront-orders/internal/events"
	"github.com/lephuong249/storefront-orders/internal/metrics"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository"
)

const (
	DefaultOrderNumberRetries = 3
	maxNoteLength             = 500
)

type OrderServiceDeps struct {
	Store              repository.Store
	Vouchers           *VoucherService
	OrderNumbers       *OrderNumberGenerator
	OrderNumberRetries int
	Events             *events.Recorder
	Metrics            *metrics.OrderMetrics
	Logger             *zap.Logger
	Clock              func() time.Time
	NewID              func() string
}

// OrderService places orders and serves the order read model. Status changes
// are delegated to the state machine and the cancellation compensator.
type OrderService struct {
	store        repository.Store
	vouchers     *VoucherService
	inventory    InventoryGuard
	pricing      PricingEngine
	orderNumbers *OrderNumberGenerator
	retries      int
	events       *events.Recorder
	metrics      *metrics.OrderMetrics
	logger       *zap.Logger
	clock        func() time.Time
	newID        func() string

	stateMachine *OrderStateMachine
	compensator  *CancellationCompensator
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Store == nil {
		return nil, errors.New("order service: store is required")
	}
	s := &OrderService{
		store:        deps.Store,
		vouchers:     deps.Vouchers,
		orderNumbers: deps.OrderNumbers,
		retries:      deps.OrderNumberRetries,
		events:       deps.Events,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		clock:        deps.Clock,
		newID:        deps.NewID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.events == nil {
		s.events = events.NewRecorder("")
	}
	if s.orderNumbers == nil {
		s.orderNumbers = NewOrderNumberGenerator("", s.clock)
	}
	if s.retries <= 0 {
		s.retries = DefaultOrderNumberRetries
	}
	if s.vouchers == nil {
		v, err := NewVoucherService(VoucherServiceDeps{Store: s.store, Logger: s.logger, Clock: s.clock, NewID: s.newID})
		if err != nil {
			return nil, err
		}
		s.vouchers = v
	}
	s.compensator = &CancellationCompensator{orders: s}
	s.stateMachine = &OrderStateMachine{orders: s, compensator: s.compensator}
	return s, nil
}

func (s *OrderService) now() time.Time {
	return s.clock().UTC()
}

func (s *OrderService) StateMachine() *OrderStateMachine { return s.stateMachine }

func (s *OrderService) Compensator() *CancellationCompensator { return s.compensator }

type CreateOrderInput struct {
	UserID          string
	AddressID       string
	PaymentMethodID string
	VoucherCode     string
	Note            string
}

func (in CreateOrderInput) normalize() (CreateOrderInput, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.AddressID = strings.TrimSpace(in.AddressID)
	in.PaymentMethodID = strings.TrimSpace(in.PaymentMethodID)
	in.VoucherCode = strings.TrimSpace(in.VoucherCode)
	in.Note = strings.TrimSpace(in.Note)
	switch {
	case in.UserID == "":
		return in, invalid("user id is required")
	case in.AddressID == "":
		return in, invalid("address id is required")
	case in.PaymentMethodID == "":
		return in, invalid("payment method id is required")
	case utf8.RuneCountInString(in.Note) > maxNoteLength:
		return in, invalid(fmt.Sprintf("note must be at most %d characters", maxNoteLength))
	}
	return in, nil
}

// checkout is everything Create resolves before opening a transaction.
type checkout struct {
	cart     models.Cart
	quote    Quote
	discount models.VoucherResolution
}

// Create converts the user's cart into a PENDING order. Reads and
// validation run first without a transaction; every mutation then commits
// together or not at all.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (models.Order, error) {
	order, err := s.create(ctx, in)
	if err != nil {
		s.fail("create", err, zap.String("user_id", in.UserID))
		return models.Order{}, err
	}
	s.metrics.ObserveCreated()
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.String()),
	)
	loaded, err := s.Get(ctx, order.ID, order.UserID)
	if err != nil {
		s.logger.Warn("reload created order", zap.String("order_id", order.ID), zap.Error(err))
		return order, nil
	}
	return loaded, nil
}

func (s *OrderService) create(ctx context.Context, in CreateOrderInput) (models.Order, error) {
	in, err := in.normalize()
	if err != nil {
		return models.Order{}, err
	}
	co, err := s.prepare(ctx, in)
	if err != nil {
		return models.Order{}, err
	}

	var order models.Order
	for attempt := 1; ; attempt++ {
		order = s.buildOrder(in, co)
		start := time.Now()
		err = s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			return s.persist(ctx, repos, order, co)
		})
		s.metrics.ObserveTx("create", time.Since(start))
		if errors.Is(err, repository.ErrDuplicate) && attempt <= s.retries {
			s.logger.Warn("order number collision, retrying",
				zap.String("order_number", order.OrderNumber), zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		return models.Order{}, mapStoreError(err)
	}
	return order, nil
}

func (s *OrderService) prepare(ctx context.Context, in CreateOrderInput) (checkout, error) {
	repos := s.store.Repos()

	if _, err := repos.Addresses().GetForUser(ctx, in.AddressID, in.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return checkout{}, apperr.Client(apperr.CodeInvalidAddress, "shipping address not found", http.StatusNotFound)
		}
		return checkout{}, mapStoreError(err)
	}
	if _, err := repos.PaymentMethods().GetActive(ctx, in.PaymentMethodID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return checkout{}, apperr.Client(apperr.CodeInvalidPayment, "payment method not found or inactive", http.StatusNotFound)
		}
		return checkout{}, mapStoreError(err)
	}

	cart, err := repos.Carts().GetByUser(ctx, in.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return checkout{}, mapStoreError(err)
	}
	quote, err := s.pricing.Quote(cart)
	if err != nil {
		return checkout{}, err
	}

	discount := models.VoucherResolution{DiscountAmount: decimal.Zero}
	if in.VoucherCode != "" {
		discount, err = s.vouchers.Resolve(ctx, repos.Vouchers(), in.VoucherCode, quote.Subtotal)
		if err != nil {
			return checkout{}, mapStoreError(err)
		}
	}
	return checkout{cart: cart, quote: quote, discount: discount}, nil
}

func (s *OrderService) buildOrder(in CreateOrderInput, co checkout) models.Order {
	now := s.now()
	order := models.Order{
		ID:              s.newID(),
		OrderNumber:     s.orderNumbers.Next(),
		UserID:          in.UserID,
		AddressID:       in.AddressID,
		PaymentMethodID: in.PaymentMethodID,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentPending,
		Subtotal:        co.quote.Subtotal,
		VoucherDiscount: co.discount.DiscountAmount,
		Total:           co.quote.Subtotal.Sub(co.discount.DiscountAmount),
		Note:            in.Note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if co.discount.Applied() {
		order.VoucherID = co.discount.VoucherID
	}
	order.Lines = make([]models.OrderLine, len(co.quote.Lines))
	for i, ql := range co.quote.Lines {
		order.Lines[i] = ql.Snapshot(s.newID(), order.ID)
	}
	return order
}

func (s *OrderService) persist(ctx context.Context, repos repository.Repositories, order models.Order, co checkout) error {
	if err := repos.Orders().Insert(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, line := range order.Lines {
		if err := repos.Orders().InsertLine(ctx, line); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
		if err := s.inventory.Reserve(ctx, repos.Variants(), line.VariantID, line.Quantity); err != nil {
			return err
		}
	}
	if order.VoucherID != "" {
		if err := repos.Vouchers().IncrementUsage(ctx, order.VoucherID); err != nil {
			if errors.Is(err, repository.ErrVoucherExhausted) || errors.Is(err, repository.ErrNotFound) {
				return apperr.Client(apperr.CodeVoucherExhausted, "voucher has no remaining uses", http.StatusBadRequest)
			}
			return fmt.Errorf("increment voucher usage: %w", err)
		}
	}
	if err := repos.Carts().RemoveLines(ctx, co.cart.ID, co.cart.Lines); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperr.Client(apperr.CodeConflict, "cart changed during checkout, please review it and retry", http.StatusConflict)
		}
		return fmt.Errorf("clear cart: %w", err)
	}
	if err := repos.Audit().Append(ctx, models.AuditEntry{
		ID:        s.newID(),
		OrderID:   order.ID,
		ActorID:   order.UserID,
		NewStatus: models.OrderPending,
		Reason:    "order placed",
		CreatedAt: order.CreatedAt,
	}); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return s.events.Record(ctx, repos.Outbox(), events.NewEvent(events.OrderCreated, order, "", order.UserID, "", order.CreatedAt))
}

// fail records a failed operation. Client errors are expected traffic and
// are logged at debug level.
func (s *OrderService) fail(op string, err error, fields ...zap.Field) {
	code := errorCode(err)
	s.metrics.ObserveFailure(op, code)
	fields = append(fields, zap.String("op", op), zap.String("code", code), zap.Error(err))
	if apperr.IsClient(err) {
		s.logger.Debug("order operation rejected", fields...)
		return
	}
	s.logger.Error("order operation failed", fields...)
}

// Get loads an order with its lines and related records. A non-empty
// ownerID hides orders of other users behind a not-found error.
func (s *OrderService) Get(ctx context.Context, orderID, ownerID string) (models.Order, error) {
	repos := s.store.Repos()
	order, err := repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Order{}, apperr.NotFound("order not found")
		}
		return models.Order{}, mapStoreError(err)
	}
	if ownerID != "" && order.UserID != ownerID {
		return models.Order{}, apperr.NotFound("order not found")
	}
	if err := s.attach(ctx, repos, &order, true); err != nil {
		return models.Order{}, mapStoreError(err)
	}
	return order, nil
}

// attach loads the related records of order in parallel. Records deleted
// since the order was placed are left nil.
func (s *OrderService) attach(ctx context.Context, repos repository.Repositories, order *models.Order, full bool) error {
	tasks := []func(ctx context.Context) error{
		func(ctx context.Context) error {
			a, err := repos.Addresses().GetByID(ctx, order.AddressID)
			if err == nil {
				order.Address = &a
			}
			return ignoreNotFound(err)
		},
		func(ctx context.Context) error {
			u, err := repos.Users().GetSummary(ctx, order.UserID)
			if err == nil {
				order.User = &u
			}
			return ignoreNotFound(err)
		},
	}
	if full {
		tasks = append(tasks,
			func(ctx context.Context) error {
				pm, err := repos.PaymentMethods().GetByID(ctx, order.PaymentMethodID)
				if err == nil {
					order.PaymentMethod = &pm
				}
				return ignoreNotFound(err)
			},
			func(ctx context.Context) error {
				if order.VoucherID == "" {
					return nil
				}
				v, err := repos.Vouchers().GetByID(ctx, order.VoucherID)
				if err == nil {
					order.Voucher = &v
				}
				return ignoreNotFound(err)
			},
		)
	}
	return concurrency.All(ctx, tasks...)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// ListForUser pages through the user's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID string, q ListQuery) (models.Page[models.Order], error) {
	if strings.TrimSpace(userID) == "" {
		return models.Page[models.Order]{}, invalid("user id is required")
	}
	return s.list(ctx, userID, q)
}

// List pages through all orders for administrators.
func (s *OrderService) List(ctx context.Context, q ListQuery) (models.Page[models.Order], error) {
	return s.list(ctx, "", q)
}

func (s *OrderService) list(ctx context.Context, userID string, q ListQuery) (models.Page[models.Order], error) {
	q = q.normalize()
	filter, err := q.filter(userID)
	if err != nil {
		return models.Page[models.Order]{}, err
	}

	repos := s.store.Repos()
	var (
		orders []models.Order
		total  int
	)
	err = concurrency.All(ctx,
		func(ctx context.Context) error {
			var err error
			orders, err = repos.Orders().List(ctx, filter)
			return err
		},
		func(ctx context.Context) error {
			var err error
			total, err = repos.Orders().Count(ctx, filter)
			return err
		},
	)
	if err != nil {
		return models.Page[models.Order]{}, mapStoreError(err)
	}

	err = concurrency.Each(ctx, 4, len(orders), func(ctx context.Context, i int) error {
		return s.attach(ctx, repos, &orders[i], false)
	})
	if err != nil {
		return models.Page[models.Order]{}, mapStoreError(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return models.Page[models.Order]{Data: orders, Pagination: models.NewPagination(total, q.Limit, q.Offset)}, nil
}

func (s *OrderService) Stats(ctx context.Context, userID string) (models.OrderStats, error) {
	stats, err := s.store.Repos().Orders().Stats(ctx, userID)
	if err != nil {
		return models.OrderStats{}, mapStoreError(err)
	}
	return stats, nil
}

// History returns the audit stream of an order, oldest first.
func (s *OrderService) History(ctx context.Context, orderID, ownerID string) ([]models.AuditEntry, error) {
	repos := s.store.Repos()
	order, err := repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, mapStoreError(err)
	}
	if ownerID != "" && order.UserID != ownerID {
		return nil, apperr.NotFound("order not found")
	}
	entries, err := repos.Audit().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

// Transition applies an administrator status change.
func (s *OrderService) Transition(ctx context.Context, in TransitionInput) (models.Order, error) {
	return s.stateMachine.Transition(ctx, in)
}

// Cancel cancels the user's own order.
func (s *OrderService) Cancel(ctx context.Context, in CancelInput) (models.Order, error) {
	return s.compensator.Cancel(ctx, in)
}
