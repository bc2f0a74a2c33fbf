package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/api/httpx"
	"github.com/lephuong249/storefront-orders/internal/api/middleware"
	"github.com/lephuong249/storefront-orders/internal/service"
)

type CreateOrderRequest struct {
	AddressID       string `json:"addressId"`
	PaymentMethodID string `json:"paymentMethodId"`
	VoucherCode     string `json:"voucherCode,omitempty"`
	Note            string `json:"note,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status       string `json:"status"`
	AdminNote    string `json:"adminNote,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
}

type OrderHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(r.Context(), w, h.logger, err)
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req CreateOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.orders.Create(r.Context(), service.CreateOrderInput{
		UserID:          id.UserID,
		AddressID:       req.AddressID,
		PaymentMethodID: req.PaymentMethodID,
		VoucherCode:     req.VoucherCode,
		Note:            req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, order)
}

// ListMine handles GET /orders.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	q, err := listQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.orders.ListForUser(r.Context(), id.UserID, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Stats handles GET /orders/stats.
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	stats, err := h.orders.Stats(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

// GetMine handles GET /orders/{id}.
func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req CancelOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.orders.Cancel(r.Context(), service.CancelInput{
		OrderID: chi.URLParam(r, "id"),
		UserID:  id.UserID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

// List handles GET /admin/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.orders.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Get handles GET /admin/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /admin/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	var req UpdateStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.orders.Transition(r.Context(), service.TransitionInput{
		OrderID:      chi.URLParam(r, "id"),
		ActorID:      id.UserID,
		Status:       req.Status,
		AdminNote:    req.AdminNote,
		CancelReason: req.CancelReason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

// History handles GET /admin/orders/{id}/history.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orders.History(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func listQuery(r *http.Request) (service.ListQuery, error) {
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		return service.ListQuery{}, err
	}
	offset, err := httpx.QueryInt(r, "offset")
	if err != nil {
		return service.ListQuery{}, err
	}
	return service.ListQuery{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	}, nil
}
