package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/api/httpx"
	"github.com/lephuong249/storefront-orders/internal/apperr"
	"github.com/lephuong249/storefront-orders/internal/service"
)

type ApplyVoucherRequest struct {
	Code       string          `json:"code"`
	OrderValue decimal.Decimal `json:"orderValue"`
}

type CreateVoucherRequest struct {
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	DiscountType  string           `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	MaxUsage      int              `json:"maxUsage"`
	IsActive      *bool            `json:"isActive,omitempty"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
}

// UpdateVoucherRequest is a partial update; omitted fields are unchanged.
type UpdateVoucherRequest struct {
	Code          *string          `json:"code,omitempty"`
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	DiscountType  *string          `json:"discountType,omitempty"`
	DiscountValue *decimal.Decimal `json:"discountValue,omitempty"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	MaxUsage      *int             `json:"maxUsage,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
}

type VoucherHandler struct {
	vouchers *service.VoucherService
	logger   *zap.Logger
}

func NewVoucherHandler(vouchers *service.VoucherService, logger *zap.Logger) *VoucherHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoucherHandler{vouchers: vouchers, logger: logger}
}

func (h *VoucherHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(r.Context(), w, h.logger, err)
}

// Available handles GET /vouchers/available?orderValue=.
func (h *VoucherHandler) Available(w http.ResponseWriter, r *http.Request) {
	orderValue := decimal.Zero
	if raw := r.URL.Query().Get("orderValue"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			h.fail(w, r, apperr.Client(apperr.CodeInvalidInput, "orderValue must be a non-negative number", http.StatusBadRequest))
			return
		}
		orderValue = v
	}
	list, err := h.vouchers.ListAvailable(r.Context(), orderValue)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": list})
}

// Apply handles POST /vouchers/apply.
func (h *VoucherHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyVoucherRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.vouchers.Apply(r.Context(), req.Code, req.OrderValue)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// Validate handles POST /vouchers/validate/{code}.
func (h *VoucherHandler) Validate(w http.ResponseWriter, r *http.Request) {
	v, err := h.vouchers.Validate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"valid": true, "voucher": v})
}

// Create handles POST /admin/vouchers.
func (h *VoucherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateVoucherRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.vouchers.Create(r.Context(), service.CreateVoucherInput{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrderValue: req.MinOrderValue,
		MaxDiscount:   req.MaxDiscount,
		MaxUsage:      req.MaxUsage,
		IsActive:      req.IsActive,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, v)
}

// Update handles PATCH /admin/vouchers/{id}.
func (h *VoucherHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateVoucherRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.vouchers.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateVoucherInput{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrderValue: req.MinOrderValue,
		MaxDiscount:   req.MaxDiscount,
		MaxUsage:      req.MaxUsage,
		IsActive:      req.IsActive,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// Delete handles DELETE /admin/vouchers/{id}.
func (h *VoucherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.vouchers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /admin/vouchers.
func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.vouchers.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

// Stats handles GET /admin/vouchers/{id}/stats.
func (h *VoucherHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.vouchers.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
