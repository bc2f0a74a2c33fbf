package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lephuong249/storefront-orders/internal/metrics"
	"github.com/lephuong249/storefront-orders/internal/models"
	"github.com/lephuong249/storefront-orders/internal/repository/memory"
	"github.com/lephuong249/storefront-orders/internal/service"
)

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := time.Now().UTC()
	store := memory.New()
	store.PutUser(models.UserSummary{ID: "u1", UserName: "linh", Email: "linh@example.com"})
	store.PutAddress(models.Address{ID: "a1", UserID: "u1", FullName: "Linh", City: "Hanoi"})
	store.PutPaymentMethod(models.PaymentMethod{ID: "cod", Name: "Cash on delivery", Code: "COD", IsActive: true})
	store.PutVariant(models.ProductVariant{ID: "v1", ProductID: "p1", ProductName: "Linen shirt", Price: decimal.NewFromInt(100000), Stock: 5, Size: "M", Color: "Black"})
	store.PutVoucher(models.Voucher{
		ID: "welcome", Code: "WELCOME10", Name: "Welcome ten", DiscountType: models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10), MinOrderValue: decimal.NewFromInt(100000), MaxUsage: 100, IsActive: true,
		StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 1, 0),
	})
	store.PutCart(models.Cart{ID: "c1", UserID: "u1", Lines: []models.CartLine{{ID: "l1", VariantID: "v1", Quantity: 2}}})

	vouchers, err := service.NewVoucherService(service.VoucherServiceDeps{Store: store})
	require.NoError(t, err)
	orders, err := service.NewOrderService(service.OrderServiceDeps{Store: store, Vouchers: vouchers})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return &testServer{
		store: store,
		handler: NewRouter(Deps{
			Orders:         orders,
			Vouchers:       vouchers,
			Metrics:        metrics.New(reg, "test"),
			MetricsHandler: metrics.HandlerFor(reg),
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", "u1", "USER", map[string]string{
		"addressId": "a1", "paymentMethodId": "cod", "voucherCode": "WELCOME10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode(t, rec)
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, "180000", order["total"])
	id := order["id"].(string)

	rec = s.do(t, http.MethodGet, "/orders/"+id, "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+id, "u2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+id+"/status", "u1", "USER", map[string]string{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/admin/orders/"+id+"/status", "admin", "ADMIN", map[string]string{"status": "SHIPPING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/orders/"+id+"/cancel", "u1", "", map[string]string{"reason": "changed mind 123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", decode(t, rec)["status"])

	v, _ := s.store.Variant("v1")
	assert.Equal(t, 5, v.Stock)

	rec = s.do(t, http.MethodGet, "/admin/orders/"+id+"/history", "admin", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 2)

	rec = s.do(t, http.MethodGet, "/orders?limit=5", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.Len(t, page["data"], 1)
	assert.Equal(t, float64(1), page["pagination"].(map[string]any)["total"])
}

func TestErrorsUseEnvelope(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", "", "", map[string]string{"addressId": "a1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.store.PutCart(models.Cart{ID: "c1", UserID: "u1"})
	rec = s.do(t, http.MethodPost, "/orders", "u1", "", map[string]string{"addressId": "a1", "paymentMethodId": "cod"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "empty_cart", body["error"])
	assert.Equal(t, float64(400), body["status"])
	assert.NotEmpty(t, body["request_id"])

	rec = s.do(t, http.MethodPost, "/orders", "u1", "", map[string]any{"addressId": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode(t, rec)["error"])

	rec = s.do(t, http.MethodGet, "/orders?limit=ten", "u1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoucherEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/vouchers/apply", "u1", "", map[string]any{"code": "WELCOME10", "orderValue": 200000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "20000", body["discountAmount"])
	assert.Equal(t, "180000", body["finalAmount"])

	rec = s.do(t, http.MethodPost, "/vouchers/apply", "u1", "", map[string]any{"code": "WELCOME10", "orderValue": 50000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "min_order_not_met", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/vouchers/validate/NOPE", "u1", "", nil)
	assert.Equal(t, "voucher_not_found", decode(t, rec)["error"])

	rec = s.do(t, http.MethodGet, "/vouchers/available?orderValue=150000", "u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = s.do(t, http.MethodGet, "/vouchers/available?orderValue=abc", "u1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/vouchers", "admin", "ADMIN", map[string]any{
		"code": "FLAT20", "name": "Flat twenty", "discountType": "FIXED", "discountValue": 20000, "maxUsage": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "FIXED_AMOUNT", created["discountType"])

	rec = s.do(t, http.MethodGet, "/admin/vouchers/"+created["id"].(string)+"/stats", "admin", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(10), decode(t, rec)["remainingUsage"])

	rec = s.do(t, http.MethodGet, "/admin/vouchers?q=flat", "admin", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)
}

func TestAdminVoucherUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	now := time.Now().UTC()
	s.store.PutVoucher(models.Voucher{
		ID: "spring", Code: "SPRING", Name: "Spring sale", DiscountType: models.DiscountFixedAmount,
		DiscountValue: decimal.NewFromInt(10000), MaxUsage: 10, IsActive: true,
		StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 1, 0),
	})

	rec := s.do(t, http.MethodPatch, "/admin/vouchers/welcome", "u1", "USER", map[string]any{"maxUsage": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/admin/vouchers/welcome", "admin", "ADMIN", map[string]any{"name": "Welcome back", "maxUsage": 5, "isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Welcome back", body["name"])
	assert.Equal(t, float64(5), body["maxUsage"])
	assert.Equal(t, false, body["isActive"])
	assert.Equal(t, "WELCOME10", body["code"])

	rec = s.do(t, http.MethodPatch, "/admin/vouchers/welcome", "admin", "ADMIN", map[string]any{"code": "SPRING"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "duplicate_code", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPatch, "/admin/vouchers/missing", "admin", "ADMIN", map[string]any{"name": "Nobody home"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/admin/vouchers/spring", "admin", "ADMIN", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := s.store.Voucher("spring")
	assert.False(t, ok)

	rec = s.do(t, http.MethodDelete, "/admin/vouchers/spring", "admin", "ADMIN", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_test_http_requests_total")

	down := NewRouter(Deps{Health: func(context.Context) error { return errors.New("db down") }})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	out := httptest.NewRecorder()
	down.ServeHTTP(out, req)
	assert.Equal(t, http.StatusServiceUnavailable, out.Code)
}
