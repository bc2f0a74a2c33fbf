package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/api/handlers"
	"github.com/lephuong249/storefront-orders/internal/api/httpx"
	"github.com/lephuong249/storefront-orders/internal/api/middleware"
	"github.com/lephuong249/storefront-orders/internal/metrics"
	"github.com/lephuong249/storefront-orders/internal/service"
)

type Deps struct {
	Orders         *service.OrderService
	Vouchers       *service.VoucherService
	Logger         *zap.Logger
	Metrics        *metrics.OrderMetrics
	MetricsHandler http.Handler
	// Health reports store reachability; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the HTTP router for the order service.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Identify)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(chimw.Recoverer)

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Logger)
	voucherHandler := handlers.NewVoucherHandler(deps.Vouchers, deps.Logger)

	// Customer endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RoleUser, middleware.RoleAdmin))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.ListMine)
			r.Get("/stats", orderHandler.Stats)
			r.Get("/{id}", orderHandler.GetMine)
			r.Post("/{id}/cancel", orderHandler.Cancel)
		})

		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/available", voucherHandler.Available)
			r.Post("/apply", voucherHandler.Apply)
			r.Post("/validate/{code}", voucherHandler.Validate)
		})
	})

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RoleAdmin))

		r.Get("/orders", orderHandler.List)
		r.Get("/orders/{id}", orderHandler.Get)
		r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
		r.Get("/orders/{id}/history", orderHandler.History)

		r.Post("/vouchers", voucherHandler.Create)
		r.Get("/vouchers", voucherHandler.List)
		r.Patch("/vouchers/{id}", voucherHandler.Update)
		r.Delete("/vouchers/{id}", voucherHandler.Delete)
		r.Get("/vouchers/{id}/stats", voucherHandler.Stats)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store_unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}
