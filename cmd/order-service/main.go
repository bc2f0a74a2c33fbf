package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/api"
	"github.com/lephuong249/storefront-orders/internal/config"
	"github.com/lephuong249/storefront-orders/internal/events"
	"github.com/lephuong249/storefront-orders/internal/metrics"
	"github.com/lephuong249/storefront-orders/internal/repository"
	"github.com/lephuong249/storefront-orders/internal/repository/memory"
	"github.com/lephuong249/storefront-orders/internal/service"
	"github.com/lephuong249/storefront-orders/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("order-service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New(nil, "orders")
	vouchers, err := service.NewVoucherService(service.VoucherServiceDeps{
		Store:  store,
		Logger: logger.Named("vouchers"),
		NewID:  uuid.NewString,
	})
	if err != nil {
		return err
	}
	orders, err := service.NewOrderService(service.OrderServiceDeps{
		Store:              store,
		Vouchers:           vouchers,
		OrderNumbers:       service.NewOrderNumberGenerator(cfg.OrderNumberPrefix, time.Now),
		OrderNumberRetries: cfg.OrderNumberRetries,
		Events:             events.NewRecorder(cfg.KafkaTopic),
		Metrics:            m,
		Logger:             logger.Named("orders"),
		NewID:              uuid.NewString,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Orders:         orders,
			Vouchers:       vouchers,
			Logger:         logger.Named("http"),
			Metrics:        m,
			MetricsHandler: metrics.Handler(),
			Health:         health,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting order-service", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, func(context.Context) error, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		store := memory.New()
		seedDemo(store, time.Now().UTC())
		logger.Warn("using in-memory store with demo data; not for production, state is lost on exit")
		return store, nil, func() {}, nil
	}

	conn, err := db.NewPostgresConnection(ctx, cfg.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, nil, err
		}
	}
	return repository.NewPostgres(conn, cfg.TxTimeout), conn.PingContext, func() { _ = conn.Close() }, nil
}
