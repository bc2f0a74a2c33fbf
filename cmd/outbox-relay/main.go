package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/config"
	"github.com/lephuong249/storefront-orders/internal/events"
	"github.com/lephuong249/storefront-orders/internal/repository"
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

	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal("outbox-relay requires STORE_BACKEND=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewPostgresConnection(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer conn.Close()

	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
	if errors.Is(err, events.ErrPublisherDisabled) {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	if err != nil {
		logger.Fatal("kafka publisher", zap.Error(err))
	}
	defer publisher.Close()

	relay := events.NewRelay(repository.NewPostgres(conn, cfg.TxTimeout), publisher, logger.Named("relay"), events.RelayConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
	})
	logger.Info("outbox relay started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.Duration("poll_interval", cfg.OutboxPollInterval))
	if err := relay.Run(ctx); err != nil {
		logger.Error("outbox relay stopped", zap.Error(err))
	}
}
