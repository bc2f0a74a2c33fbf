package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lephuong249/storefront-orders/internal/repository"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultBatchSize      = 100
	DefaultPublishTimeout = 10 * time.Second
	markSentTimeout       = 5 * time.Second
)

type RelayConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	PublishTimeout time.Duration
}

// Relay moves committed outbox records to the publisher. No store
// transaction is held while publishing: records are fetched, published as
// one batch, and the acknowledged ones are marked sent afterwards. Delivery
// is at least once; consumers dedupe on the event id.
type Relay struct {
	store     repository.Store
	publisher Publisher
	logger    *zap.Logger
	cfg       RelayConfig
	clock     func() time.Time
}

func NewRelay(store repository.Store, publisher Publisher, logger *zap.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{store: store, publisher: publisher, logger: logger, cfg: cfg, clock: time.Now}
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		n, err := r.Flush(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.logger.Warn("outbox flush failed", zap.Int("published", n), zap.Error(err))
		case n > 0:
			r.logger.Info("outbox flushed", zap.Int("published", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many records were marked sent.
// When the publisher acknowledges only part of the batch, that part is still
// marked sent and the publish error is returned alongside the count.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	outbox := r.store.Repos().Outbox()
	pending, err := outbox.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	published, pubErr := r.publisher.Publish(pubCtx, pending)
	cancel()
	if pubErr != nil {
		pubErr = fmt.Errorf("publish: %d of %d records failed: %w", len(pending)-len(published), len(pending), pubErr)
	}
	if len(published) == 0 {
		return 0, pubErr
	}

	// Records already on the bus are marked even if ctx was cancelled meanwhile.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markSentTimeout)
	defer cancel()
	if err := outbox.MarkSent(markCtx, published, r.clock().UTC()); err != nil {
		return 0, errors.Join(pubErr, fmt.Errorf("mark sent: %w", err))
	}
	return len(published), pubErr
}
