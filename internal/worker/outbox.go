package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/outbox"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, entry *outbox.Entry) error
}

// OutboxRelay moves committed outbox entries onto the event stream.
type OutboxRelay struct {
	txManager TransactionManager
	repo      outbox.Repository
	publisher EventPublisher
	logger    zerolog.Logger
	metrics   *observability.Metrics
	batchSize int
}

func NewOutboxRelay(
	txManager TransactionManager,
	repo outbox.Repository,
	publisher EventPublisher,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	batchSize int,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		txManager: txManager,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Run polls every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// RelayOnce publishes one batch and returns how many entries went out.
// Entries are locked for the length of the transaction, so concurrent
// relays never publish the same entry twice.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.repo.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := r.publisher.PublishEvent(ctx, entry); err != nil {
				r.logger.Error().Err(err).
					Str("outbox_id", entry.ID.String()).
					Str("event_type", entry.EventType).
					Int("retry_count", entry.RetryCount).
					Msg("Failed to publish outbox event")
				status := "failed"
				if entry.Exhausted() {
					status = "exhausted"
					r.logger.Error().
						Str("outbox_id", entry.ID.String()).
						Str("aggregate_id", entry.AggregateID).
						Msg("Outbox entry out of retries, leaving it failed")
				}
				r.count(entry, status)
				if err := r.repo.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				continue
			}
			if err := r.repo.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.count(entry, "published")
			published++
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) count(entry *outbox.Entry, status string) {
	if r.metrics != nil {
		r.metrics.OutboxPublished.WithLabelValues(entry.EventType, status).Inc()
	}
}
