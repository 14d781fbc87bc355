package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/commissions/internal/infrastructure/redis"
	"github.com/cassiomorais/commissions/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MessageSource is a consumer-group view of one stream.
type MessageSource interface {
	Stream() string
	Read(ctx context.Context) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
	ClaimStale(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error)
}

type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, messageID string, reason string, original map[string]any) error
}

type Evaluator interface {
	EvaluateByID(ctx context.Context, source string, commissionID int64, isValid bool) bool
}

// Lock is a per-commission lease.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns a fresh lock for one commission.
type LockFactory func(commissionID int64) Lock

// Message outcomes, used as the status label of worker metrics.
const (
	OutcomeProcessed    = "success"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeLockBusy     = "lock_busy"
	OutcomeError        = "error"
)

// EvaluationProcessor consumes the evaluation stream and runs the payout
// validity chain for every request on it.
type EvaluationProcessor struct {
	source       MessageSource
	dlq          DeadLetterPublisher
	evaluator    Evaluator
	locks        LockFactory
	logger       zerolog.Logger
	metrics      *observability.Metrics
	claimMinIdle time.Duration
	retryDelay   time.Duration
}

func NewEvaluationProcessor(
	source MessageSource,
	dlq DeadLetterPublisher,
	evaluator Evaluator,
	locks LockFactory,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	claimMinIdle time.Duration,
) *EvaluationProcessor {
	return &EvaluationProcessor{
		source:       source,
		dlq:          dlq,
		evaluator:    evaluator,
		locks:        locks,
		logger:       logger,
		metrics:      metrics,
		claimMinIdle: claimMinIdle,
		retryDelay:   time.Second,
	}
}

// Run reads until ctx is cancelled. Messages idle longer than claimMinIdle
// in another consumer's pending list are claimed and retried.
func (p *EvaluationProcessor) Run(ctx context.Context) error {
	lastClaim := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}

		if p.claimMinIdle > 0 && time.Since(lastClaim) >= p.claimMinIdle {
			lastClaim = time.Now()
			stale, err := p.source.ClaimStale(ctx, p.claimMinIdle)
			if err != nil {
				p.logger.Warn().Err(err).Msg("Failed to claim stale messages")
			}
			for _, msg := range stale {
				p.Process(ctx, msg)
			}
		}

		messages, err := p.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error().Err(err).Msg("Failed to read from stream")
			if !sleep(ctx, p.retryDelay) {
				return nil
			}
			continue
		}

		for _, msg := range messages {
			p.Process(ctx, msg)
		}
	}
}

// Process handles one message and returns its outcome. Only a busy lock or a
// failed DLQ publish leaves the message unacknowledged.
func (p *EvaluationProcessor) Process(ctx context.Context, msg redis.XMessage) string {
	start := time.Now()
	outcome := p.process(ctx, msg)
	if p.metrics != nil {
		p.metrics.WorkerMessagesProcessed.WithLabelValues(p.source.Stream(), outcome).Inc()
		p.metrics.WorkerProcessingDuration.WithLabelValues(p.source.Stream()).Observe(time.Since(start).Seconds())
	}
	return outcome
}

func (p *EvaluationProcessor) process(ctx context.Context, msg redis.XMessage) string {
	req, err := infraRedis.ParseEvaluationRequest(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Malformed evaluation request, dead-lettering")
		if err := p.dlq.PublishToDLQ(ctx, msg.ID, err.Error(), msg.Values); err != nil {
			p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to publish to DLQ")
			return OutcomeError
		}
		p.ack(ctx, msg.ID)
		return OutcomeDeadLettered
	}

	lock := p.locks(req.CommissionID)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil || !acquired {
		p.logger.Debug().Err(err).Int64("commission_id", req.CommissionID).Msg("Commission locked elsewhere, leaving pending")
		return OutcomeLockBusy
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			p.logger.Warn().Err(err).Int64("commission_id", req.CommissionID).Msg("Failed to release commission lock")
		}
	}()

	valid := p.evaluator.EvaluateByID(ctx, service.SourceWorker, req.CommissionID, req.IsValid)
	p.logger.Info().
		Int64("commission_id", req.CommissionID).
		Bool("is_valid", valid).
		Str("message_id", msg.ID).
		Msg("Commission evaluated")

	p.ack(ctx, msg.ID)
	return OutcomeProcessed
}

func (p *EvaluationProcessor) ack(ctx context.Context, id string) {
	if err := p.source.Ack(ctx, id); err != nil {
		p.logger.Error().Err(err).Str("message_id", id).Msg("Failed to ack message")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
