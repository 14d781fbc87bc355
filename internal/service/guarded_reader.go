package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const lookupBreakerName = "commission-lookup"

// GuardedReader puts a circuit breaker in front of commission lookups so a
// struggling database makes the voider fail open fast. Misses count as
// successes and never trip the breaker.
type GuardedReader struct {
	reader  CommissionReader
	breaker *gobreaker.CircuitBreaker[*commission.Record]
	metrics *observability.Metrics
}

// NewGuardedReader opens the breaker after maxFailures consecutive failures
// and probes again after openTimeout.
func NewGuardedReader(
	reader CommissionReader,
	maxFailures uint32,
	openTimeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *GuardedReader {
	if maxFailures == 0 {
		maxFailures = 5
	}
	g := &GuardedReader{reader: reader, metrics: metrics}
	g.breaker = gobreaker.NewCircuitBreaker[*commission.Record](gobreaker.Settings{
		Name:        lookupBreakerName,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domainErrors.ErrCommissionNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(lookupBreakerName).Set(float64(gobreaker.StateClosed))
	}
	return g
}

func (g *GuardedReader) GetByID(ctx context.Context, id int64) (*commission.Record, error) {
	rec, err := g.breaker.Execute(func() (*commission.Record, error) {
		return g.reader.GetByID(ctx, id)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		g.count("rejected")
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStorageUnavailable, err)
	case err != nil && !errors.Is(err, domainErrors.ErrCommissionNotFound):
		g.count("failure")
	default:
		g.count("success")
	}
	return rec, err
}

// State reports the breaker state, for readiness checks.
func (g *GuardedReader) State() gobreaker.State {
	return g.breaker.State()
}

func (g *GuardedReader) count(result string) {
	if g.metrics != nil {
		g.metrics.CircuitBreakerRequests.WithLabelValues(lookupBreakerName, result).Inc()
	}
}
