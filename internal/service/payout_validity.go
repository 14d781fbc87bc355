package service

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/commissions/internal/domain/commission"
	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/cassiomorais/commissions/internal/domain/order"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Evaluation sources, used as metric labels.
const (
	SourceHTTP   = "http"
	SourceWorker = "worker"
)

// PayoutValidityService answers whether a commission may be paid by running
// the commission_is_valid_to_pay chain.
type PayoutValidityService struct {
	chain   *ValidityChain
	orders  order.Repository
	logger  zerolog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewPayoutValidityService builds the service. orders may be nil, in which
// case missing orders are never looked up.
func NewPayoutValidityService(chain *ValidityChain, orders order.Repository, logger zerolog.Logger, metrics *observability.Metrics) *PayoutValidityService {
	return &PayoutValidityService{
		chain:   chain,
		orders:  orders,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/cassiomorais/commissions/internal/service"),
	}
}

// Evaluate runs the chain. When o is nil but the record names its order, the
// order is loaded for diagnostics; a failed load leaves o nil.
func (s *PayoutValidityService) Evaluate(ctx context.Context, source string, isValid bool, c *commission.Record, o *order.Order) bool {
	ctx, span := s.tracer.Start(ctx, "payout_validity.evaluate")
	defer span.End()

	start := time.Now()
	if c != nil {
		span.SetAttributes(attribute.String("commission.id", c.IDString()))
	}

	if o == nil && c != nil && c.OrderID != nil && s.orders != nil {
		o = s.loadOrder(ctx, *c.OrderID)
	}

	result := s.chain.Apply(ctx, isValid, c, o)

	span.SetAttributes(
		attribute.Bool("payout.is_valid.in", isValid),
		attribute.Bool("payout.is_valid.out", result),
	)
	if s.metrics != nil {
		s.metrics.ValidityEvaluations.WithLabelValues(source, decision(result)).Inc()
		s.metrics.EvaluationDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}
	return result
}

// EvaluateByID evaluates a commission known only by its ID. The chain
// resolves the rest from storage.
func (s *PayoutValidityService) EvaluateByID(ctx context.Context, source string, commissionID int64, isValid bool) bool {
	return s.Evaluate(ctx, source, isValid, &commission.Record{ID: &commissionID}, nil)
}

func (s *PayoutValidityService) loadOrder(ctx context.Context, id int64) *order.Order {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrOrderNotFound) {
			s.logger.Warn().Err(err).Int64("order_id", id).Msg("Failed to load order for evaluation")
		}
		return nil
	}
	return o
}

func decision(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}
