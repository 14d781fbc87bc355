package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/commissions/internal/infrastructure/config"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/commissions/internal/infrastructure/redis"
	"github.com/cassiomorais/commissions/internal/repository/postgres"
	"github.com/cassiomorais/commissions/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	tracer *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).
		With().Str("service", serviceName).Str("instance", cfg.InstanceID).Logger()
	logger.Info().Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(metricsNamespace, app.Registry)
	logger.Info().Msg("Metrics initialized")

	pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.Pool = pool
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	app.Redis = redisClient
	logger.Info().Msg("Connected to Redis")

	return app, nil
}

// Services is the commission stack shared by the API and the worker.
type Services struct {
	Commissions    *postgres.CommissionRepository
	Orders         *postgres.OrderRepository
	Outbox         *postgres.OutboxRepository
	Idempotency    *postgres.IdempotencyRepository
	TxManager      *postgres.TxManager
	Producer       *infraRedis.StreamProducer
	CommissionSvc  *service.CommissionService
	Lookup         *service.GuardedReader
	Voider         *service.ZeroCommissionVoider
	Chain          *service.ValidityChain
	PayoutValidity *service.PayoutValidityService
}

// NewServices wires repositories and the payout validity chain. The
// zero-commission voider is registered at VoiderPriority.
func (a *App) NewServices() *Services {
	s := &Services{
		Commissions: postgres.NewCommissionRepository(a.Pool),
		Orders:      postgres.NewOrderRepository(a.Pool),
		Outbox:      postgres.NewOutboxRepository(a.Pool),
		Idempotency: postgres.NewIdempotencyRepository(a.Pool),
		TxManager:   postgres.NewTxManager(a.Pool),
		Producer:    infraRedis.NewStreamProducer(a.Redis),
	}

	s.CommissionSvc = service.NewCommissionService(
		s.Commissions,
		s.Outbox,
		s.TxManager,
		a.Logger,
		a.Metrics,
		service.WithPaidZeroTolerance(a.Config.Voider.ZeroTolerance),
	)
	s.Lookup = service.NewGuardedReader(
		s.Commissions,
		a.Config.Voider.LookupBreakerFailures,
		a.Config.Voider.LookupBreakerTimeout,
		a.Logger,
		a.Metrics,
	)
	s.Voider = service.NewZeroCommissionVoider(
		s.Lookup,
		s.CommissionSvc,
		a.Logger,
		service.WithZeroTolerance(a.Config.Voider.ZeroTolerance),
		service.WithVoiderMetrics(a.Metrics),
	)

	s.Chain = service.NewValidityChain()
	s.Chain.Register(service.ZeroCommissionSource, service.VoiderPriority, s.Voider)
	s.PayoutValidity = service.NewPayoutValidityService(s.Chain, s.Orders, a.Logger, a.Metrics)

	a.Logger.Info().
		Str("filter", service.CommissionIsValidToPay).
		Float64("zero_tolerance", s.Voider.Tolerance()).
		Msg("Payout validity chain ready")
	return s
}

func (a *App) Close() {
	if a.tracer != nil {
		if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
