package controller

import (
	"time"

	"github.com/cassiomorais/commissions/internal/domain/idempotency"
	"github.com/cassiomorais/commissions/internal/infrastructure/config"
	"github.com/cassiomorais/commissions/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/commissions/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	ServiceName       string
	Database          Pinger
	Redis             Pinger
	CommissionService CommissionService
	Evaluator         PayoutEvaluator
	Publisher         EvaluationPublisher
	IdempotencyStore  idempotency.Store
	IdempotencyTTL    time.Duration
	Metrics           *observability.Metrics
	Gatherer          prometheus.Gatherer
	Logger            zerolog.Logger
	ServerConfig      config.ServerConfig
	JWTSecret         string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing(deps.ServiceName))
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMW.IdempotencyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMinute))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Database, deps.Redis)
	commissionH := NewCommissionController(deps.CommissionService, deps.Evaluator, deps.Publisher)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/commissions/payout-validity", commissionH.EvaluatePayoutValidity)

		r.Get("/commissions", commissionH.ListCommissions)
		r.Get("/commissions/{id}", commissionH.GetCommission)

		// Manual mutations: operator-only when a secret is configured.
		r.Group(func(r chi.Router) {
			if deps.JWTSecret != "" {
				r.Use(customMW.RequireOperator(deps.JWTSecret, "operator", "admin"))
			}
			if deps.IdempotencyStore != nil {
				r.Use(customMW.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL, deps.Logger))
			}
			r.Post("/commissions", commissionH.CreateCommission)
			r.Post("/commissions/{id}/status", commissionH.UpdateStatus)
			r.Post("/commissions/{id}/evaluate", commissionH.EnqueueEvaluation)
		})
	})

	return r
}
