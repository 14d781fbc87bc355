package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/commissions/internal/bootstrap"
	infraRedis "github.com/cassiomorais/commissions/internal/infrastructure/redis"
	"github.com/cassiomorais/commissions/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "commissions-worker", "commissions_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := app.NewServices()
	workerCfg := app.Config.Worker

	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.EvaluationStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group")
		app.Close()
		os.Exit(1)
	}

	locks := func(commissionID int64) worker.Lock {
		return infraRedis.NewLock(app.Redis, infraRedis.CommissionLockName(commissionID), workerCfg.LockTTL)
	}
	evaluations := worker.NewEvaluationProcessor(
		consumer,
		svc.Producer,
		svc.PayoutValidity,
		locks,
		app.Logger,
		app.Metrics,
		workerCfg.ClaimMinIdle,
	)
	relay := worker.NewOutboxRelay(svc.TxManager, svc.Outbox, svc.Producer, app.Logger, app.Metrics, workerCfg.OutboxBatchSize)

	app.Logger.Info().
		Str("stream", infraRedis.EvaluationStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Payout evaluations requested through the evaluation stream.
	g.Go(func() error {
		return evaluations.Run(gCtx)
	})

	// 2. Outbox relay (status change events to the event stream).
	g.Go(func() error {
		return relay.Run(gCtx, workerCfg.OutboxPollInterval)
	})

	// 3. Retention: expired idempotency keys, old relayed outbox rows.
	g.Go(func() error {
		return worker.RunRetention(gCtx, workerCfg.CleanupInterval, app.Logger,
			worker.RetentionJob{Name: "idempotency_keys", Run: svc.Idempotency.Cleanup},
			worker.RetentionJob{Name: "outbox", Run: func(ctx context.Context) (int64, error) {
				return svc.Outbox.DeletePublishedBefore(ctx, time.Now().Add(-workerCfg.OutboxRetention))
			}},
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
