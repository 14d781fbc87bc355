package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/commissions/internal/bootstrap"
	"github.com/cassiomorais/commissions/internal/controller"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "commissions-api", "commissions")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := app.NewServices()

	router := controller.NewRouter(controller.RouterDeps{
		ServiceName:       "commissions-api",
		Database:          controller.PingFunc(app.Pool.Ping),
		Redis:             controller.PingFunc(func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() }),
		CommissionService: svc.CommissionSvc,
		Evaluator:         svc.PayoutValidity,
		Publisher:         svc.Producer,
		IdempotencyStore:  svc.Idempotency,
		IdempotencyTTL:    app.Config.Worker.IdempotencyTTL,
		Metrics:           app.Metrics,
		Gatherer:          app.Registry,
		Logger:            app.Logger,
		ServerConfig:      app.Config.Server,
		JWTSecret:         app.Config.Auth.JWTSecret,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		app.Logger.Error().Err(err).Msg("HTTP server failed")
	}

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
