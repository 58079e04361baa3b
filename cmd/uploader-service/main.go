// uploader-service is the HTTP API server for candidate PDF submissions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iMokhles/candidate-pdf-uploader/internal/api"
	"github.com/iMokhles/candidate-pdf-uploader/internal/app"
	"github.com/iMokhles/candidate-pdf-uploader/internal/config"
	"github.com/iMokhles/candidate-pdf-uploader/internal/observability"
	"golang.org/x/sync/errgroup"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svcCfg := config.LoadServiceConfig()

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	uploader, err := app.New(svcCfg, app.Options{Metrics: metrics})
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Runner:        uploader.Orchestrator,
		Settings:      uploader.Settings,
		Metrics:       metrics,
		HealthChecker: uploader.Health,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Submissions block for the whole pipeline run, so writes get a long deadline.
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Phase 1: on a signal, fail readiness and let load balancers drain.
		if ctx.Err() != nil {
			slog.Info("Received shutdown signal")
			uploader.Health.SetShuttingDown()
			if svcCfg.ShutdownDrainWait > 0 {
				slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
				time.Sleep(svcCfg.ShutdownDrainWait)
			}
		}

		// Phase 2: stop accepting connections and finish in-flight submissions.
		slog.Info("Starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}

		// Phase 3: deliver queued notifications.
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer notifyCancel()
		if err := uploader.Close(notifyCtx); err != nil {
			slog.Warn("Notifier shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}
