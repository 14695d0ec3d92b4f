package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/garimpo-judicial/internal/bootstrap"
	"github.com/kirillkom/garimpo-judicial/internal/config"
	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/observability/logging"
	"github.com/kirillkom/garimpo-judicial/internal/observability/metrics"
)

const serviceName = "garimpo-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger(serviceName, "info").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	if err := cfg.ValidateAuditWorker(); err != nil {
		logger.Error("worker_config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.EventsSubject)
	err = app.Events.SubscribeWorkflowEvents(ctx, func(handlerCtx context.Context, event domain.WorkflowEvent) error {
		recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		start := time.Now()
		workerMetrics.StartEvent()
		err := app.AuditUC.Record(recordCtx, event)
		workerMetrics.FinishEvent(serviceName, string(event.Kind), time.Since(start), err)
		if err == nil && !event.OccurredAt.IsZero() {
			workerMetrics.ObserveEventLag(serviceName, time.Since(event.OccurredAt))
		}
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
