package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/garimpo-judicial/internal/adapters/cli"
	"github.com/kirillkom/garimpo-judicial/internal/bootstrap"
	"github.com/kirillkom/garimpo-judicial/internal/config"
	"github.com/kirillkom/garimpo-judicial/internal/observability/logging"
)

const serviceName = "garimpo-triagectl"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLoggerTo(os.Stderr, serviceName, "info").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// Tables go to stdout; keep logs out of the way.
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	err = cli.Run(ctx, &cli.Env{
		Triage:    app.TriageUC,
		Portfolio: app.PortfolioUC,
		Exporter:  app.ExportUC,
		Exports:   app.Exports,
		Catalog:   app.Catalog,
		Audit:     app.AuditUC,
		Out:       os.Stdout,
	}, os.Args[1:])
	app.Close()
	if err != nil {
		os.Exit(1)
	}
}
