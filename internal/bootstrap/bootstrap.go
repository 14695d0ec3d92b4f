package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/garimpo-judicial/internal/config"
	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
	"github.com/kirillkom/garimpo-judicial/internal/core/usecase"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/queue/nats"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/repository/memory"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/resilience"
	"github.com/kirillkom/garimpo-judicial/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/garimpo-judicial/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives the workflow collectors. A private registry is used when nil.
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	TriageUC    *usecase.TriageUseCase
	PortfolioUC *usecase.PortfolioUseCase
	ExportUC    *usecase.PortfolioExportUseCase
	AnalysisUC  *usecase.AnalysisUseCase
	ListingUC   *usecase.ListingCorrectionUseCase
	AuditUC     *usecase.AuditUseCase

	Catalog ports.ListingCatalog
	Exports *localfs.Storage
	// Events is nil unless EVENTS_ENABLED is set.
	Events  ports.EventSubscriber
	Metrics *metrics.WorkflowMetrics

	closeFn func()
}

type stores struct {
	listings ports.ListingStore
	catalog  ports.ListingCatalog
	ledger   ports.EvaluationLedger
	analyses ports.AnalysisStore
	audit    ports.AuditStore
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := opts.Service
	if service == "" {
		service = "garimpo"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	workflowMetrics := metrics.NewWorkflowMetrics(service, reg)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	st, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeStore)

	exports, err := localfs.New(cfg.ExportPath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init export storage: %w", err)
	}

	wf := usecase.WorkflowOptions{
		Scope:        domain.ParseScope(cfg.WorkflowScope),
		PendingLimit: cfg.WorkflowPendingLimit,
		Logger:       logger,
		Observer:     workflowMetrics,
	}

	var events ports.EventSubscriber
	if cfg.EventsEnabled {
		busCfg := resilience.DefaultConfig()
		busCfg.Logger = logger
		busCfg.OnStateChange = workflowMetrics.RecordBreakerState
		bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.EventsSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(busCfg),
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		closers = append(closers, bus.Close)
		wf.Publisher = bus
		events = bus
	}

	guardCfg := resilience.StorageReadConfig()
	guardCfg.Logger = logger
	guardCfg.OnStateChange = workflowMetrics.RecordBreakerState
	guard := resilience.NewStorageGuard(guardCfg)

	portfolioUC := usecase.NewPortfolioUseCase(st.listings, st.ledger, wf)

	logger.Info("bootstrap_ready",
		"storage_driver", cfg.StorageDriver,
		"scope", wf.Scope,
		"events_enabled", cfg.EventsEnabled,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		TriageUC:    usecase.NewTriageUseCase(st.listings, st.ledger, guard, wf),
		PortfolioUC: portfolioUC,
		ExportUC:    usecase.NewPortfolioExportUseCase(portfolioUC, st.analyses, xlsx.NewPortfolioWriter()),
		AnalysisUC:  usecase.NewAnalysisUseCase(st.analyses, wf),
		ListingUC:   usecase.NewListingCorrectionUseCase(st.listings, wf),
		AuditUC:     usecase.NewAuditUseCase(st.audit),

		Catalog: st.catalog,
		Exports: exports,
		Events:  events,
		Metrics: workflowMetrics,

		closeFn: closeAll,
	}, nil
}

func openStores(_ context.Context, cfg config.Config, logger *slog.Logger) (stores, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := memory.NewStore()
		logger.Warn("memory_storage_enabled", "detail", "state is lost on restart")
		return stores{
			listings: store,
			catalog:  store,
			ledger:   store,
			analyses: store,
			audit:    store,
		}, func() {}, nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return stores{}, nil, fmt.Errorf("open postgres: %w", err)
	}
	version, dirty, err := postgres.RunMigrations(db)
	if err != nil {
		_ = db.Close()
		return stores{}, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations_applied", "version", version, "dirty", dirty)

	listings := postgres.NewListingRepository(db)
	return stores{
		listings: listings,
		catalog:  listings,
		ledger:   postgres.NewEvaluationRepository(db),
		analyses: postgres.NewAnalysisRepository(db),
		audit:    postgres.NewAuditRepository(db),
	}, func() { _ = db.Close() }, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
