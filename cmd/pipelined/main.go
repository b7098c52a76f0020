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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/batch"
	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/drift"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/ingest"
	"github.com/docuscan/extraction-pipeline/internal/metrics"
	"github.com/docuscan/extraction-pipeline/internal/pipeline"
	"github.com/docuscan/extraction-pipeline/internal/provider"
	"github.com/docuscan/extraction-pipeline/internal/queue"
	"github.com/docuscan/extraction-pipeline/internal/retry"
	"github.com/docuscan/extraction-pipeline/internal/service"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics registry and exposition listener.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		logger.Info("metrics.listen", "addr", cfg.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	providers := provider.FromConfig(cfg.Provider, logger)
	jobStore := store.NewMemoryStore(logger)

	archive, err := openArchive(ctx, cfg.Archive, logger)
	if err != nil {
		logger.Error("archive open failed", "driver", cfg.Archive.Driver, "error", err)
		os.Exit(1)
	}
	if archive != nil {
		defer archive.Close()
		if cfg.Archive.Retention > 0 {
			go pruneArchive(ctx, archive, logger)
		}
	}

	monitor := drift.NewMonitor(drift.Config{
		WindowSize:         cfg.Drift.WindowSize,
		AlertThreshold:     cfg.Drift.AlertThreshold,
		MinWindowOccupancy: cfg.Drift.MinWindowOccupancy,
		Tolerance:          cfg.Drift.NumericTolerance,
	}, m, logger)
	if cfg.Drift.GoldDatasetPath != "" {
		samples, err := drift.LoadGoldFile(cfg.Drift.GoldDatasetPath)
		if err != nil {
			logger.Error("gold dataset load failed", "path", cfg.Drift.GoldDatasetPath, "error", err)
			os.Exit(1)
		}
		if err := monitor.LoadGold(samples, true); err != nil {
			logger.Error("gold dataset rejected", "error", err)
			os.Exit(1)
		}
		logger.Info("drift.gold_loaded", "samples", len(samples))
	}
	go func() {
		for alert := range monitor.Alerts() {
			logger.Warn("drift.alert",
				"macro_f1", alert.MacroF1,
				"threshold", alert.Threshold,
				"occupancy", alert.Occupancy,
			)
		}
	}()

	processor := pipeline.NewProcessor(
		logger,
		pipeline.Config{
			DefaultOCRProvider:        cfg.Provider.OCRProvider,
			DefaultExtractionProvider: cfg.Provider.ExtractionProvider,
			CallTimeout:               cfg.Queue.ProviderCallTimeout,
		},
		jobStore,
		providers,
		retry.Policy{
			MaxAttempts:    cfg.Retry.MaxAttemptsPerStage,
			BaseDelay:      cfg.Retry.BaseBackoff,
			Multiplier:     cfg.Retry.BackoffMultiplier,
			MaxDelay:       cfg.Retry.MaxBackoff,
			JitterFraction: cfg.Retry.JitterFraction,
		},
		monitor,
		archive,
		m,
	)

	q := queue.New(logger, processor,
		queue.WithWorkers(cfg.Queue.WorkerPoolSize),
		queue.WithBackpressureLimit(cfg.Queue.BackpressureLimit),
		queue.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		queue.WithMetrics(m),
	)
	q.Start()

	orchestrator := batch.NewOrchestrator(logger, jobStore, q, cfg.Queue.BatchMaxSize)
	svc := service.New(logger, jobStore, q, orchestrator, monitor)

	// Optional startup ingest: submit everything under INGEST_DIR as one batch.
	if dir := os.Getenv("INGEST_DIR"); dir != "" {
		docs, failures, stats, err := ingest.CollectDirectory(dir, nil, true)
		if err != nil {
			logger.Error("ingest walk failed", "dir", dir, "error", err)
			os.Exit(1)
		}
		for _, f := range failures {
			logger.Warn("ingest.file_skipped", "path", f.Path, "error", f.Err)
		}
		if len(docs) > 0 {
			view, err := svc.SubmitBatch(docs, defaultJobOptions())
			if err != nil {
				logger.Error("ingest batch rejected", "error", err)
			} else {
				logger.Info("ingest.batch_submitted",
					"batch_id", view.ID,
					"jobs", len(view.JobIDs),
					"scanned", stats.Scanned,
					"matched", stats.Matched,
				)
			}
		}
	}

	logger.Info("pipelined.ready",
		"workers", cfg.Queue.WorkerPoolSize,
		"backpressure_limit", cfg.Queue.BackpressureLimit,
		"ocr_provider", cfg.Provider.OCRProvider,
		"extraction_provider", cfg.Provider.ExtractionProvider,
	)

	<-ctx.Done()
	logger.Info("pipelined.shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := q.Shutdown(shutdownCtx); err != nil {
		logger.Warn("queue drain incomplete", "error", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("pipelined.stopped")
}

func pruneArchive(ctx context.Context, archive store.Archiver, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := archive.PruneExpired(ctx, now)
			if err != nil {
				logger.Warn("archive prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("archive.pruned", "rows", n)
			}
		}
	}
}

func openArchive(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (store.Archiver, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		return store.OpenSQLiteArchive(ctx, cfg.DSN, cfg.Retention, logger)
	case "postgres":
		return store.OpenPostgresArchive(ctx, cfg, logger)
	default:
		return nil, errors.New("unknown archive driver " + cfg.Driver)
	}
}

func defaultJobOptions() entity.JobOptions {
	return entity.JobOptions{
		RunExtraction: true,
		SchemaHint:    constants.DefaultFieldTypes,
	}
}
