// docbatch runs the extraction pipeline in-process over a directory of
// documents: submit as one batch, poll to completion, optionally export an
// XLSX summary. It uses the offline providers so no OCR engine or API key
// is needed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/batch"
	"github.com/docuscan/extraction-pipeline/internal/drift"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/export"
	"github.com/docuscan/extraction-pipeline/internal/ingest"
	"github.com/docuscan/extraction-pipeline/internal/pipeline"
	"github.com/docuscan/extraction-pipeline/internal/provider"
	"github.com/docuscan/extraction-pipeline/internal/queue"
	"github.com/docuscan/extraction-pipeline/internal/retry"
	"github.com/docuscan/extraction-pipeline/internal/service"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

var (
	flagDir     string
	flagOut     string
	flagGold    string
	flagWorkers int
	flagWait    time.Duration
	flagNoExtr  bool
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:          "docbatch",
		Short:        "Submit a directory of documents as one extraction batch",
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().StringVarP(&flagDir, "dir", "d", "", "directory of documents to process (required)")
	root.Flags().StringVarP(&flagOut, "out", "o", "", "output XLSX path (default <dir>/../extraction.xlsx)")
	root.Flags().StringVar(&flagGold, "gold", "", "gold dataset file (YAML) for accuracy reporting")
	root.Flags().IntVarP(&flagWorkers, "workers", "w", 4, "worker pool size")
	root.Flags().DurationVar(&flagWait, "wait", 5*time.Minute, "maximum time to wait for the batch")
	root.Flags().BoolVar(&flagNoExtr, "ocr-only", false, "stop after text extraction, skip field extraction")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	_ = root.MarkFlagRequired("dir")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flagOut == "" {
		flagOut = filepath.Join(filepath.Dir(filepath.Clean(flagDir)), "extraction.xlsx")
	}

	docs, failures, stats, err := ingest.CollectDirectory(flagDir, nil, true)
	if err != nil {
		return err
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "skipped %s: %s\n", f.Path, f.Err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents under %s (scanned %d)", flagDir, stats.Scanned)
	}

	// Offline wiring: plaintext OCR + rule-based field extraction.
	registry := provider.NewRegistry()
	plain := provider.NewPlainTextOCR(logger)
	auto := provider.NewAutoOCR(provider.NewTesseractOCR([]string{"eng"}, logger))
	auto.Route("text/plain", plain)
	registry.RegisterOCR(plain)
	registry.RegisterOCR(auto)
	registry.RegisterFields(provider.NewRulesExtractor(logger))

	jobStore := store.NewMemoryStore(logger)
	var monitor *drift.Monitor
	if flagGold != "" {
		samples, err := drift.LoadGoldFile(flagGold)
		if err != nil {
			return fmt.Errorf("gold dataset: %w", err)
		}
		monitor = drift.NewMonitor(drift.Config{WindowSize: len(samples) * 2, MinWindowOccupancy: 1}, nil, logger)
		if err := monitor.LoadGold(samples, true); err != nil {
			return fmt.Errorf("gold dataset: %w", err)
		}
	}

	processor := pipeline.NewProcessor(
		logger,
		pipeline.Config{
			DefaultOCRProvider:        "auto",
			DefaultExtractionProvider: "rules",
			CallTimeout:               45 * time.Second,
		},
		jobStore,
		registry,
		retry.DefaultPolicy,
		monitor,
		nil,
		nil,
	)
	q := queue.New(logger, processor,
		queue.WithWorkers(flagWorkers),
		queue.WithBackpressureLimit(len(docs)+1),
	)
	q.Start()
	orchestrator := batch.NewOrchestrator(logger, jobStore, q, len(docs))
	svc := service.New(logger, jobStore, q, orchestrator, monitor)

	view, err := svc.SubmitBatch(docs, entity.JobOptions{
		RunExtraction: !flagNoExtr,
		SchemaHint:    constants.DefaultFieldTypes,
	})
	if err != nil {
		return err
	}
	fmt.Printf("batch %s: %d jobs submitted\n", view.ID, len(view.JobIDs))

	deadline := time.Now().Add(flagWait)
	for view.Status == constants.BatchStatusPending {
		if time.Now().After(deadline) {
			return fmt.Errorf("batch %s still pending after %s", view.ID, flagWait)
		}
		time.Sleep(250 * time.Millisecond)
		view, err = svc.GetBatch(view.ID)
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = q.Shutdown(shutdownCtx)

	fmt.Printf("batch %s: %s (succeeded=%d failed=%d)\n",
		view.ID, view.Status, view.Counts.Succeeded, view.Counts.Failed)

	if monitor != nil {
		snap := monitor.Snapshot()
		fmt.Printf("accuracy: macro_f1=%.3f over %d paired results\n", snap.MacroF1, snap.Occupancy)
	}

	data, err := export.NewService(jobStore, monitor, logger).ExportXLSX()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(flagOut, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", flagOut)
	return nil
}
