// Package pipeline runs the two-stage OCR -> extraction sequence for one
// job. Every path through Process ends with a terminal state write, so a
// submitted job can never hang in a running state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/drift"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/metrics"
	"github.com/docuscan/extraction-pipeline/internal/provider"
	"github.com/docuscan/extraction-pipeline/internal/retry"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

const (
	stageOCR        = "ocr"
	stageExtraction = "extraction"
)

// Config selects default providers and the per-invocation timeout.
type Config struct {
	DefaultOCRProvider        string
	DefaultExtractionProvider string
	CallTimeout               time.Duration
}

type Processor struct {
	logger    *slog.Logger
	cfg       Config
	store     store.JobStore
	providers *provider.Registry
	policy    retry.Policy
	drift     *drift.Monitor   // optional
	archive   store.Archiver   // optional
	metrics   *metrics.Metrics // optional
}

func NewProcessor(
	logger *slog.Logger,
	cfg Config,
	st store.JobStore,
	providers *provider.Registry,
	policy retry.Policy,
	monitor *drift.Monitor,
	archive store.Archiver,
	m *metrics.Metrics,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 45 * time.Second
	}
	return &Processor{
		logger:    logger,
		cfg:       cfg,
		store:     st,
		providers: providers,
		policy:    policy,
		drift:     monitor,
		archive:   archive,
		metrics:   m,
	}
}

// Process claims the job and runs its stages. The caller (a queue worker) is
// the job's single writer until a terminal state is recorded.
func (p *Processor) Process(ctx context.Context, jobID uuid.UUID) {
	job, ok := p.store.Claim(jobID)
	if !ok {
		// Cancelled before pickup, or unknown: nothing to do.
		p.logger.Debug("pipeline.skip_unclaimed", "job_id", jobID)
		return
	}

	stage := stageOCR
	defer func() {
		if r := recover(); r != nil {
			// An internal fault must still land the job in a terminal state.
			p.logger.Error("pipeline.panic_recovered", "job_id", jobID, "stage", stage, "panic", r)
			jobErr := entity.JobError{
				Kind:    constants.ErrorKindPermanent,
				Message: fmt.Sprintf("internal fault: %v", r),
			}
			var final entity.Job
			var err error
			if stage == stageOCR {
				final, err = p.store.FailOCR(jobID, jobErr, 0)
			} else {
				final, err = p.store.FailExtraction(jobID, jobErr, 0)
			}
			if err == nil {
				p.finalize(final)
			}
		}
	}()

	// Stage 1: OCR
	text, attempts, err := p.runOCR(ctx, job)
	if err != nil {
		final, ferr := p.store.FailOCR(jobID, classify(err), attempts)
		if ferr != nil {
			p.logger.Error("pipeline.terminal_write_failed", "job_id", jobID, "error", ferr)
			return
		}
		p.logger.Warn("pipeline.ocr.failed", "job_id", jobID, "attempts", attempts, "error", err)
		p.finalize(final)
		return
	}
	p.logger.Debug("pipeline.ocr.ok", "job_id", jobID, "attempts", attempts, "text_bytes", len(text))

	// OCR-only jobs succeed here; OCR failure above already short-circuited
	// extraction.
	if !job.Options.RunExtraction {
		final, ferr := p.store.CompleteOCROnly(jobID, text, attempts)
		if ferr != nil {
			p.logger.Error("pipeline.terminal_write_failed", "job_id", jobID, "error", ferr)
			return
		}
		p.finalize(final)
		return
	}

	if err := p.store.StartExtraction(jobID, text, attempts); err != nil {
		p.logger.Error("pipeline.stage_transition_failed", "job_id", jobID, "error", err)
		return
	}
	stage = stageExtraction

	// Stage 2: field extraction
	fields, attempts, err := p.runExtraction(ctx, job, text)
	if err != nil {
		final, ferr := p.store.FailExtraction(jobID, classify(err), attempts)
		if ferr != nil {
			p.logger.Error("pipeline.terminal_write_failed", "job_id", jobID, "error", ferr)
			return
		}
		p.logger.Warn("pipeline.extraction.failed", "job_id", jobID, "attempts", attempts, "error", err)
		p.finalize(final)
		return
	}

	final, ferr := p.store.CompleteExtraction(jobID, fields, attempts)
	if ferr != nil {
		p.logger.Error("pipeline.terminal_write_failed", "job_id", jobID, "error", ferr)
		return
	}
	p.logger.Info("pipeline.job.done",
		"job_id", jobID,
		"status", final.Status,
		"fields", len(fields),
	)
	p.finalize(final)
}

func (p *Processor) runOCR(ctx context.Context, job entity.Job) (string, int, error) {
	name := job.Options.OCRProvider
	if name == "" {
		name = p.cfg.DefaultOCRProvider
	}
	prov, err := p.providers.OCR(name)
	if err != nil {
		return "", 0, provider.Permanentf("registry", "%v", err)
	}

	start := time.Now()
	var res provider.TextResult
	attempts, err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
		var callErr error
		res, callErr = prov.Extract(cctx, job.Document)
		return callErr
	})
	p.observeStage(stageOCR, start, attempts)
	if err != nil {
		return "", attempts, err
	}
	return res.Text, attempts, nil
}

func (p *Processor) runExtraction(ctx context.Context, job entity.Job, text string) (map[string]string, int, error) {
	name := job.Options.ExtractionProvider
	if name == "" {
		name = p.cfg.DefaultExtractionProvider
	}
	prov, err := p.providers.Fields(name)
	if err != nil {
		return nil, 0, provider.Permanentf("registry", "%v", err)
	}

	start := time.Now()
	var fields map[string]string
	attempts, err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
		var callErr error
		fields, callErr = prov.ExtractFields(cctx, text, job.Options.SchemaHint)
		return callErr
	})
	p.observeStage(stageExtraction, start, attempts)
	if err != nil {
		return nil, attempts, err
	}
	return fields, attempts, nil
}

// finalize handles the post-terminal side channels: counters, the drift
// monitor, and the archive. All of them are best-effort.
func (p *Processor) finalize(final entity.Job) {
	if p.metrics != nil {
		switch {
		case final.Status == constants.JobStatusSucceeded:
			p.metrics.JobsCompleted.Inc()
		case final.Status == constants.JobStatusCancelled:
			p.metrics.JobsCancelled.Inc()
		default:
			p.metrics.JobsFailed.Inc()
		}
	}
	if p.drift != nil && final.Status == constants.JobStatusSucceeded && final.Fields != nil {
		p.drift.Observe(final.Document.Filename, final.Fields)
	}
	if p.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.archive.ArchiveJob(ctx, final); err != nil {
			p.logger.Warn("pipeline.archive_failed", "job_id", final.ID, "error", err)
		}
	}
}

func (p *Processor) observeStage(stage string, start time.Time, attempts int) {
	if p.metrics == nil {
		return
	}
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	p.metrics.StageAttempts.WithLabelValues(stage).Observe(float64(attempts))
}

// classify maps a stage failure to the error record stored on the job.
func classify(err error) entity.JobError {
	switch {
	case isAttemptsExhausted(err):
		return entity.JobError{Kind: constants.ErrorKindAttemptsExhausted, Message: err.Error()}
	case provider.IsTransient(err):
		return entity.JobError{Kind: constants.ErrorKindTransient, Message: err.Error()}
	default:
		return entity.JobError{Kind: constants.ErrorKindPermanent, Message: err.Error()}
	}
}

func isAttemptsExhausted(err error) bool {
	return errors.Is(err, common.ErrAttemptsExhausted)
}
