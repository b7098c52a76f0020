// Package service is the submission and polling surface over the pipeline:
// single-job submit, batch fan-out, cancel, and drift inspection.
package service

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/internal/batch"
	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/drift"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/queue"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

type Service struct {
	logger  *slog.Logger
	store   store.JobStore
	queue   *queue.Queue
	batches *batch.Orchestrator
	drift   *drift.Monitor // optional
}

func New(logger *slog.Logger, st store.JobStore, q *queue.Queue, batches *batch.Orchestrator, monitor *drift.Monitor) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, store: st, queue: q, batches: batches, drift: monitor}
}

// Submit validates and admits one document. On queue backpressure the job
// record is rolled back so a rejected submission leaves no trace.
func (s *Service) Submit(doc entity.Document, opts entity.JobOptions) (uuid.UUID, error) {
	if err := common.ValidateDocument(doc); err != nil {
		return uuid.Nil, err
	}
	job := entity.NewJob(doc, opts)
	if err := s.store.CreateJob(job); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.queue.Enqueue(job.ID); err != nil {
		s.store.DeleteJob(job.ID)
		return uuid.Nil, err
	}
	s.logger.Info("service.submitted",
		"job_id", job.ID,
		"media_type", doc.MediaType,
		"run_extraction", opts.RunExtraction,
	)
	return job.ID, nil
}

// Poll returns the job's current snapshot.
func (s *Service) Poll(id uuid.UUID) (entity.Job, error) {
	return s.store.GetJob(id)
}

// Cancel requests cancellation. True means the request took effect: either
// the job was still queued and is now CANCELLED, or it is running and will
// be downgraded at completion. False means it was already terminal.
func (s *Service) Cancel(id uuid.UUID) (bool, error) {
	ok, err := s.store.Cancel(id)
	if err != nil {
		return false, err
	}
	s.logger.Info("service.cancel", "job_id", id, "accepted", ok)
	return ok, nil
}

// SubmitBatch fans documents out as one job each under a fresh batch ID.
func (s *Service) SubmitBatch(docs []entity.Document, opts entity.JobOptions) (entity.BatchView, error) {
	return s.batches.Submit(docs, opts)
}

// GetBatch returns the aggregate view for a batch.
func (s *Service) GetBatch(id uuid.UUID) (entity.BatchView, error) {
	return s.batches.Get(id)
}

// DriftStats returns the current rolling-window accuracy snapshot.
func (s *Service) DriftStats() (drift.Snapshot, error) {
	if s.drift == nil {
		return drift.Snapshot{}, fmt.Errorf("%w: drift monitor not configured", common.ErrInternal)
	}
	return s.drift.Snapshot(), nil
}

// LoadGoldSamples replaces or extends the drift monitor's gold dataset.
func (s *Service) LoadGoldSamples(samples []entity.GoldSample, replace bool) error {
	if s.drift == nil {
		return fmt.Errorf("%w: drift monitor not configured", common.ErrInternal)
	}
	return s.drift.LoadGold(samples, replace)
}
