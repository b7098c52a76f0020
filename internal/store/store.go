// Package store holds job and batch state for the pipeline. The in-memory
// implementation is the live store workers and pollers share; the Archiver
// implementations persist terminal outcomes to a database collaborator.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// JobStore is the single piece of state shared between workers and the
// submission/polling paths. All mutations to one job go through the worker
// that owns it; reads return snapshots.
type JobStore interface {
	CreateJob(job *entity.Job) error
	// DeleteJob removes a job that was never enqueued (admission rollback).
	DeleteJob(id uuid.UUID)
	GetJob(id uuid.UUID) (entity.Job, error)
	ListTerminalJobs() []entity.Job

	// Claim transitions a QUEUED job to OCR_RUNNING and hands it to the
	// calling worker. It reports false when the job is gone or no longer
	// queued (e.g. cancelled before pickup), in which case the worker must
	// skip it.
	Claim(id uuid.UUID) (entity.Job, bool)

	StartExtraction(id uuid.UUID, ocrText string, ocrAttempts int) error
	CompleteOCROnly(id uuid.UUID, ocrText string, ocrAttempts int) (entity.Job, error)
	FailOCR(id uuid.UUID, jobErr entity.JobError, ocrAttempts int) (entity.Job, error)
	CompleteExtraction(id uuid.UUID, fields map[string]string, attempts int) (entity.Job, error)
	FailExtraction(id uuid.UUID, jobErr entity.JobError, attempts int) (entity.Job, error)
	// FailQueued records a terminal failure on a job still in QUEUED, used
	// when a batch member cannot be handed to the queue.
	FailQueued(id uuid.UUID, jobErr entity.JobError) (entity.Job, error)

	// Cancel is best-effort: a queued job transitions straight to CANCELLED;
	// a running job only gets its advisory flag set. Returns false when the
	// job is already terminal.
	Cancel(id uuid.UUID) (bool, error)

	CreateBatch(batch *entity.Batch) error
	GetBatch(id uuid.UUID) (entity.BatchView, error)
}

// Archiver persists terminal job outcomes for audit and export. Archiving is
// best-effort from the pipeline's point of view; failures are logged, never
// propagated to the job lifecycle.
type Archiver interface {
	ArchiveJob(ctx context.Context, job entity.Job) error
	// PruneExpired deletes rows whose retention window ended before now and
	// reports how many were removed.
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}
