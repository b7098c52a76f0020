// Package batch fans a group of documents out as individual jobs under one
// batch identifier. The batch itself is a pure aggregation view; member jobs
// retry, fail, and complete independently.
package batch

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/queue"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

type Orchestrator struct {
	logger  *slog.Logger
	store   store.JobStore
	queue   *queue.Queue
	maxSize int
}

func NewOrchestrator(logger *slog.Logger, st store.JobStore, q *queue.Queue, maxSize int) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Orchestrator{logger: logger, store: st, queue: q, maxSize: maxSize}
}

// Submit creates one job per document, all tagged with a fresh batch ID, and
// hands each to the queue. Admission errors (empty, oversized, invalid
// documents) are returned before any job is created. A member rejected by
// queue backpressure mid-fan-out is recorded as a terminal failure rather
// than unwinding the members already in flight.
func (o *Orchestrator) Submit(docs []entity.Document, opts entity.JobOptions) (entity.BatchView, error) {
	if len(docs) == 0 {
		return entity.BatchView{}, common.ErrEmptyBatch
	}
	if len(docs) > o.maxSize {
		return entity.BatchView{}, fmt.Errorf("%w: %d documents, limit %d", common.ErrBatchTooLarge, len(docs), o.maxSize)
	}
	for i, doc := range docs {
		if err := common.ValidateDocument(doc); err != nil {
			return entity.BatchView{}, fmt.Errorf("document %d: %w", i, err)
		}
	}

	batch := entity.NewBatch()
	rejected := 0
	for _, doc := range docs {
		job := entity.NewJob(doc, opts)
		job.BatchID = batch.ID
		if err := o.store.CreateJob(job); err != nil {
			return entity.BatchView{}, err
		}
		batch.JobIDs = append(batch.JobIDs, job.ID)

		if err := o.queue.Enqueue(job.ID); err != nil {
			jobErr := entity.JobError{
				Kind:    constants.ErrorKindQueueFull,
				Message: "rejected by queue backpressure",
			}
			if _, ferr := o.store.FailQueued(job.ID, jobErr); ferr != nil {
				o.logger.Error("batch.member_fail_write", "job_id", job.ID, "error", ferr)
			}
			rejected++
		}
	}
	if err := o.store.CreateBatch(batch); err != nil {
		return entity.BatchView{}, err
	}

	o.logger.Info("batch.submitted",
		"batch_id", batch.ID,
		"jobs", len(batch.JobIDs),
		"rejected", rejected,
	)
	return o.store.GetBatch(batch.ID)
}

// Get returns the aggregate view for a batch.
func (o *Orchestrator) Get(id uuid.UUID) (entity.BatchView, error) {
	return o.store.GetBatch(id)
}
