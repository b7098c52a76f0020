package batch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/queue"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

// completingProcessor drives every job straight to SUCCEEDED.
type completingProcessor struct {
	store *store.MemoryStore
}

func (p *completingProcessor) Process(ctx context.Context, jobID uuid.UUID) {
	if _, ok := p.store.Claim(jobID); !ok {
		return
	}
	_, _ = p.store.CompleteOCROnly(jobID, "text", 1)
}

func textDocs(n int) []entity.Document {
	docs := make([]entity.Document, n)
	for i := range docs {
		docs[i] = entity.Document{
			Bytes:     []byte("document body"),
			MediaType: "text/plain",
			Filename:  "doc.txt",
		}
	}
	return docs
}

func TestSubmitEmptyBatch(t *testing.T) {
	s := store.NewMemoryStore(nil)
	q := queue.New(nil, &completingProcessor{store: s})
	o := NewOrchestrator(nil, s, q, 10)

	_, err := o.Submit(nil, entity.JobOptions{})
	assert.ErrorIs(t, err, common.ErrEmptyBatch)
}

func TestSubmitBatchTooLarge(t *testing.T) {
	s := store.NewMemoryStore(nil)
	q := queue.New(nil, &completingProcessor{store: s})
	o := NewOrchestrator(nil, s, q, 2)

	_, err := o.Submit(textDocs(3), entity.JobOptions{})
	assert.ErrorIs(t, err, common.ErrBatchTooLarge)
	assert.Empty(t, s.ListTerminalJobs())
}

func TestSubmitRejectsInvalidDocumentBeforeCreatingJobs(t *testing.T) {
	s := store.NewMemoryStore(nil)
	q := queue.New(nil, &completingProcessor{store: s})
	o := NewOrchestrator(nil, s, q, 10)

	docs := textDocs(2)
	docs[1].Bytes = nil
	_, err := o.Submit(docs, entity.JobOptions{})
	assert.ErrorIs(t, err, common.ErrInvalidDocument)

	// Admission is all-or-nothing: the valid sibling was not created either.
	view, err2 := s.GetBatch(uuid.New())
	assert.Error(t, err2)
	assert.Empty(t, view.JobIDs)
}

func TestSubmitFansOutAndAggregates(t *testing.T) {
	s := store.NewMemoryStore(nil)
	q := queue.New(nil, &completingProcessor{store: s}, queue.WithWorkers(2))
	q.Start()
	o := NewOrchestrator(nil, s, q, 10)

	view, err := o.Submit(textDocs(5), entity.JobOptions{})
	require.NoError(t, err)
	assert.Len(t, view.JobIDs, 5)
	assert.Equal(t, 5, view.Counts.Total())

	// Every member carries the batch tag and progresses independently.
	for _, id := range view.JobIDs {
		job, err := s.GetJob(id)
		require.NoError(t, err)
		assert.Equal(t, view.ID, job.BatchID)
	}

	require.Eventually(t, func() bool {
		v, err := o.Get(view.ID)
		return err == nil && v.Status == constants.BatchStatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	final, err := o.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchCounts{Succeeded: 5}, final.Counts)
}

func TestSubmitQueueFullMemberFailsTerminally(t *testing.T) {
	s := store.NewMemoryStore(nil)
	// Capacity 2, never started: the third member cannot be enqueued.
	q := queue.New(nil, &completingProcessor{store: s}, queue.WithBackpressureLimit(2))
	o := NewOrchestrator(nil, s, q, 10)

	view, err := o.Submit(textDocs(3), entity.JobOptions{})
	require.NoError(t, err)
	assert.Len(t, view.JobIDs, 3)
	assert.Equal(t, 1, view.Counts.Failed)
	assert.Equal(t, 2, view.Counts.Pending)

	rejected, err := s.GetJob(view.JobIDs[2])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusOCRFailed, rejected.Status)
	require.NotNil(t, rejected.Error)
	assert.Equal(t, constants.ErrorKindQueueFull, rejected.Error.Kind)
}

func TestGetBatchNotFound(t *testing.T) {
	s := store.NewMemoryStore(nil)
	q := queue.New(nil, &completingProcessor{store: s})
	o := NewOrchestrator(nil, s, q, 10)
	_, err := o.Get(uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
