package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/constants"
)

// Batch groups jobs submitted together. The member list is fixed at
// submission; the aggregate view is derived from member job states.
type Batch struct {
	ID          uuid.UUID
	JobIDs      []uuid.UUID
	SubmittedAt time.Time
}

func NewBatch() *Batch {
	return &Batch{
		ID:          uuid.New(),
		SubmittedAt: time.Now().UTC(),
	}
}

// BatchCounts are the aggregate member counts at one observation point.
// Pending+Running+Succeeded+Failed always equals len(JobIDs).
type BatchCounts struct {
	Pending   int
	Running   int
	Succeeded int
	Failed    int
}

func (c BatchCounts) Total() int {
	return c.Pending + c.Running + c.Succeeded + c.Failed
}

// BatchView is the snapshot returned to polling clients.
type BatchView struct {
	ID     uuid.UUID
	Status constants.BatchStatus
	Counts BatchCounts
	JobIDs []uuid.UUID
}

// DeriveBatchStatus computes the aggregate batch state from member counts.
func DeriveBatchStatus(c BatchCounts) constants.BatchStatus {
	switch {
	case c.Pending+c.Running > 0:
		return constants.BatchStatusPending
	case c.Failed == 0:
		return constants.BatchStatusSucceeded
	case c.Succeeded == 0:
		return constants.BatchStatusFailed
	default:
		return constants.BatchStatusPartialFailure
	}
}
