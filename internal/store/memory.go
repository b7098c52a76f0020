package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// validTransitions encodes the job state machine. Terminal states have no
// entry: once terminal, a job never changes again.
var validTransitions = map[constants.JobStatus][]constants.JobStatus{
	constants.JobStatusQueued: {
		constants.JobStatusOCRRunning,
		constants.JobStatusOCRFailed,
		constants.JobStatusCancelled,
	},
	constants.JobStatusOCRRunning: {
		constants.JobStatusOCRFailed,
		constants.JobStatusExtractionRunning,
		constants.JobStatusSucceeded,
		constants.JobStatusCancelled,
	},
	constants.JobStatusExtractionRunning: {
		constants.JobStatusExtractionFailed,
		constants.JobStatusSucceeded,
		constants.JobStatusCancelled,
	},
}

// MemoryStore is the canonical JobStore used by the running pipeline.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*entity.Job
	batches map[uuid.UUID]*entity.Batch
	logger  *slog.Logger
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		jobs:    make(map[uuid.UUID]*entity.Job),
		batches: make(map[uuid.UUID]*entity.Batch),
		logger:  logger,
	}
}

func (s *MemoryStore) CreateJob(job *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) DeleteJob(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *MemoryStore) GetJob(id uuid.UUID) (entity.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return entity.Job{}, common.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) ListTerminalJobs() []entity.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.Job
	for _, job := range s.jobs {
		if job.Status.IsTerminal() {
			out = append(out, job.Clone())
		}
	}
	return out
}

func (s *MemoryStore) Claim(id uuid.UUID) (entity.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != constants.JobStatusQueued {
		return entity.Job{}, false
	}
	job.Status = constants.JobStatusOCRRunning
	job.StartedAt = time.Now().UTC()
	return job.Clone(), true
}

func (s *MemoryStore) StartExtraction(id uuid.UUID, ocrText string, ocrAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.locked(id)
	if err != nil {
		return err
	}
	if err := s.transition(job, constants.JobStatusExtractionRunning); err != nil {
		return err
	}
	job.OCRText = ocrText
	job.OCRAttempts = ocrAttempts
	return nil
}

func (s *MemoryStore) CompleteOCROnly(id uuid.UUID, ocrText string, ocrAttempts int) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.locked(id)
	if err != nil {
		return entity.Job{}, err
	}
	job.OCRText = ocrText
	job.OCRAttempts = ocrAttempts
	return s.finish(job, constants.JobStatusSucceeded, nil)
}

func (s *MemoryStore) FailOCR(id uuid.UUID, jobErr entity.JobError, ocrAttempts int) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.locked(id)
	if err != nil {
		return entity.Job{}, err
	}
	job.OCRAttempts = ocrAttempts
	return s.finish(job, constants.JobStatusOCRFailed, &jobErr)
}

func (s *MemoryStore) CompleteExtraction(id uuid.UUID, fields map[string]string, attempts int) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.locked(id)
	if err != nil {
		return entity.Job{}, err
	}
	job.Fields = fields
	job.ExtractionAttempts = attempts
	return s.finish(job, constants.JobStatusSucceeded, nil)
}

func (s *MemoryStore) FailExtraction(id uuid.UUID, jobErr entity.JobError, attempts int) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.locked(id)
	if err != nil {
		return entity.Job{}, err
	}
	job.ExtractionAttempts = attempts
	return s.finish(job, constants.JobStatusExtractionFailed, &jobErr)
}

// FailQueued fails a job that never reached a worker, e.g. a batch member
// rejected by queue backpressure after its record was created.
func (s *MemoryStore) FailQueued(id uuid.UUID, jobErr entity.JobError) (entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.locked(id)
	if err != nil {
		return entity.Job{}, err
	}
	return s.finish(job, constants.JobStatusOCRFailed, &jobErr)
}

func (s *MemoryStore) Cancel(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, common.ErrNotFound
	}
	switch {
	case job.Status == constants.JobStatusQueued:
		job.Status = constants.JobStatusCancelled
		job.Error = &entity.JobError{Kind: constants.ErrorKindCancelled, Message: "cancelled before pickup"}
		job.CompletedAt = time.Now().UTC()
		return true, nil
	case job.Status.IsTerminal():
		return false, nil
	default:
		// Already running: advisory only, the in-flight call is not
		// interrupted. The completion write checks the flag.
		job.CancelRequested = true
		return true, nil
	}
}

func (s *MemoryStore) CreateBatch(batch *entity.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("batch %s already exists", batch.ID)
	}
	s.batches[batch.ID] = batch
	return nil
}

func (s *MemoryStore) GetBatch(id uuid.UUID) (entity.BatchView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return entity.BatchView{}, common.ErrNotFound
	}
	var counts entity.BatchCounts
	for _, jobID := range batch.JobIDs {
		job, ok := s.jobs[jobID]
		if !ok {
			continue
		}
		switch job.Status {
		case constants.JobStatusQueued:
			counts.Pending++
		case constants.JobStatusSucceeded:
			counts.Succeeded++
		default:
			if job.Status.IsFailure() {
				counts.Failed++
			} else {
				counts.Running++
			}
		}
	}
	view := entity.BatchView{
		ID:     batch.ID,
		Status: entity.DeriveBatchStatus(counts),
		Counts: counts,
		JobIDs: append([]uuid.UUID(nil), batch.JobIDs...),
	}
	return view, nil
}

// finish writes a terminal state. A successful completion is downgraded to
// CANCELLED when an advisory cancel arrived while the job was running; the
// extracted results stay on the record.
func (s *MemoryStore) finish(job *entity.Job, to constants.JobStatus, jobErr *entity.JobError) (entity.Job, error) {
	if to == constants.JobStatusSucceeded && job.CancelRequested {
		to = constants.JobStatusCancelled
		jobErr = &entity.JobError{Kind: constants.ErrorKindCancelled, Message: "cancelled while running"}
	}
	if err := s.transition(job, to); err != nil {
		return entity.Job{}, err
	}
	job.Error = jobErr
	job.CompletedAt = time.Now().UTC()
	return job.Clone(), nil
}

func (s *MemoryStore) locked(id uuid.UUID) (*entity.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) transition(job *entity.Job, to constants.JobStatus) error {
	for _, allowed := range validTransitions[job.Status] {
		if allowed == to {
			job.Status = to
			return nil
		}
	}
	s.logger.Error("store.invalid_transition", "job_id", job.ID, "from", job.Status, "to", to)
	return fmt.Errorf("invalid transition %s -> %s for job %s", job.Status, to, job.ID)
}
