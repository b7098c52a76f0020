package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/constants"
)

// Document is the immutable input handed to a job at submission.
type Document struct {
	Bytes     []byte
	MediaType string
	Filename  string
}

// JobOptions carries the per-submission capability flags.
type JobOptions struct {
	RunExtraction      bool
	OCRProvider        string // override; empty means the configured default
	ExtractionProvider string // override; empty means the configured default
	SchemaHint         map[string]constants.FieldType
}

// JobError is the failure recorded on a terminal job.
type JobError struct {
	Kind    constants.ErrorKind
	Message string
}

// Job is one document's pipeline execution unit. It is created at submission,
// mutated only by the store on behalf of the single worker that owns it, and
// immutable once terminal.
type Job struct {
	ID       uuid.UUID
	BatchID  uuid.UUID // uuid.Nil for standalone submissions
	Document Document
	Options  JobOptions

	Status  constants.JobStatus
	OCRText string
	Fields  map[string]string
	Error   *JobError

	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	OCRAttempts        int
	ExtractionAttempts int

	// CancelRequested is set by an advisory cancel that arrived after a
	// worker claimed the job; the completion write checks it.
	CancelRequested bool
}

// NewJob builds a queued job for a validated document.
func NewJob(doc Document, opts JobOptions) *Job {
	return &Job{
		ID:          uuid.New(),
		Document:    doc,
		Options:     opts,
		Status:      constants.JobStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
}

// Clone returns a deep-enough copy safe to hand to pollers: the fields map is
// copied, the document bytes are shared (immutable by contract).
func (j *Job) Clone() Job {
	out := *j
	if j.Fields != nil {
		out.Fields = make(map[string]string, len(j.Fields))
		for k, v := range j.Fields {
			out.Fields[k] = v
		}
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	return out
}
