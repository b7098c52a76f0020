package constants

// JobStatus is the canonical lifecycle state for a pipeline job.
type JobStatus string

// Stable values (stored verbatim in archives, returned verbatim to pollers).
const (
	JobStatusQueued            JobStatus = "QUEUED"             // waiting for a worker
	JobStatusOCRRunning        JobStatus = "OCR_RUNNING"        // stage 1 in progress
	JobStatusOCRFailed         JobStatus = "OCR_FAILED"         // terminal: stage 1 failed
	JobStatusExtractionRunning JobStatus = "EXTRACTION_RUNNING" // stage 2 in progress
	JobStatusExtractionFailed  JobStatus = "EXTRACTION_FAILED"  // terminal: stage 2 failed
	JobStatusSucceeded         JobStatus = "SUCCEEDED"          // terminal
	JobStatusCancelled         JobStatus = "CANCELLED"          // terminal
)

// IsTerminal reports whether a job in this status will never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusOCRFailed, JobStatusExtractionFailed, JobStatusSucceeded, JobStatusCancelled:
		return true
	}
	return false
}

// IsFailure reports whether a terminal status counts as a failure in batch
// aggregation. Cancelled jobs count as failures.
func (s JobStatus) IsFailure() bool {
	switch s {
	case JobStatusOCRFailed, JobStatusExtractionFailed, JobStatusCancelled:
		return true
	}
	return false
}

// BatchStatus is the aggregate state derived from a batch's member jobs.
type BatchStatus string

const (
	BatchStatusPending        BatchStatus = "PENDING"         // at least one member non-terminal
	BatchStatusSucceeded      BatchStatus = "SUCCEEDED"       // all members succeeded
	BatchStatusPartialFailure BatchStatus = "PARTIAL_FAILURE" // mixed terminal outcomes
	BatchStatusFailed         BatchStatus = "FAILED"          // all members failed
)

// ErrorKind labels the failure recorded on a terminal job.
type ErrorKind string

const (
	ErrorKindTransient         ErrorKind = "PROVIDER_TRANSIENT"
	ErrorKindPermanent         ErrorKind = "PROVIDER_PERMANENT"
	ErrorKindAttemptsExhausted ErrorKind = "ATTEMPTS_EXHAUSTED"
	ErrorKindQueueFull         ErrorKind = "QUEUE_FULL"
	ErrorKindCancelled         ErrorKind = "CANCELLED"
)
