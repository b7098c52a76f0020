// Package queue feeds claimed job IDs to a fixed pool of workers. The
// channel buffer is the backpressure limit: a full buffer rejects the
// enqueue instead of blocking the caller.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/metrics"
)

// Processor consumes one job ID per call and is responsible for driving the
// job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID uuid.UUID)
}

const (
	defaultWorkers           = 4
	defaultBackpressureLimit = 256
	defaultProcessTimeout    = 3 * time.Minute
)

type Queue struct {
	logger         *slog.Logger
	processor      Processor
	metrics        *metrics.Metrics
	workers        int
	limit          int
	processTimeout time.Duration

	jobs      chan uuid.UUID
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithBackpressureLimit(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.limit = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.processTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func New(logger *slog.Logger, processor Processor, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		logger:         logger,
		processor:      processor,
		workers:        defaultWorkers,
		limit:          defaultBackpressureLimit,
		processTimeout: defaultProcessTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan uuid.UUID, q.limit)
	return q
}

// Start launches the worker pool. Safe to call more than once.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.logger.Info("queue.start", "workers", q.workers, "backpressure_limit", q.limit)
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(i)
		}
	})
}

// Enqueue hands a job ID to the pool. It never blocks: when the buffer is
// at the backpressure limit, or the queue is shutting down, it returns
// ErrQueueFull and the caller rolls back admission.
func (q *Queue) Enqueue(jobID uuid.UUID) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return common.ErrQueueFull
	}
	// Send under the lock so Shutdown cannot close the channel mid-send.
	select {
	case q.jobs <- jobID:
		q.mu.Unlock()
		if q.metrics != nil {
			q.metrics.JobsEnqueued.Inc()
		}
		return nil
	default:
		q.mu.Unlock()
		if q.metrics != nil {
			q.metrics.JobsRejected.Inc()
		}
		q.logger.Warn("queue.full", "job_id", jobID, "backpressure_limit", q.limit)
		return common.ErrQueueFull
	}
}

// Depth reports the number of buffered, not yet claimed jobs.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Shutdown stops intake and waits for the workers to drain the buffer. The
// context bounds the wait; jobs still buffered when it expires are lost to
// this process but remain QUEUED in the store.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		close(q.jobs)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.logger.Info("queue.drained")
		return nil
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown_timeout", "pending", len(q.jobs))
		return ctx.Err()
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for jobID := range q.jobs {
		if q.metrics != nil {
			q.metrics.JobsInFlight.Inc()
		}
		ctx, cancel := context.WithTimeout(context.Background(), q.processTimeout)
		q.processor.Process(ctx, jobID)
		cancel()
		if q.metrics != nil {
			q.metrics.JobsInFlight.Dec()
		}
		q.logger.Debug("queue.worker.processed", "worker", id, "job_id", jobID)
	}
}
