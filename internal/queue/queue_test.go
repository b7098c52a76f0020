package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuscan/extraction-pipeline/internal/common"
)

// fakeProcessor records every job it sees and tracks peak concurrency.
type fakeProcessor struct {
	mu       sync.Mutex
	seen     map[uuid.UUID]int
	inFlight int32
	peak     int32
	block    time.Duration
	done     chan uuid.UUID
}

func newFakeProcessor(block time.Duration, capacity int) *fakeProcessor {
	return &fakeProcessor{
		seen:  make(map[uuid.UUID]int),
		block: block,
		done:  make(chan uuid.UUID, capacity),
	}
}

func (f *fakeProcessor) Process(ctx context.Context, jobID uuid.UUID) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}
	if f.block > 0 {
		time.Sleep(f.block)
	}
	f.mu.Lock()
	f.seen[jobID]++
	f.mu.Unlock()
	atomic.AddInt32(&f.inFlight, -1)
	f.done <- jobID
}

func TestQueueProcessesEverything(t *testing.T) {
	const jobs = 20
	proc := newFakeProcessor(time.Millisecond, jobs)
	q := New(nil, proc, WithWorkers(3), WithBackpressureLimit(jobs))
	q.Start()

	submitted := make(map[uuid.UUID]bool, jobs)
	for i := 0; i < jobs; i++ {
		id := uuid.New()
		submitted[id] = true
		require.NoError(t, q.Enqueue(id))
	}

	for i := 0; i < jobs; i++ {
		select {
		case id := <-proc.done:
			assert.True(t, submitted[id])
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d jobs processed", i, jobs)
		}
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Len(t, proc.seen, jobs)
	for id, n := range proc.seen {
		assert.Equal(t, 1, n, "job %s processed %d times", id, n)
	}
}

func TestQueueBoundsConcurrency(t *testing.T) {
	const jobs = 12
	proc := newFakeProcessor(20*time.Millisecond, jobs)
	q := New(nil, proc, WithWorkers(2), WithBackpressureLimit(jobs))
	q.Start()

	for i := 0; i < jobs; i++ {
		require.NoError(t, q.Enqueue(uuid.New()))
	}
	for i := 0; i < jobs; i++ {
		select {
		case <-proc.done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs did not finish")
		}
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&proc.peak), int32(2))
}

func TestQueueBackpressure(t *testing.T) {
	proc := newFakeProcessor(0, 4)
	q := New(nil, proc, WithWorkers(1), WithBackpressureLimit(2))
	// Not started: nothing drains, so the third enqueue must be rejected.
	require.NoError(t, q.Enqueue(uuid.New()))
	require.NoError(t, q.Enqueue(uuid.New()))
	err := q.Enqueue(uuid.New())
	assert.ErrorIs(t, err, common.ErrQueueFull)
	assert.Equal(t, 2, q.Depth())
}

func TestQueueShutdownDrains(t *testing.T) {
	const jobs = 6
	proc := newFakeProcessor(5*time.Millisecond, jobs)
	q := New(nil, proc, WithWorkers(2), WithBackpressureLimit(jobs))
	q.Start()
	for i := 0; i < jobs; i++ {
		require.NoError(t, q.Enqueue(uuid.New()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Len(t, proc.seen, jobs, "shutdown must drain buffered jobs")
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	proc := newFakeProcessor(0, 1)
	q := New(nil, proc, WithWorkers(1))
	q.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	err := q.Enqueue(uuid.New())
	assert.ErrorIs(t, err, common.ErrQueueFull)
}
