package queue

import (
	"context"
	"errors"
	"sync"

	"yarasynth/internal/core/ports"
)

var _ ports.JobQueue = (*MemoryQueue)(nil)

// ErrClosed is returned when pushing to a closed queue.
var ErrClosed = errors.New("job queue closed")

// MemoryQueue is a bounded channel of package jobs. It counts jobs that were pushed but not
// yet acknowledged with Done, and Wait blocks until that count reaches zero.
type MemoryQueue struct {
	ch     chan ports.PackageJob
	stop   chan struct{}
	mu     sync.RWMutex
	closed bool

	pmu     sync.Mutex
	pending int
	drained chan struct{}
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	drained := make(chan struct{})
	close(drained)
	return &MemoryQueue{
		ch:      make(chan ports.PackageJob, capacity),
		stop:    make(chan struct{}),
		drained: drained,
	}
}

// Push blocks until job fits in the queue, ctx is done, or the queue is closed.
func (q *MemoryQueue) Push(ctx context.Context, job ports.PackageJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	q.addPending(1)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.addPending(-1)
		return ctx.Err()
	case <-q.stop:
		q.addPending(-1)
		return ErrClosed
	}
}

// Requeue counts job as pending immediately and delivers it from a separate goroutine, so a
// worker can requeue while the channel is full.
func (q *MemoryQueue) Requeue(job ports.PackageJob) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrClosed
	}
	q.addPending(1)
	q.mu.RUnlock()

	go func() {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			q.addPending(-1)
			return
		}
		select {
		case q.ch <- job:
		case <-q.stop:
			q.addPending(-1)
		}
	}()
	return nil
}

// Pop returns the next job. ok is false once the queue is closed and drained or ctx is done.
func (q *MemoryQueue) Pop(ctx context.Context) (ports.PackageJob, bool) {
	select {
	case job, ok := <-q.ch:
		return job, ok
	case <-ctx.Done():
		return ports.PackageJob{}, false
	}
}

func (q *MemoryQueue) Done() {
	q.addPending(-1)
}

// Wait blocks until every pushed job was acknowledged or ctx is done.
func (q *MemoryQueue) Wait(ctx context.Context) error {
	for {
		q.pmu.Lock()
		if q.pending == 0 {
			q.pmu.Unlock()
			return nil
		}
		drained := q.drained
		q.pmu.Unlock()

		select {
		case <-drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of jobs not yet acknowledged.
func (q *MemoryQueue) Pending() int {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	return q.pending
}

func (q *MemoryQueue) addPending(delta int) {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	before := q.pending
	q.pending += delta
	if q.pending < 0 {
		q.pending = 0
	}
	switch {
	case before == 0 && q.pending > 0:
		q.drained = make(chan struct{})
	case before > 0 && q.pending == 0:
		close(q.drained)
	}
}

// Close stops accepting jobs. Jobs already buffered can still be popped.
func (q *MemoryQueue) Close() error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil
	}

	// Release blocked senders before taking the write lock they would otherwise hold off.
	q.closeStop()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue) closeStop() {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	select {
	case <-q.stop:
	default:
		close(q.stop)
	}
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
