package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"yarasynth/internal/core/ports"
)

func TestMemoryQueue_PushPopFIFO(t *testing.T) {
	q := NewMemoryQueue(2)
	t.Cleanup(func() { _ = q.Close() })
	ctx := context.Background()

	if err := q.Push(ctx, ports.PackageJob{Dir: "a"}); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := q.Push(ctx, ports.PackageJob{Dir: "b"}); err != nil {
		t.Fatalf("push b: %v", err)
	}
	if q.Len() != 2 || q.Pending() != 2 {
		t.Fatalf("expected len 2 pending 2, got %d %d", q.Len(), q.Pending())
	}

	first, ok := q.Pop(ctx)
	if !ok || first.Dir != "a" {
		t.Fatalf("expected a, got %+v ok=%v", first, ok)
	}
	second, ok := q.Pop(ctx)
	if !ok || second.Dir != "b" {
		t.Fatalf("expected b, got %+v ok=%v", second, ok)
	}
}

func TestMemoryQueue_WaitBarrier(t *testing.T) {
	q := NewMemoryQueue(4)
	t.Cleanup(func() { _ = q.Close() })
	ctx := context.Background()

	for _, dir := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, ports.PackageJob{Dir: dir}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	waited := make(chan error, 1)
	go func() { waited <- q.Wait(ctx) }()

	for i := 0; i < 3; i++ {
		if _, ok := q.Pop(ctx); !ok {
			t.Fatal("expected job")
		}
		select {
		case <-waited:
			t.Fatalf("Wait returned with %d jobs unacknowledged", 3-i)
		default:
		}
		q.Done()
	}

	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after all jobs were acknowledged")
	}
}

func TestMemoryQueue_WaitOnEmptyQueue(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Wait(context.Background()); err != nil {
		t.Fatalf("expected immediate return, got %v", err)
	}
}

func TestMemoryQueue_WaitHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Push(context.Background(), ports.PackageJob{Dir: "a"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryQueue_RequeueWhileFull(t *testing.T) {
	q := NewMemoryQueue(1)
	t.Cleanup(func() { _ = q.Close() })
	ctx := context.Background()

	if err := q.Push(ctx, ports.PackageJob{Dir: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(ctx, ports.PackageJob{Dir: "b"}); err != nil {
		t.Fatal(err)
	}
	// Channel holds b now; popping a and requeueing it must not block the worker.
	job, ok := q.Pop(ctx)
	if !ok || job.Dir != "a" {
		t.Fatalf("expected a, got %+v", job)
	}
	job.Attempt++
	if err := q.Requeue(job); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	q.Done()

	if q.Pending() != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", q.Pending())
	}

	seen := map[string]int{}
	for i := 0; i < 2; i++ {
		popCtx, cancel := context.WithTimeout(ctx, time.Second)
		j, ok := q.Pop(popCtx)
		cancel()
		if !ok {
			t.Fatal("expected job")
		}
		seen[j.Dir] = j.Attempt
		q.Done()
	}
	if attempt, ok := seen["a"]; !ok || attempt != 1 {
		t.Fatalf("expected requeued a with attempt 1, got %+v", seen)
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestMemoryQueue_PushBlocksUntilContextDone(t *testing.T) {
	q := NewMemoryQueue(1)
	t.Cleanup(func() { _ = q.Close() })

	if err := q.Push(context.Background(), ports.PackageJob{Dir: "a"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, ports.PackageJob{Dir: "b"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if q.Pending() != 1 {
		t.Fatalf("expected failed push to leave pending at 1, got %d", q.Pending())
	}
}

func TestMemoryQueue_CloseUnblocksPushAndDrains(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	if err := q.Push(ctx, ports.PackageJob{Dir: "a"}); err != nil {
		t.Fatal(err)
	}

	blocked := make(chan error, 1)
	go func() { blocked <- q.Push(ctx, ports.PackageJob{Dir: "b"}) }()
	time.Sleep(10 * time.Millisecond)

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-blocked:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked push was not released by Close")
	}

	if job, ok := q.Pop(ctx); !ok || job.Dir != "a" {
		t.Fatalf("expected buffered job a after close, got %+v ok=%v", job, ok)
	}
	if _, ok := q.Pop(ctx); ok {
		t.Fatal("expected closed and drained queue")
	}
	if err := q.Push(ctx, ports.PackageJob{Dir: "c"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if err := q.Requeue(ports.PackageJob{Dir: "c"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on requeue after close, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryQueue_PopHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	t.Cleanup(func() { _ = q.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Pop(ctx); ok {
		t.Fatal("expected Pop to give up on cancelled context")
	}
}
