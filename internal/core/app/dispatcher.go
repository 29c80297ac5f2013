package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"yarasynth/internal/core/config"
	domainerrors "yarasynth/internal/core/errors"
	"yarasynth/internal/core/ports"
	"yarasynth/internal/data/queue"
	"yarasynth/internal/shared/observability"
	"yarasynth/internal/shared/util"

	"golang.org/x/sync/errgroup"
)

// Dispatcher fans package jobs out to a fixed pool of workers.
type Dispatcher struct {
	threads   int
	capacity  int
	timeout   time.Duration
	retries   int
	manifest  string
	debounce  time.Duration
	ledger    ports.DedupLedger
	processor ports.PackageProcessor
	limiter   *util.Limiter
	newQueue  func(capacity int) ports.JobQueue

	stats runStats
}

type runStats struct {
	queued       atomic.Int64
	processed    atomic.Int64
	duplicates   atomic.Int64
	failed       atomic.Int64
	retried      atomic.Int64
	rulesWritten atomic.Int64
}

func (s *runStats) summary(elapsed time.Duration) ports.RunSummary {
	return ports.RunSummary{
		Queued:       s.queued.Load(),
		Processed:    s.processed.Load(),
		Duplicates:   s.duplicates.Load(),
		Failed:       s.failed.Load(),
		Retried:      s.retried.Load(),
		RulesWritten: s.rulesWritten.Load(),
		Duration:     elapsed,
	}
}

func NewDispatcher(cfg *config.Config, ledger ports.DedupLedger, processor ports.PackageProcessor) *Dispatcher {
	threads := cfg.General.Threads
	if threads <= 0 {
		threads = 1
	}
	return &Dispatcher{
		threads:   threads,
		capacity:  cfg.Runtime.QueueCapacity,
		timeout:   cfg.Runtime.JobTimeout,
		retries:   cfg.Runtime.JobRetries,
		manifest:  cfg.Runtime.ManifestName,
		debounce:  cfg.Runtime.WatchDebounce,
		ledger:    ledger,
		processor: processor,
		limiter:   util.NewJobLimiter(cfg.Runtime.JobsPerSecond),
		newQueue:  newMemoryQueue,
	}
}

// Run processes every package directory under root and returns once all of them were
// acknowledged. A cancelled ctx stops workers between jobs.
func (d *Dispatcher) Run(ctx context.Context, root string) (ports.RunSummary, error) {
	return d.run(ctx, root, nil)
}

func newMemoryQueue(capacity int) ports.JobQueue {
	return queue.NewMemoryQueue(capacity)
}

// produceFunc is called once the initial jobs are drained and may keep pushing until ctx is
// done. initial lists the directories that were already queued.
type produceFunc func(ctx context.Context, q ports.JobQueue, initial []string) error

func (d *Dispatcher) run(ctx context.Context, root string, produce produceFunc) (ports.RunSummary, error) {
	started := time.Now()
	dirs, err := Discover(root, d.manifest)
	if err != nil {
		return d.stats.summary(time.Since(started)), err
	}

	q := d.newQueue(d.capacity)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < d.threads; i++ {
		g.Go(func() error {
			d.worker(gctx, q)
			return nil
		})
	}

	g.Go(func() error {
		defer q.Close()
		for _, dir := range dirs {
			if err := d.push(gctx, q, dir); err != nil {
				return err
			}
		}
		if err := q.Wait(gctx); err != nil {
			return err
		}
		if produce == nil {
			return nil
		}
		return produce(gctx, q, dirs)
	})

	err = g.Wait()
	summary := d.stats.summary(time.Since(started))
	return summary, err
}

func (d *Dispatcher) push(ctx context.Context, q ports.JobQueue, dir string) error {
	if err := q.Push(ctx, ports.PackageJob{Dir: dir}); err != nil {
		return err
	}
	d.stats.queued.Add(1)
	observability.PackagesQueuedTotal.Inc()
	observability.JobQueueDepth.Set(float64(q.Len()))
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, q ports.JobQueue) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok := q.Pop(ctx)
		if !ok {
			return
		}
		observability.JobQueueDepth.Set(float64(q.Len()))
		d.runJob(ctx, q, job)
		q.Done()
	}
}

func (d *Dispatcher) runJob(ctx context.Context, q ports.JobQueue, job ports.PackageJob) {
	if err := d.limiter.Wait(ctx, 1); err != nil {
		return
	}

	jobCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	res, err := d.processor.Process(jobCtx, job)
	if err == nil {
		d.record(res)
		return
	}

	// The package was not synthesized, so its admission must not outlive this attempt.
	released := d.release(ctx, job, res.RootHash)

	if released && d.shouldRetry(ctx, job, err) {
		next := ports.PackageJob{Dir: job.Dir, Attempt: job.Attempt + 1}
		if qErr := q.Requeue(next); qErr == nil {
			d.stats.retried.Add(1)
			observability.PackageRetriesTotal.Inc()
			slog.Warn("package job timed out, retrying", "dir", job.Dir, "attempt", next.Attempt, "error", err)
			return
		}
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Shutdown, not a package failure.
		slog.Debug("package job interrupted", "dir", job.Dir)
		return
	}
	d.fail(job, err)
}

// release forgets hash in the ledger. It runs detached from ctx so an interrupted job still
// clears its admission.
func (d *Dispatcher) release(ctx context.Context, job ports.PackageJob, hash string) bool {
	if hash == "" {
		return true
	}
	if err := d.ledger.Release(context.WithoutCancel(ctx), hash); err != nil {
		slog.Error("failed to release ledger entry", "dir", job.Dir, "sha256", hash, "error", err)
		return false
	}
	return true
}

func (d *Dispatcher) shouldRetry(ctx context.Context, job ports.PackageJob, err error) bool {
	return ctx.Err() == nil &&
		domainerrors.IsCode(err, domainerrors.CodeTimeout) &&
		job.Attempt < d.retries
}

func (d *Dispatcher) record(res ports.PackageResult) {
	observability.PackagesTotal.WithLabelValues(string(res.Outcome)).Inc()
	switch res.Outcome {
	case ports.OutcomeDuplicate:
		d.stats.duplicates.Add(1)
	default:
		d.stats.processed.Add(1)
		d.stats.rulesWritten.Add(int64(len(res.RuleFiles)))
	}
}

func (d *Dispatcher) fail(job ports.PackageJob, err error) {
	d.stats.failed.Add(1)
	observability.PackagesTotal.WithLabelValues(string(ports.OutcomeFailed)).Inc()
	slog.Error("package job failed", "dir", job.Dir, "attempt", job.Attempt, "code", string(domainerrors.CodeOf(err)), "error", err)
}
