package ports

import (
	"context"
	"time"
)

// PackageJob names one package result directory to synthesize rules for.
// Attempt counts earlier runs of the same job and is only used for retry bookkeeping.
type PackageJob struct {
	Dir     string
	Attempt int
}

// DedupLedger records the root content hashes of packages already admitted for processing.
type DedupLedger interface {
	// Admit atomically inserts hash and reports whether it was absent.
	Admit(ctx context.Context, hash string) (bool, error)
	// Release forgets hash so a failed job can be admitted again on retry.
	Release(ctx context.Context, hash string) error
	Close() error
}

// JobQueue is a bounded FIFO of package jobs with an acknowledgement barrier.
type JobQueue interface {
	Push(ctx context.Context, job PackageJob) error
	Pop(ctx context.Context) (PackageJob, bool)
	// Done acknowledges one popped job.
	Done()
	// Requeue schedules job again without blocking the caller.
	Requeue(job PackageJob) error
	// Wait blocks until every pushed or requeued job has been acknowledged.
	Wait(ctx context.Context) error
	Close() error
	Len() int
}

// PackageProcessor runs the per-package synthesis algorithm.
type PackageProcessor interface {
	Process(ctx context.Context, job PackageJob) (PackageResult, error)
}

// PackageOutcome classifies how a package job ended.
type PackageOutcome string

const (
	OutcomeWritten   PackageOutcome = "written"
	OutcomeEmpty     PackageOutcome = "empty"
	OutcomeDuplicate PackageOutcome = "duplicate"
	OutcomeFailed    PackageOutcome = "failed"
)

// PackageResult summarizes one processed package.
type PackageResult struct {
	Dir              string
	Package          string
	RootHash         string
	Outcome          PackageOutcome
	RuleFiles        []string
	ArtifactsSkipped int
	Duration         time.Duration
}

// RunSummary totals a dispatcher run.
type RunSummary struct {
	Queued       int64
	Processed    int64
	Duplicates   int64
	Failed       int64
	Retried      int64
	RulesWritten int64
	Duration     time.Duration
}
