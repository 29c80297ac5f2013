package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	PackagesQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yarasynth_packages_queued_total",
		Help: "Total number of package directories pushed onto the job queue.",
	})

	PackagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yarasynth_packages_total",
		Help: "Total number of package jobs by outcome.",
	}, []string{"outcome"})

	PackageRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yarasynth_package_retries_total",
		Help: "Total number of package jobs requeued after a timeout.",
	})

	ArtifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yarasynth_artifacts_total",
		Help: "Total number of artifacts considered, by kind and result.",
	}, []string{"kind", "result"})

	RulesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yarasynth_rules_written_total",
		Help: "Total number of per-artifact rule files written.",
	})

	IdentifiersTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yarasynth_identifiers_truncated_total",
		Help: "Total number of identifiers dropped to honor max_identifiers.",
	})

	RuleIdentifiers = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yarasynth_rule_identifiers",
		Help:    "Number of identifiers per emitted rule.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"kind"})

	PackageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yarasynth_package_seconds",
		Help:    "Time spent processing one package job.",
		Buckets: prometheus.DefBuckets,
	})

	JobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yarasynth_job_queue_depth",
		Help: "Current number of package jobs buffered in the queue.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yarasynth_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
