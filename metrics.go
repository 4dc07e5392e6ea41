package atomlog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds Prometheus metrics for monitoring the commit protocol.
type metrics struct {
	// commits counts the commits won by this store
	commits prometheus.Counter

	// versionConflicts counts the commits lost to another writer
	versionConflicts prometheus.Counter

	// ambiguousOutcomes counts ledger claims reconciled through a re-read
	ambiguousOutcomes prometheus.Counter

	// recoveries counts incomplete commits repaired by the read path
	recoveries prometheus.Counter

	// incompleteCommits counts commits left complete=false because the
	// final ledger update failed
	incompleteCommits prometheus.Counter

	// commitDuration is an histogram that indicates how much time it took
	// to run the full commit protocol
	commitDuration prometheus.Histogram
}

// newMetrics initialize Prometheus metrics for monitoring the store. The
// collectors are registered on the provided registry when it is not nil
func newMetrics(namespace string, registry prometheus.Registerer) *metrics {
	z := &metrics{
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "atomlog",
			Name:      "commits_total",
			Help:      "Number of commits won by this store",
		}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "atomlog",
			Name:      "version_conflicts_total",
			Help:      "Number of commits lost to a concurrent writer",
		}),
		ambiguousOutcomes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "atomlog",
			Name:      "ambiguous_outcomes_total",
			Help:      "Number of ledger claims reconciled after an ambiguous failure",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "atomlog",
			Name:      "recoveries_total",
			Help:      "Number of incomplete commits repaired by the read path",
		}),
		incompleteCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "atomlog",
			Name:      "incomplete_commits_total",
			Help:      "Number of commits left incomplete for a later reader to recover",
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "atomlog",
			Name:      "commit_duration_seconds",
			Help:      "Time taken to run the full commit protocol",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	// Register the metrics with the provided registry
	// Make sure to register them all, otherwise, no metrics will be found
	if registry != nil {
		registry.MustRegister(z.commits)
		registry.MustRegister(z.versionConflicts)
		registry.MustRegister(z.ambiguousOutcomes)
		registry.MustRegister(z.recoveries)
		registry.MustRegister(z.incompleteCommits)
		registry.MustRegister(z.commitDuration)
	}

	return z
}
