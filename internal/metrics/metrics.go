// Package metrics holds the prometheus collectors for the size pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Reconciliations counts Reconcile calls by outcome:
	// ok | no_size | not_found | error.
	Reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castingdesk",
		Subsystem: "sizes",
		Name:      "reconciliations_total",
		Help:      "Size reconciliations by outcome.",
	}, []string{"outcome"})

	// AssignmentsWritten counts child_sizes rows inserted.
	AssignmentsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "castingdesk",
		Subsystem: "sizes",
		Name:      "assignments_written_total",
		Help:      "Child size rows written by reconciliation.",
	})

	ReconcileSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "castingdesk",
		Subsystem: "sizes",
		Name:      "reconcile_duration_seconds",
		Help:      "Time spent in a reconciliation, lock wait included.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	// IntakeSubmissions counts intake form submissions by form kind
	// (child | adult) and result: ok | invalid | no_size | error.
	IntakeSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castingdesk",
		Subsystem: "intake",
		Name:      "submissions_total",
		Help:      "Intake submissions by form kind and result.",
	}, []string{"kind", "result"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		Reconciliations,
		AssignmentsWritten,
		ReconcileSeconds,
		IntakeSubmissions,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
