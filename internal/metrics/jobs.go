package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsDispatched counts jobs accepted at the ingest boundary, by job name.
	JobsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_dispatched_total",
			Help: "Jobs validated and dispatched to the worker, by job name",
		},
		[]string{"job"},
	)

	// JobsRejected counts jobs whose payload failed schema validation.
	JobsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_rejected_total",
			Help: "Jobs rejected at the ingest boundary, by job name",
		},
		[]string{"job"},
	)

	// GuardedUpdates counts guarded entity-store updates by target and outcome
	// (applied / already-satisfied).
	GuardedUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guarded_updates_total",
			Help: "Guarded conditional updates by target and outcome",
		},
		[]string{"target", "outcome"},
	)
)
