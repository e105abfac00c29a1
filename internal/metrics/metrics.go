package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActivationsTotal counts activation requests by outcome
	// (admitted, already_known, limit_reached, expired, invalid_key, error).
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Subsystem: "protocol",
		Name:      "activations_total",
		Help:      "Activation requests by outcome.",
	}, []string{"outcome"})

	HeartbeatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Subsystem: "protocol",
		Name:      "heartbeats_total",
		Help:      "Heartbeat requests by outcome.",
	}, []string{"outcome"})

	// LicensesIssuedTotal counts licenses written, by source (invoice, manual).
	LicensesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Subsystem: "lifecycle",
		Name:      "issued_total",
		Help:      "Licenses issued by source.",
	}, []string{"source"})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "license",
		Subsystem: "lifecycle",
		Name:      "status_transitions_total",
		Help:      "License status changes by target status and cause.",
	}, []string{"to", "cause"})

	ExpirySweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "license",
		Subsystem: "lifecycle",
		Name:      "expiry_sweep_duration_seconds",
		Help:      "Duration of the periodic expiry sweep.",
		Buckets:   prometheus.DefBuckets,
	})
)
