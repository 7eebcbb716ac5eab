// Package metrics exposes Prometheus instrumentation for the pipeline:
// per-stage/per-topic consume counters, correlator gauges, aggregator
// flush timings, and alert dispatch counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "call_dossier"

var (
	EventsConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_consumed_total",
		Help:      "Total events consumed per topic and outcome.",
	}, []string{"topic", "outcome"})

	EventsProducedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_produced_total",
		Help:      "Total events produced per topic.",
	}, []string{"topic"})

	HandlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handler_duration_seconds",
		Help:      "Stage handler processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	DLQMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dlq_messages_total",
		Help:      "Total messages routed to a dead-letter topic.",
	}, []string{"topic"})

	CorrelatorPartialsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "correlator_partials_open",
		Help:      "Number of in-flight partial call triples awaiting fusion.",
	})

	CorrelatorGapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "correlator_gaps_total",
		Help:      "Total partial triples evicted without completing (TTL expiry).",
	})

	AuditScoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_scored_total",
		Help:      "Total calls scored by compliance status.",
	}, []string{"status"})

	AggregatorFlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "aggregator_flush_duration_seconds",
		Help:      "Duration of one aggregator flush pass.",
		Buckets:   prometheus.DefBuckets,
	})

	AlertsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_dispatched_total",
		Help:      "Total alert notifications dispatched per channel and status.",
	}, []string{"channel", "status"})
)

func init() {
	prometheus.MustRegister(
		EventsConsumedTotal,
		EventsProducedTotal,
		HandlerDuration,
		DLQMessagesTotal,
		CorrelatorPartialsOpen,
		CorrelatorGapsTotal,
		AuditScoredTotal,
		AggregatorFlushDuration,
		AlertsDispatchedTotal,
	)
}
