package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	apiRequestsTotal       *prometheus.CounterVec
	apiLatencySeconds      *prometheus.HistogramVec
	apiErrorsTotal         *prometheus.CounterVec
	statusTransitionsTotal *prometheus.CounterVec
	conflictChecksTotal    *prometheus.CounterVec
	committeeVotesTotal    *prometheus.CounterVec
	scoreBatchesTotal      *prometheus.CounterVec
	transitionEventsTotal  *prometheus.CounterVec
	realtimeClientsActive  prometheus.Gauge
	scoreBatchRecordsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the approval API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_requests_total",
			Help: "Total number of approval API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "approval_latency_seconds",
			Help:    "Latency distribution for approval API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "approval_errors_total",
			Help: "Total number of error responses returned by approval endpoints.",
		}, []string{"method", "route", "status"})

		statusTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "status_transitions_total",
			Help: "Committed application status transitions.",
		}, []string{"from", "to"})

		conflictChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conflict_checks_total",
			Help: "Conflict pre-checks by outcome.",
		}, []string{"outcome"})

		committeeVotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "committee_votes_total",
			Help: "Committee votes accepted, by vote value.",
		}, []string{"vote"})

		scoreBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "score_batches_total",
			Help: "Bulk score batches by result.",
		}, []string{"result"})

		scoreBatchRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "score_batch_records_total",
			Help: "Score records seen by bulk updates, split into updated and not_found.",
		}, []string{"partition"})

		transitionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transition_events_total",
			Help: "Status transition events published or received, by source.",
		}, []string{"source"})

		realtimeClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_clients_active",
			Help: "Websocket clients subscribed to application status events.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			statusTransitionsTotal,
			conflictChecksTotal,
			committeeVotesTotal,
			scoreBatchesTotal,
			scoreBatchRecordsTotal,
			transitionEventsTotal,
			realtimeClientsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// StatusTransitions exposes the committed transition counter.
func StatusTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return statusTransitionsTotal
}

// ConflictChecks exposes the conflict pre-check counter.
func ConflictChecks() *prometheus.CounterVec {
	RegisterMetrics()
	return conflictChecksTotal
}

// CommitteeVotes exposes the accepted vote counter.
func CommitteeVotes() *prometheus.CounterVec {
	RegisterMetrics()
	return committeeVotesTotal
}

// ScoreBatches exposes the bulk score batch counter.
func ScoreBatches() *prometheus.CounterVec {
	RegisterMetrics()
	return scoreBatchesTotal
}

// ScoreBatchRecords exposes the per-record partition counter.
func ScoreBatchRecords() *prometheus.CounterVec {
	RegisterMetrics()
	return scoreBatchRecordsTotal
}

// TransitionEvents exposes the transition event counter.
func TransitionEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionEventsTotal
}

// RealtimeClientsActive exposes the websocket subscriber gauge.
func RealtimeClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return realtimeClientsActive
}
