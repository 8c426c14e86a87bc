package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Swarm (task pool) metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omc_swarm_tasks_total",
			Help: "Total number of pool tasks by status",
		},
		[]string{"status"},
	)

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omc_swarm_claims_total",
			Help: "Total number of claim attempts by outcome",
		},
		[]string{"outcome"}, // "success", "conflict", "none_available"
	)

	ClaimDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omc_swarm_claim_duration_seconds",
			Help:    "Time taken to execute a claim transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	StaleClaimsReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omc_swarm_stale_claims_reclaimed_total",
			Help: "Total number of tasks returned to pending by cleanupStaleClaims",
		},
	)

	// Mode state machine metrics
	ModeTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omc_mode_transitions_total",
			Help: "Total number of mode state transitions by mode and result",
		},
		[]string{"mode", "result"},
	)

	ModeActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omc_mode_active",
			Help: "Whether a mode is currently active (1) or not (0), by mode and session",
		},
		[]string{"mode", "session_id"},
	)

	// Enforcer metrics
	EnforcerDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omc_enforcer_decisions_total",
			Help: "Total number of enforcer stop decisions by mode and blocked state",
		},
		[]string{"mode", "blocked"},
	)

	EnforcerDecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omc_enforcer_decision_duration_seconds",
			Help:    "Time taken to compute one enforcer decision",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Subagent tracker metrics
	SubagentsSpawnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omc_tracker_subagents_spawned_total",
			Help: "Total number of subagents spawned",
		},
	)

	SubagentsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omc_tracker_subagents_running",
			Help: "Current number of running subagents",
		},
	)

	SubagentsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omc_tracker_subagents_completed_total",
			Help: "Total number of subagents that finished, by outcome",
		},
		[]string{"outcome"}, // "succeeded", "failed"
	)

	InterventionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omc_tracker_interventions_total",
			Help: "Total number of suggested interventions by type",
		},
		[]string{"type"},
	)

	// Lock contention metrics
	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omc_statestore_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire a file lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockContentionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omc_statestore_lock_contention_total",
			Help: "Total number of lock acquisitions that timed out",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TasksTotal,
		ClaimsTotal,
		ClaimDuration,
		StaleClaimsReclaimed,
		ModeTransitionsTotal,
		ModeActive,
		EnforcerDecisionsTotal,
		EnforcerDecisionDuration,
		SubagentsSpawnedTotal,
		SubagentsRunning,
		SubagentsCompletedTotal,
		InterventionsTotal,
		LockWaitDuration,
		LockContentionTotal,
	)
}

// Handler returns the Prometheus HTTP handler for a /metrics endpoint. No
// subcommand of cmd/omc-hook (the dashboard included) serves it.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
