package telemetry

// Histogram bucket definitions for different latency profiles
var (
	// ReconcileBuckets for full reconciliation passes (includes backend round trips)
	ReconcileBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	// ProbeBuckets for single backend management-API calls
	ProbeBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
)

// Reconciliation metrics
var (
	// ReconcilePassesTotal counts reconciliation passes by resulting status
	// (converged, waiting_for_members, degraded)
	ReconcilePassesTotal CounterVec = noopCounterVec{}

	// ReconcileDurationSeconds measures full reconciliation pass latency
	ReconcileDurationSeconds Histogram = NoopStat{}

	// QuorumWritesTotal counts quorum setting writes by result (success, failed)
	QuorumWritesTotal CounterVec = noopCounterVec{}

	// ProbeFailuresTotal counts backend probe failures by operation (nodes, settings)
	ProbeFailuresTotal CounterVec = noopCounterVec{}

	// ReconciliationStatus reports the current status as a one-hot gauge per state
	ReconciliationStatus GaugeVec = noopGaugeVec{}
)

// Membership metrics
var (
	// ClusterNodesObserved tracks the node count last reported by the backend
	ClusterNodesObserved Gauge = NoopStat{}

	// MembershipExpected tracks the orchestrator's view of member count (peers + self)
	MembershipExpected Gauge = NoopStat{}

	// SeedListSize tracks the current seed-host list length
	SeedListSize Gauge = NoopStat{}

	// QuorumSettingApplied tracks the last quorum setting observed on the backend
	QuorumSettingApplied Gauge = NoopStat{}

	// TopologyEventsTotal counts topology events received from the orchestrator
	TopologyEventsTotal Counter = NoopStat{}
)

// InitializeMetrics creates all metrics. Must be called after
// InitializeTelemetry; before that every metric is a noop.
func InitializeMetrics() {
	ReconcilePassesTotal = NewCounterVec(
		"reconcile_passes_total",
		"Reconciliation passes by resulting status",
		[]string{"status"},
	)
	ReconcileDurationSeconds = NewHistogramWithBuckets(
		"reconcile_duration_seconds",
		"Reconciliation pass duration in seconds",
		ReconcileBuckets,
	)
	QuorumWritesTotal = NewCounterVec(
		"quorum_writes_total",
		"Quorum setting writes by result",
		[]string{"result"},
	)
	ProbeFailuresTotal = NewCounterVec(
		"probe_failures_total",
		"Backend probe failures by operation",
		[]string{"operation"},
	)
	ReconciliationStatus = NewGaugeVec(
		"reconciliation_status",
		"Current reconciliation status (1 for the active state, 0 otherwise)",
		[]string{"status"},
	)

	ClusterNodesObserved = NewGauge(
		"cluster_nodes_observed",
		"Node count last reported by the backend cluster",
	)
	MembershipExpected = NewGauge(
		"membership_expected",
		"Member count expected by the orchestrator (peers + self)",
	)
	SeedListSize = NewGauge(
		"seed_list_size",
		"Current seed-host list length",
	)
	QuorumSettingApplied = NewGauge(
		"quorum_setting_applied",
		"Quorum setting last observed on the backend",
	)
	TopologyEventsTotal = NewCounter(
		"topology_events_total",
		"Topology events received from the orchestration layer",
	)
}
