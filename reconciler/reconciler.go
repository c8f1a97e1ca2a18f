package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/canonical/elasticsearch-k8s-operator/escluster"
	"github.com/canonical/elasticsearch-k8s-operator/notify"
	"github.com/canonical/elasticsearch-k8s-operator/quorum"
	"github.com/canonical/elasticsearch-k8s-operator/telemetry"
	"github.com/rs/zerolog/log"
)

// Status is the externally visible health state of one reconciliation pass
type Status string

const (
	// StatusConverged: observed backend state matches computed desired
	// state, no action pending
	StatusConverged Status = "converged"

	// StatusWaitingForMembers: the orchestrator's view of membership
	// and the backend's view have not yet agreed; self-resolving as
	// peers catch up
	StatusWaitingForMembers Status = "waiting_for_members"

	// StatusDegraded: a convergence attempt failed and will be retried
	// on the next triggering signal
	StatusDegraded Status = "degraded"
)

// Leadership is the external election oracle, queried fresh each pass
type Leadership interface {
	IsLeader() bool
}

// MemberSource supplies the orchestration layer's view of the peer group
type MemberSource interface {
	// PeerCount returns the number of peer units (excluding self)
	PeerCount() int

	// SelfIdentity returns this unit's opaque identity
	SelfIdentity() string
}

// Prober queries and mutates the live backend cluster
type Prober interface {
	TotalLiveNodes(ctx context.Context) (int, error)
	CurrentQuorumSetting(ctx context.Context) (int, error)
	ApplyQuorumSetting(ctx context.Context, value int) error
}

// Seeds is the leader-owned seed-host bootstrap state
type Seeds interface {
	CurrentSeeds() []string
	BootstrapComplete() bool
	OnPeerJoined() bool
}

// Result captures everything one reconciliation pass computed, for the
// admin/health surface.
type Result struct {
	Trigger         notify.Trigger `json:"trigger"`
	Status          Status         `json:"status"`
	Leader          bool           `json:"leader"`
	ExpectedMembers int            `json:"expected_members"`
	ObservedNodes   int            `json:"observed_nodes"` // escluster.NodesUnknown when the probe failed
	CurrentSetting  int            `json:"current_setting"`
	DesiredSetting  int            `json:"desired_setting"`
	SeedsChanged    bool           `json:"seeds_changed"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// Reconciler drives the membership/quorum control loop. One pass runs
// to completion before the next is processed; the loop is
// level-triggered, recomputing full state each time, which is what
// makes it safe to retry from scratch after any failure.
type Reconciler struct {
	leadership Leadership
	members    MemberSource
	prober     Prober
	seeds      Seeds

	mu   sync.RWMutex
	last Result
}

// New creates a reconciler over the given collaborators
func New(leadership Leadership, members MemberSource, prober Prober, seeds Seeds) *Reconciler {
	return &Reconciler{
		leadership: leadership,
		members:    members,
		prober:     prober,
		seeds:      seeds,
		last: Result{
			Status:        StatusWaitingForMembers,
			ObservedNodes: escluster.NodesUnknown,
		},
	}
}

// Reconcile runs one full pass for the given trigger and returns the
// resulting status. Never returns an error: every failure path degrades
// to a reported status and is retried on the next trigger.
func (r *Reconciler) Reconcile(ctx context.Context, trigger notify.Trigger) Status {
	start := time.Now()

	result := r.reconcile(ctx, trigger)
	result.CompletedAt = time.Now()

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	telemetry.ReconcilePassesTotal.With(string(result.Status)).Inc()
	telemetry.ReconcileDurationSeconds.Observe(time.Since(start).Seconds())

	log.Debug().
		Str("trigger", string(trigger)).
		Str("status", string(result.Status)).
		Bool("leader", result.Leader).
		Int("expected_members", result.ExpectedMembers).
		Int("observed_nodes", result.ObservedNodes).
		Msg("Reconciliation pass completed")

	return result.Status
}

func (r *Reconciler) reconcile(ctx context.Context, trigger notify.Trigger) Result {
	expected := r.members.PeerCount() + 1 // peers + self
	telemetry.MembershipExpected.Set(float64(expected))

	result := Result{
		Trigger:         trigger,
		ExpectedMembers: expected,
		ObservedNodes:   escluster.NodesUnknown,
	}

	// A follower never blocks on cluster convergence; only the leader
	// drives changes.
	if !r.leadership.IsLeader() {
		result.Status = StatusConverged
		return result
	}
	result.Leader = true

	// Seed bootstrap top-up. Growth alone does not force a structural
	// reconfiguration; SeedsChanged tells the outer layer when the
	// embedded seed list actually changed.
	if !r.seeds.BootstrapComplete() {
		result.SeedsChanged = r.seeds.OnPeerJoined()
	}

	observed, err := r.prober.TotalLiveNodes(ctx)
	if err != nil {
		telemetry.ProbeFailuresTotal.With("nodes").Inc()
		log.Warn().Err(err).Msg("Backend unreachable, skipping reconciliation pass")
		result.Status = StatusWaitingForMembers
		return result
	}
	result.ObservedNodes = observed
	telemetry.ClusterNodesObserved.Set(float64(observed))

	// Writing quorum settings against a cluster that has not converged
	// on membership risks setting quorum higher than currently
	// reachable nodes, which can make the cluster unable to elect a
	// coordinator. Never write until the views agree.
	if observed != expected {
		log.Info().
			Int("expected_members", expected).
			Int("observed_nodes", observed).
			Msg("Membership views diverge, waiting for members")
		result.Status = StatusWaitingForMembers
		return result
	}

	desired := quorum.Ideal(expected)
	result.DesiredSetting = desired

	current, err := r.prober.CurrentQuorumSetting(ctx)
	if err != nil {
		telemetry.ProbeFailuresTotal.With("settings").Inc()
		log.Warn().Err(err).Msg("Failed to read quorum setting, skipping reconciliation pass")
		result.Status = StatusWaitingForMembers
		return result
	}
	result.CurrentSetting = current
	telemetry.QuorumSettingApplied.Set(float64(current))

	if current == desired {
		result.Status = StatusConverged
		return result
	}

	if err := r.prober.ApplyQuorumSetting(ctx, desired); err != nil {
		telemetry.QuorumWritesTotal.With("failed").Inc()
		log.Error().Err(err).
			Int("desired", desired).
			Int("current", current).
			Msg("Failed to apply quorum setting")
		result.Status = StatusDegraded
		return result
	}

	telemetry.QuorumWritesTotal.With("success").Inc()
	telemetry.QuorumSettingApplied.Set(float64(desired))
	result.CurrentSetting = desired
	result.Status = StatusConverged

	log.Info().
		Int("members", expected).
		Int("previous", current).
		Int("applied", desired).
		Msg("Quorum setting converged")

	return result
}

// LastResult returns the most recent reconciliation pass result
func (r *Reconciler) LastResult() Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Status returns the most recent reconciliation status
func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last.Status
}

// StatusName implements telemetry.StatusProvider
func (r *Reconciler) StatusName() string {
	return string(r.Status())
}

// KnownStatusNames implements telemetry.StatusProvider
func (r *Reconciler) KnownStatusNames() []string {
	return []string{
		string(StatusConverged),
		string(StatusWaitingForMembers),
		string(StatusDegraded),
	}
}
