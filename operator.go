package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canonical/elasticsearch-k8s-operator/admin"
	"github.com/canonical/elasticsearch-k8s-operator/cfg"
	"github.com/canonical/elasticsearch-k8s-operator/escluster"
	"github.com/canonical/elasticsearch-k8s-operator/membership"
	"github.com/canonical/elasticsearch-k8s-operator/notify"
	"github.com/canonical/elasticsearch-k8s-operator/orchestrator"
	"github.com/canonical/elasticsearch-k8s-operator/reconciler"
	"github.com/canonical/elasticsearch-k8s-operator/statestore"
	"github.com/canonical/elasticsearch-k8s-operator/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Str("unit", cfg.Config.UnitName).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("Elasticsearch operator - cluster membership & quorum reconciliation")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitializeMetrics()

	if handler := telemetry.GetMetricsHandler(); handler != nil {
		go serveMetrics(handler)
	}

	// Trigger hub: the topology watcher and the health ticker both feed it
	hub := notify.NewHub()

	// Connect to the orchestration layer's event bus
	log.Info().Msg("Connecting to orchestration event bus")
	watcher, err := orchestrator.NewWatcher(
		cfg.Config.Orchestrator.NATSUrl,
		cfg.Config.UnitName,
		hub,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to orchestration event bus")
		return
	}
	defer watcher.Close()

	if err := watcher.Subscribe(cfg.Config.Orchestrator.TopologySubject); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to topology events")
		return
	}

	// Leader-owned membership state
	store := membership.NewStore(
		cfg.Config.AppName,
		cfg.Config.Cluster.ServiceDomain,
		cfg.Config.Cluster.SeedSize,
		watcher,
	)

	// Optional persisted desired-state store
	if cfg.Config.State.PersistSeeds {
		log.Info().Msg("Opening desired-state store")
		seedStore, err := statestore.Open(cfg.Config.DataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open desired-state store")
			return
		}
		defer seedStore.Close()

		if err := store.AttachSeedStore(seedStore); err != nil {
			log.Warn().Err(err).Msg("Failed to restore persisted seeds, starting fresh")
		}
	}

	// Backend management API client
	timeout := time.Duration(cfg.Config.Backend.RequestTimeoutMS) * time.Millisecond
	prober := escluster.NewClient(cfg.BackendBaseURL(), timeout)

	// The reconciliation core
	rec := reconciler.New(watcher, watcher, prober, store)

	// Mirror reconciliation status into metrics between events
	collector := telemetry.NewStatusCollector(rec, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	// Admin status API
	if cfg.Config.Admin.Enabled {
		go serveAdmin(rec, store, prober)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("unit", cfg.Config.UnitName).
		Str("backend", cfg.BackendBaseURL()).
		Int("seed_size", cfg.Config.Cluster.SeedSize).
		Msg("Operator is running")

	runEventLoop(ctx, rec, hub, watcher, store)

	log.Info().Msg("Operator shut down")
}

// runEventLoop serializes reconciliation: one pass runs to completion
// per trigger, with a periodic health tick so convergence is retried
// even when no membership events arrive.
func runEventLoop(ctx context.Context, rec *reconciler.Reconciler, hub *notify.Hub, watcher *orchestrator.Watcher, store *membership.Store) {
	triggers, cancel := hub.Subscribe()
	defer cancel()

	tick := time.Duration(cfg.Config.Orchestrator.HealthTickSecond) * time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pass := func(trigger notify.Trigger) {
		store.SetIngressAddress(watcher.IngressAddress())
		rec.Reconcile(ctx, trigger)
	}

	// Initial pass so a restarted leader converges without waiting for
	// an event
	pass(notify.TriggerHealthTick)

	for {
		select {
		case trigger := <-triggers:
			pass(trigger)
		case <-ticker.C:
			pass(notify.TriggerHealthTick)
		case <-ctx.Done():
			return
		}
	}
}

func serveMetrics(handler http.Handler) {
	addr := fmt.Sprintf("%s:%d", cfg.Config.Prometheus.Address, cfg.Config.Prometheus.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	log.Info().Str("address", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}

func serveAdmin(rec *reconciler.Reconciler, store *membership.Store, prober *escluster.Client) {
	addr := fmt.Sprintf("%s:%d", cfg.Config.Admin.Address, cfg.Config.Admin.Port)
	mux := http.NewServeMux()
	admin.RegisterRoutes(mux, admin.NewAdminHandlers(rec, store, prober))

	log.Info().Str("address", addr).Msg("Serving admin API")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Admin server stopped")
	}
}
