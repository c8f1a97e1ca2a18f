package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/canonical/elasticsearch-k8s-operator/escluster"
	"github.com/canonical/elasticsearch-k8s-operator/reconciler"
	"github.com/rs/zerolog/log"
)

// StatusSource exposes the reconciler's view for the status endpoints
type StatusSource interface {
	Status() reconciler.Status
	LastResult() reconciler.Result
}

// SeedSource exposes the membership store's view for the seeds endpoint
type SeedSource interface {
	CurrentSeeds() []string
	SeedSize() int
	IngressAddress() string
}

// HealthSource proxies the backend cluster health document
type HealthSource interface {
	Health(ctx context.Context) (*escluster.HealthInfo, error)
}

// AdminHandlers handles the operator's status/health API endpoints
type AdminHandlers struct {
	status StatusSource
	seeds  SeedSource
	health HealthSource
}

// NewAdminHandlers creates a new AdminHandlers instance
func NewAdminHandlers(status StatusSource, seeds SeedSource, health HealthSource) *AdminHandlers {
	return &AdminHandlers{
		status: status,
		seeds:  seeds,
		health: health,
	}
}

// handleStatus handles GET /admin/status
func (h *AdminHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	result := h.status.LastResult()

	response := map[string]interface{}{
		"status":      string(result.Status),
		"last_pass":   result,
		"seeds":       h.seeds.CurrentSeeds(),
		"seed_target": h.seeds.SeedSize(),
		"ingress":     h.seeds.IngressAddress(),
	}

	writeJSONResponse(w, response)
}

// handleSeeds handles GET /admin/seeds
func (h *AdminHandlers) handleSeeds(w http.ResponseWriter, r *http.Request) {
	seeds := h.seeds.CurrentSeeds()

	response := map[string]interface{}{
		"seeds":       seeds,
		"count":       len(seeds),
		"seed_target": h.seeds.SeedSize(),
		"complete":    len(seeds) >= h.seeds.SeedSize(),
	}

	writeJSONResponse(w, response)
}

// handleHealth handles GET /admin/health. It proxies the backend's own
// health document so operators see the cluster's view, not just ours;
// an unreachable backend reports as such instead of failing the endpoint.
func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.health.Health(r.Context())
	if err != nil {
		response := map[string]interface{}{
			"reachable": false,
			"error":     err.Error(),
			"status":    string(h.status.Status()),
		}
		writeJSONResponse(w, response)
		return
	}

	response := map[string]interface{}{
		"reachable":    true,
		"cluster_name": health.ClusterName,
		"color":        health.Status,
		"nodes":        health.NumberOfNodes,
		"status":       string(h.status.Status()),
	}
	writeJSONResponse(w, response)
}

// handleLiveness handles GET /healthz (no auth, for probes)
func (h *AdminHandlers) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}
