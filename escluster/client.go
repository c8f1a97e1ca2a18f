package escluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// NodesUnknown is returned by TotalLiveNodes when the backend cannot be
// queried. Callers must treat it as "skip this pass, do not mutate state".
const NodesUnknown = -1

// MinimumMasterNodesKey is the cluster-wide setting the operator converges.
const MinimumMasterNodesKey = "discovery.zen.minimum_master_nodes"

// defaultQuorumSetting is assumed when the setting is absent from the
// backend's response schema. A fresh cluster that has never had the
// setting written behaves as if it were 1.
const defaultQuorumSetting = 1

// Client queries and mutates the backend cluster over its management API.
// All calls are bounded by the request timeout; a stalled backend is
// classified as unreachable, never as a hang.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a management API client for the given base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// HealthInfo is the subset of the cluster health response the operator uses
type HealthInfo struct {
	ClusterName   string `json:"cluster_name"`
	Status        string `json:"status"`
	NumberOfNodes int    `json:"number_of_nodes"`
}

type settingsResponse struct {
	Persistent map[string]json.RawMessage `json:"persistent"`
	Transient  map[string]json.RawMessage `json:"transient"`
}

type acknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// Health fetches the cluster health document
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var health HealthInfo
	if err := c.getJSON(ctx, "/_cluster/health", &health); err != nil {
		return nil, fmt.Errorf("failed to read cluster health: %w", err)
	}
	return &health, nil
}

// TotalLiveNodes returns the number of nodes the backend currently sees.
// On any backend error it returns NodesUnknown and the error.
func (c *Client) TotalLiveNodes(ctx context.Context) (int, error) {
	health, err := c.Health(ctx)
	if err != nil {
		return NodesUnknown, err
	}
	return health.NumberOfNodes, nil
}

// CurrentQuorumSetting reads the minimum-master-nodes setting from the
// backend. A transient value shadows the persistent one. When the setting
// is entirely absent the conservative default of 1 is assumed; that is a
// degraded read, logged but not escalated.
func (c *Client) CurrentQuorumSetting(ctx context.Context) (int, error) {
	var settings settingsResponse
	if err := c.getJSON(ctx, "/_cluster/settings?flat_settings=true", &settings); err != nil {
		return NodesUnknown, fmt.Errorf("failed to read cluster settings: %w", err)
	}

	if raw, ok := settings.Transient[MinimumMasterNodesKey]; ok {
		return parseSettingValue(raw)
	}
	if raw, ok := settings.Persistent[MinimumMasterNodesKey]; ok {
		return parseSettingValue(raw)
	}

	log.Warn().
		Str("setting", MinimumMasterNodesKey).
		Int("assumed", defaultQuorumSetting).
		Msg("Quorum setting absent from backend response, assuming default")
	return defaultQuorumSetting, nil
}

// ApplyQuorumSetting writes the minimum-master-nodes setting to the
// backend's persistent settings. Idempotent: applying the same value twice
// produces the same end state and is always safe to retry.
func (c *Client) ApplyQuorumSetting(ctx context.Context, value int) error {
	if value < 1 {
		return fmt.Errorf("quorum setting must be >= 1, got %d", value)
	}

	body := map[string]map[string]int{
		"persistent": {MinimumMasterNodesKey: value},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode settings payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/_cluster/settings", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build settings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to write cluster settings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("settings write rejected: status %d: %s", resp.StatusCode, msg)
	}

	var ack acknowledgedResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("failed to decode settings response: %w", err)
	}
	if !ack.Acknowledged {
		return fmt.Errorf("settings write not acknowledged by backend")
	}

	log.Info().
		Str("setting", MinimumMasterNodesKey).
		Int("value", value).
		Msg("Applied quorum setting")
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// parseSettingValue handles both string ("4") and numeric (4) encodings
// of the setting, since the backend returns strings with flat_settings
// but other writers may have stored a number.
func parseSettingValue(raw json.RawMessage) (int, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		n, err := strconv.Atoi(asString)
		if err != nil {
			return NodesUnknown, fmt.Errorf("malformed quorum setting %q: %w", asString, err)
		}
		return n, nil
	}

	var asInt int
	if err := json.Unmarshal(raw, &asInt); err != nil {
		return NodesUnknown, fmt.Errorf("malformed quorum setting %s: %w", raw, err)
	}
	return asInt, nil
}
