package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/canonical/elasticsearch-k8s-operator/cfg"
	"github.com/canonical/elasticsearch-k8s-operator/escluster"
	"github.com/canonical/elasticsearch-k8s-operator/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	result reconciler.Result
}

func (f *fakeStatus) Status() reconciler.Status     { return f.result.Status }
func (f *fakeStatus) LastResult() reconciler.Result { return f.result }

type fakeSeeds struct {
	seeds   []string
	size    int
	ingress string
}

func (f *fakeSeeds) CurrentSeeds() []string { return f.seeds }
func (f *fakeSeeds) SeedSize() int          { return f.size }
func (f *fakeSeeds) IngressAddress() string { return f.ingress }

type fakeHealth struct {
	health *escluster.HealthInfo
	err    error
}

func (f *fakeHealth) Health(ctx context.Context) (*escluster.HealthInfo, error) {
	return f.health, f.err
}

func newTestServer(status *fakeStatus, seeds *fakeSeeds, health *fakeHealth) *httptest.Server {
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewAdminHandlers(status, seeds, health))
	return httptest.NewServer(mux)
}

func getJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleStatus(t *testing.T) {
	status := &fakeStatus{result: reconciler.Result{
		Status:          reconciler.StatusConverged,
		ExpectedMembers: 3,
		ObservedNodes:   3,
		Leader:          true,
	}}
	seeds := &fakeSeeds{
		seeds:   []string{"es-0.svc", "es-1.svc", "es-2.svc"},
		size:    3,
		ingress: "10.0.0.5",
	}
	srv := newTestServer(status, seeds, &fakeHealth{})
	defer srv.Close()

	body := getJSON(t, srv.URL+"/admin/status")

	assert.Equal(t, "converged", body["status"])
	assert.Equal(t, "10.0.0.5", body["ingress"])
	assert.Len(t, body["seeds"], 3)
}

func TestHandleSeeds(t *testing.T) {
	seeds := &fakeSeeds{seeds: []string{"es-0.svc"}, size: 3}
	srv := newTestServer(&fakeStatus{}, seeds, &fakeHealth{})
	defer srv.Close()

	body := getJSON(t, srv.URL+"/admin/seeds")

	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(3), body["seed_target"])
	assert.Equal(t, false, body["complete"])
}

func TestHandleHealth_Reachable(t *testing.T) {
	health := &fakeHealth{health: &escluster.HealthInfo{
		ClusterName:   "es",
		Status:        "green",
		NumberOfNodes: 3,
	}}
	status := &fakeStatus{result: reconciler.Result{Status: reconciler.StatusConverged}}
	srv := newTestServer(status, &fakeSeeds{size: 3}, health)
	defer srv.Close()

	body := getJSON(t, srv.URL+"/admin/health")

	assert.Equal(t, true, body["reachable"])
	assert.Equal(t, "green", body["color"])
	assert.Equal(t, float64(3), body["nodes"])
}

func TestHandleHealth_Unreachable(t *testing.T) {
	health := &fakeHealth{err: fmt.Errorf("connection refused")}
	status := &fakeStatus{result: reconciler.Result{Status: reconciler.StatusWaitingForMembers}}
	srv := newTestServer(status, &fakeSeeds{size: 3}, health)
	defer srv.Close()

	body := getJSON(t, srv.URL+"/admin/health")

	assert.Equal(t, false, body["reachable"])
	assert.Equal(t, "waiting_for_members", body["status"])
}

func TestLivenessUnauthenticated(t *testing.T) {
	original := cfg.Config.Admin.APISecret
	cfg.Config.Admin.APISecret = "topsecret"
	defer func() { cfg.Config.Admin.APISecret = original }()

	srv := newTestServer(&fakeStatus{}, &fakeSeeds{size: 3}, &fakeHealth{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware(t *testing.T) {
	original := cfg.Config.Admin.APISecret
	cfg.Config.Admin.APISecret = "topsecret"
	defer func() { cfg.Config.Admin.APISecret = original }()

	srv := newTestServer(&fakeStatus{}, &fakeSeeds{size: 3}, &fakeHealth{})
	defer srv.Close()

	// Missing credentials
	resp, err := http.Get(srv.URL + "/admin/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Bearer token
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/status", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Custom header
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/admin/status", nil)
	req.Header.Set("X-Operator-Secret", "topsecret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong secret
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/admin/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
