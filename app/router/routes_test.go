package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/outreach-orchestrator/config"
	"github.com/amirphl/outreach-orchestrator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Server: config.ServerConfig{
			TrustedProxies: []string{"10.0.0.1"},
			ProxyHeader:    "X-Real-IP",
		},
		Deployment: config.DeploymentConfig{
			Version:    "1.2.3",
			CommitHash: "abc123",
			BuildTime:  "2026-10-18T00:00:00Z",
		},
	}
}

func TestNewFiberRouter_TrustsConfiguredProxies(t *testing.T) {
	r := NewFiberRouter(Handlers{}, testConfig(), utils.DiscardLogger())
	cfg := r.GetApp().Config()
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, []string{"10.0.0.1"}, cfg.TrustProxyConfig.Proxies)

	noProxies := testConfig()
	noProxies.Server.TrustedProxies = nil
	r = NewFiberRouter(Handlers{}, noProxies, utils.DiscardLogger())
	assert.False(t, r.GetApp().Config().TrustProxy)
}

func TestHealthCheckReportsBuild(t *testing.T) {
	r := NewFiberRouter(Handlers{}, testConfig(), utils.DiscardLogger()).(*FiberRouter)
	r.GetApp().Get("/api/v1/health", r.healthCheck)

	resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "1.2.3", body.Data["version"])
	assert.Equal(t, "abc123", body.Data["commit"])
	assert.Equal(t, "2026-10-18T00:00:00Z", body.Data["build_time"])
	assert.Equal(t, "ok", body.Data["status"])
}
