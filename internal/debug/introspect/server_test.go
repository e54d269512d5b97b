package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/outqueue"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
	"github.com/dep2p/go-edgeproxy/pkg/types"
)

type fixture struct {
	reg     *registry.Registry
	idx     *spatial.Index
	counter *metrics.BandwidthCounter
	coord   *lifecycle.Coordinator
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.New(registry.DefaultConfig())
	require.NoError(t, err)
	idx, err := spatial.NewIndex(spatial.DefaultConfig(), reg)
	require.NoError(t, err)

	f := &fixture{
		reg:     reg,
		idx:     idx,
		counter: metrics.NewBandwidthCounter(),
		coord:   lifecycle.NewCoordinator(),
	}
	s := New(Config{
		Registry:    reg,
		Index:       idx,
		Counter:     f.counter,
		Coordinator: f.coord,
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.Equal(t, DefaultAddr, server.config.Addr)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.Addr())
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)

	addr := server.Addr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	// 重复启动无效
	require.NoError(t, server.Start(ctx))

	resp, err := http.Get("http://" + addr + "/debug/introspect/runtime")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop())
	assert.False(t, server.running)
	require.NoError(t, server.Stop())
}

func TestServer_HealthFollowsPhase(t *testing.T) {
	f := newFixture(t)

	var h HealthResponse
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, f.srv.URL+"/health", &h))
	assert.Equal(t, "starting", h.Status)
	assert.Equal(t, "created", h.Phase)

	f.coord.AdvanceTo(lifecycle.PhaseServing)
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/health", &h))
	assert.Equal(t, "ok", h.Status)

	f.coord.AdvanceTo(lifecycle.PhaseDraining)
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, f.srv.URL+"/health", &h))
	assert.Equal(t, "unavailable", h.Status)
	assert.Equal(t, "draining", h.Phase)
}

func TestServer_HealthWithoutCoordinator(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	var h HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &h))
	assert.Equal(t, "degraded", h.Status)
	assert.NotEmpty(t, h.Uptime)
}

func TestServer_Connections(t *testing.T) {
	f := newFixture(t)

	a, err := f.reg.Register("10.0.0.1:1000", outqueue.New(4))
	require.NoError(t, err)
	require.True(t, f.reg.Activate(a.ID()))
	require.True(t, f.reg.UpdatePosition(a.ID(), types.Point{1, 2, 3}))
	require.True(t, f.reg.Subscribe(a.ID(), "lobby"))

	b, err := f.reg.Register("10.0.0.2:2000", outqueue.New(4))
	require.NoError(t, err)

	var info ConnectionInfo
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/debug/introspect/connections", &info))
	assert.Equal(t, 2, info.Total)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 1, info.ByState[types.StateActive.String()])
	assert.Equal(t, 1, info.ByState[types.StateConnecting.String()])
	require.Len(t, info.List, 2)

	assert.Equal(t, uint64(a.ID()), info.List[0].ID)
	assert.Equal(t, "10.0.0.1:1000", info.List[0].RemoteAddr)
	require.NotNil(t, info.List[0].Position)
	assert.Equal(t, [3]float64{1, 2, 3}, *info.List[0].Position)
	assert.Equal(t, 4, info.List[0].QueueCapacity)

	assert.Equal(t, uint64(b.ID()), info.List[1].ID)
	assert.Nil(t, info.List[1].Position)
}

func TestServer_Spatial(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		c, err := f.reg.Register("10.0.0.1:1", outqueue.New(4))
		require.NoError(t, err)
		require.True(t, f.reg.Activate(c.ID()))
		require.True(t, f.reg.UpdatePosition(c.ID(), types.Point{float64(i), 0, 0}))
	}
	require.NoError(t, f.idx.Rebuild(context.Background()))

	var info SpatialInfo
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/debug/introspect/spatial", &info))
	assert.Equal(t, 3, info.Size)
	assert.Equal(t, int64(1), info.Rebuilds)
	assert.Zero(t, info.Failures)
	assert.False(t, info.BuiltAt.IsZero())
}

func TestServer_Bandwidth(t *testing.T) {
	f := newFixture(t)
	f.counter.IngressPacket(100)
	f.counter.EgressBatch(2, 50)

	var st metrics.Stats
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/debug/introspect/bandwidth", &st))
	assert.Equal(t, int64(100), st.TotalIn)
	assert.Equal(t, int64(50), st.TotalOut)
	assert.Equal(t, int64(1), st.PacketsIn)
	assert.Equal(t, int64(2), st.PacketsOut)
}

func TestServer_MissingComponents(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	for _, path := range []string{
		"/debug/introspect/connections",
		"/debug/introspect/spatial",
		"/debug/introspect/bandwidth",
	} {
		var body map[string]string
		assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+path, &body), path)
		assert.NotEmpty(t, body["error"], path)
	}

	var resp IntrospectResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/debug/introspect", &resp))
	assert.Nil(t, resp.Connections)
	assert.Nil(t, resp.Spatial)
	assert.NotNil(t, resp.Runtime)
}

func TestServer_FullReport(t *testing.T) {
	f := newFixture(t)
	f.coord.AdvanceTo(lifecycle.PhaseServing)
	_, err := f.reg.Register("10.0.0.1:1", outqueue.New(4))
	require.NoError(t, err)

	var resp IntrospectResponse
	assert.Equal(t, http.StatusOK, getJSON(t, f.srv.URL+"/debug/introspect", &resp))
	assert.Equal(t, "serving", resp.Phase)
	require.NotNil(t, resp.Connections)
	assert.Equal(t, 1, resp.Connections.Total)
	assert.Empty(t, resp.Connections.List)
	assert.NotNil(t, resp.Spatial)
	assert.NotNil(t, resp.Bandwidth)
	assert.Greater(t, resp.Runtime.NumGoroutine, 0)
}

func TestServer_CustomHandlers(t *testing.T) {
	s := New(Config{
		CustomHandlers: map[string]http.HandlerFunc{
			"/custom": func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("custom response"))
			},
		},
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/custom")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "custom response", string(body))
}

func TestServer_PprofEndpoint(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "goroutine"))
}

func TestConfigFromUnified(t *testing.T) {
	cfg := config.NewConfig()
	assert.Nil(t, ConfigFromUnified(cfg))
	assert.Nil(t, ConfigFromUnified(nil))

	cfg.Diagnostics.EnableIntrospect = true
	cfg.Diagnostics.IntrospectAddr = ""
	c := ConfigFromUnified(cfg)
	require.NotNil(t, c)
	assert.Equal(t, DefaultAddr, c.Addr)

	assert.Nil(t, NewFromParams(Params{UnifiedCfg: config.NewConfig()}))
}
