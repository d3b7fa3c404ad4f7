package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golddust/internal/backend"
	"golddust/internal/config"
	"golddust/internal/health"
	"golddust/internal/history"
	"golddust/internal/router"
)

func newTestServer(t *testing.T, primary, fallback bool, monitor *health.Monitor) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Backends = config.BackendsConfig{PrimaryEnabled: primary, FallbackEnabled: fallback}
	cfg.Server.EventInterval = 10 * time.Millisecond

	hist, err := history.New(cfg.Server.HistorySize, cfg.Server.HistoryTTL)
	require.NoError(t, err)
	t.Cleanup(hist.Close)

	var provider health.Provider
	if monitor != nil {
		provider = monitor
		cfg.Health.Mode = config.HealthModeMonitor
	}
	rt := router.New(cfg.Backends, provider, zerolog.Nop())

	s := New(cfg, rt, hist, monitor, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, rawURL string, v any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

type routeBody struct {
	DecisionID string          `json:"decisionId"`
	Target     string          `json:"target"`
	Tier       string          `json:"tier"`
	Backend    *backend.Health `json:"backend"`
	Error      string          `json:"error"`
}

func TestHandleStatus(t *testing.T) {
	_, ts := newTestServer(t, true, false, nil)

	var body struct {
		Backends []backend.Health `json:"backends"`
		Lines    []string         `json:"lines"`
	}
	status := getJSON(t, ts.URL+"/status", &body)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Backends, 3)
	assert.Equal(t, "PrimaryRelay: enabled (oxen-node-1, 55.0ms, 2.0% failures)", body.Lines[0])
	assert.True(t, strings.HasPrefix(body.Lines[2], "FallbackExit: disabled"))
}

func TestHandleRoute(t *testing.T) {
	_, ts := newTestServer(t, true, true, nil)

	var body routeBody
	status := getJSON(t, ts.URL+"/route?target="+url.QueryEscape("example.com:443"), &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "example.com:443", body.Target)
	assert.Equal(t, "primary", body.Tier)
	require.NotNil(t, body.Backend)
	assert.Equal(t, "oxen-node-1", body.Backend.Name)
	assert.NotEmpty(t, body.DecisionID)

	var d history.Decision
	status = getJSON(t, ts.URL+"/decisions/"+body.DecisionID, &d)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "example.com:443", d.Target)
	assert.True(t, d.OK())
}

func TestHandleRoute_NoBackend(t *testing.T) {
	_, ts := newTestServer(t, false, false, nil)

	var body routeBody
	status := getJSON(t, ts.URL+"/route?target=example.com:443", &body)

	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Nil(t, body.Backend)
	assert.Equal(t, "no enabled backends available", body.Error)

	var decisions []history.Decision
	getJSON(t, ts.URL+"/decisions", &decisions)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].OK())
}

func TestHandleRoute_MissingTarget(t *testing.T) {
	_, ts := newTestServer(t, true, true, nil)

	var body errorResponse
	status := getJSON(t, ts.URL+"/route", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error, "target")
}

func TestHandleDecisions(t *testing.T) {
	_, ts := newTestServer(t, false, true, nil)

	var empty []history.Decision
	getJSON(t, ts.URL+"/decisions", &empty)
	assert.Empty(t, empty)

	for _, tgt := range []string{"a:1", "b:2"} {
		var body routeBody
		getJSON(t, ts.URL+"/route?target="+tgt, &body)
	}

	var decisions []history.Decision
	status := getJSON(t, ts.URL+"/decisions", &decisions)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, decisions, 2)
	assert.Equal(t, "tor-exit-1", decisions[0].Backend.Name)

	var notFound errorResponse
	status = getJSON(t, ts.URL+"/decisions/nope", &notFound)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleHealthz(t *testing.T) {
	_, ts := newTestServer(t, true, true, nil)

	var body healthzResponse
	status := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "static", body.HealthMode)
	assert.Nil(t, body.MonitorUpdatedAt)

	m, err := health.NewMonitor(nil, nil, config.Default().Health, zerolog.Nop())
	require.NoError(t, err)
	_, ts = newTestServer(t, true, true, m)

	body = healthzResponse{}
	getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, "monitor", body.HealthMode)
	assert.NotNil(t, body.MonitorUpdatedAt)
}

func TestEvents_StreamsStatus(t *testing.T) {
	_, ts := newTestServer(t, true, true, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var snap backend.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		require.Len(t, snap.Backends, 3)
		assert.Equal(t, "oxen-node-1", snap.Backends[0].Name)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	hist, err := history.New(cfg.Server.HistorySize, cfg.Server.HistoryTTL)
	require.NoError(t, err)
	defer hist.Close()

	s := New(cfg, router.New(cfg.Backends, nil, zerolog.Nop()), hist, nil, zerolog.Nop())
	assert.Nil(t, s.Addr())
	require.NoError(t, s.Start())

	var body healthzResponse
	status := getJSON(t, "http://"+s.Addr().String()+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStop_ClosesEventStreams(t *testing.T) {
	s, ts := newTestServer(t, true, true, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var snap backend.Snapshot
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&snap))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	for {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
