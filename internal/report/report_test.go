package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"golddust/internal/backend"
	"golddust/internal/router"
)

var snapshot = backend.Snapshot{Backends: []backend.Health{
	{Name: "oxen-node-1", Kind: backend.PrimaryRelay, LatencyMs: 55, FailureRate: 0.02, Enabled: true},
	{Name: "oxen-node-2", Kind: backend.PrimaryRelay, LatencyMs: 70, FailureRate: 0.04, Enabled: true},
	{Name: "tor-exit-1", Kind: backend.FallbackExit, LatencyMs: 250, FailureRate: 0.01, Enabled: false},
}}

var oxenChoice = backend.Choice{Target: "example.com:443", Backend: snapshot.Backends[0]}

func TestStatusLines(t *testing.T) {
	lines := StatusLines(snapshot)
	assert.Equal(t, []string{
		"PrimaryRelay: enabled (oxen-node-1, 55.0ms, 2.0% failures)",
		"PrimaryRelay: enabled (oxen-node-2, 70.0ms, 4.0% failures)",
		"FallbackExit: disabled (tor-exit-1, 250.0ms, 1.0% failures)",
	}, lines)
}

func TestRouteLine(t *testing.T) {
	assert.Equal(t,
		"Gold Dust VPN would route example.com:443 via OXEN (primary) using oxen-node-1.",
		RouteLine("example.com:443", oxenChoice, nil))

	torChoice := backend.Choice{Target: "example.com:443", Backend: snapshot.Backends[2]}
	assert.Equal(t,
		"Gold Dust VPN would route example.com:443 via TOR (fallback) using tor-exit-1.",
		RouteLine("example.com:443", torChoice, nil))

	err := &router.NoBackendAvailableError{Target: "example.com:443", Reason: "no enabled backends available"}
	assert.Equal(t,
		"No backend available for example.com:443: no enabled backends available",
		RouteLine("example.com:443", backend.Choice{}, err))

	assert.Equal(t,
		"No backend available for x: boom",
		RouteLine("x", backend.Choice{}, errors.New("boom")))
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "JSON", "yaml"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteStatus_Formats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, FormatText, snapshot))
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))

	buf.Reset()
	require.NoError(t, WriteStatus(&buf, FormatJSON, snapshot))
	var fromJSON backend.Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, snapshot.Backends, fromJSON.Backends)

	buf.Reset()
	require.NoError(t, WriteStatus(&buf, FormatYAML, snapshot))
	assert.Contains(t, buf.String(), "kind: PrimaryRelay")
	var fromYAML backend.Snapshot
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, snapshot.Backends, fromYAML.Backends)
}

func TestWriteRoute_Formats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoute(&buf, FormatJSON, "example.com:443", oxenChoice, nil))

	var res RouteResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, "primary", res.Tier)
	require.NotNil(t, res.Backend)
	assert.Equal(t, "oxen-node-1", res.Backend.Name)
	assert.Empty(t, res.Error)

	buf.Reset()
	err := &router.NoBackendAvailableError{Target: "example.com:443", Reason: "no enabled backends available"}
	require.NoError(t, WriteRoute(&buf, FormatYAML, "example.com:443", backend.Choice{}, err))
	assert.Contains(t, buf.String(), "error: no enabled backends available")
	assert.NotContains(t, buf.String(), "backend:")
}

func TestEncode_Unsupported(t *testing.T) {
	assert.Error(t, encode(&bytes.Buffer{}, Format("xml"), snapshot))
}
