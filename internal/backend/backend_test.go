package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"PrimaryRelay", PrimaryRelay},
		{"primary", PrimaryRelay},
		{" OXEN ", PrimaryRelay},
		{"FallbackExit", FallbackExit},
		{"fallback", FallbackExit},
		{"tor", FallbackExit},
	}
	for _, c := range cases {
		got, err := ParseKind(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := ParseKind("i2p")
	assert.Error(t, err)
}

func TestKindLabels(t *testing.T) {
	assert.Equal(t, "PrimaryRelay", PrimaryRelay.String())
	assert.Equal(t, "OXEN", PrimaryRelay.Network())
	assert.Equal(t, "primary", PrimaryRelay.Tier())
	assert.Equal(t, "FallbackExit", FallbackExit.String())
	assert.Equal(t, "TOR", FallbackExit.Network())
	assert.Equal(t, "fallback", FallbackExit.Tier())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Health{Name: "tor-exit-1", Kind: FallbackExit})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"FallbackExit"`)

	var h Health
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","kind":"oxen"}`), &h))
	assert.Equal(t, PrimaryRelay, h.Kind)

	_, err = json.Marshal(Kind(9))
	assert.Error(t, err)
}

func TestSnapshot_Candidates(t *testing.T) {
	s := Snapshot{Backends: []Health{
		{Name: "a", Kind: PrimaryRelay, Enabled: true},
		{Name: "b", Kind: PrimaryRelay, Enabled: false},
		{Name: "c", Kind: FallbackExit, Enabled: true},
	}}

	primary := s.Candidates(PrimaryRelay)
	require.Len(t, primary, 1)
	assert.Equal(t, "a", primary[0].Name)

	// Candidates are copies
	primary[0].Name = "mutated"
	assert.Equal(t, "a", s.Backends[0].Name)

	fallback := s.Candidates(FallbackExit)
	require.Len(t, fallback, 1)
	assert.Equal(t, "c", fallback[0].Name)

	_, ok := s.Get("c")
	assert.True(t, ok)
	_, ok = s.Get("zzz")
	assert.False(t, ok)
}

func TestSnapshot_Validate(t *testing.T) {
	ok := Snapshot{Backends: []Health{
		{Name: "a", LatencyMs: 1, FailureRate: 0},
		{Name: "b", LatencyMs: 0, FailureRate: 1},
	}}
	assert.NoError(t, ok.Validate())

	bad := Snapshot{Backends: []Health{
		{Name: "a", LatencyMs: -1},
		{Name: "a", FailureRate: 1.5},
		{Name: ""},
	}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name 'a'")
	assert.Contains(t, err.Error(), "latency must be non-negative")
	assert.Contains(t, err.Error(), "failure rate must be in [0, 1]")
	assert.Contains(t, err.Error(), "name is required")
}
