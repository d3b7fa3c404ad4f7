package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"golddust/internal/backend"
	"golddust/internal/router"
)

// Format is an output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// RouteResult is the machine-readable outcome of a route request
type RouteResult struct {
	Target  string          `json:"target" yaml:"target"`
	Backend *backend.Health `json:"backend,omitempty" yaml:"backend,omitempty"`
	Tier    string          `json:"tier,omitempty" yaml:"tier,omitempty"`
	Error   string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewRouteResult builds a RouteResult from a selection outcome
func NewRouteResult(target string, choice backend.Choice, err error) RouteResult {
	res := RouteResult{Target: target}
	if err != nil {
		res.Error = reason(err)
		return res
	}
	b := choice.Backend
	res.Backend = &b
	res.Tier = b.Kind.Tier()
	return res
}

// StatusLine renders one backend as "<Kind>: enabled|disabled (<name>, <latency>ms, <failure>% failures)"
func StatusLine(h backend.Health) string {
	state := "disabled"
	if h.Enabled {
		state = "enabled"
	}
	return fmt.Sprintf("%s: %s (%s, %.1fms, %.1f%% failures)",
		h.Kind, state, h.Name, h.LatencyMs, h.FailureRate*100)
}

// StatusLines renders every backend of a snapshot, one line each
func StatusLines(s backend.Snapshot) []string {
	lines := make([]string, 0, len(s.Backends))
	for _, b := range s.Backends {
		lines = append(lines, StatusLine(b))
	}
	return lines
}

// RouteLine renders the outcome of a route request for humans
func RouteLine(target string, choice backend.Choice, err error) string {
	if err != nil {
		return fmt.Sprintf("No backend available for %s: %s", target, reason(err))
	}
	b := choice.Backend
	return fmt.Sprintf("Gold Dust VPN would route %s via %s (%s) using %s.",
		target, b.Kind.Network(), b.Kind.Tier(), b.Name)
}

// WriteStatus writes a snapshot in the given format
func WriteStatus(w io.Writer, format Format, s backend.Snapshot) error {
	if format == FormatText {
		return writeLines(w, StatusLines(s))
	}
	return encode(w, format, s)
}

// WriteRoute writes a route outcome in the given format
func WriteRoute(w io.Writer, format Format, target string, choice backend.Choice, err error) error {
	if format == FormatText {
		return writeLines(w, []string{RouteLine(target, choice, err)})
	}
	return encode(w, format, NewRouteResult(target, choice, err))
}

// encode writes v as JSON or YAML
func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// reason extracts the human reason from a selection error
func reason(err error) string {
	var nba *router.NoBackendAvailableError
	if errors.As(err, &nba) {
		return nba.Reason
	}
	return err.Error()
}
