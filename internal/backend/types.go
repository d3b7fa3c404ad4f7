package backend

import (
	"fmt"
	"strings"
)

// Kind represents the backend network kind
type Kind int

const (
	// PrimaryRelay is a mix-network relay, preferred whenever enabled
	PrimaryRelay Kind = iota
	// FallbackExit is an onion-routing exit, used only in degraded mode
	FallbackExit
)

// Kinds lists every kind in preference order
var Kinds = []Kind{PrimaryRelay, FallbackExit}

// String returns the canonical kind name
func (k Kind) String() string {
	switch k {
	case PrimaryRelay:
		return "PrimaryRelay"
	case FallbackExit:
		return "FallbackExit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Network returns the network label used in human-readable output
func (k Kind) Network() string {
	switch k {
	case PrimaryRelay:
		return "OXEN"
	case FallbackExit:
		return "TOR"
	default:
		return "UNKNOWN"
	}
}

// Tier returns the preference tier name
func (k Kind) Tier() string {
	switch k {
	case PrimaryRelay:
		return "primary"
	case FallbackExit:
		return "fallback"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name or network alias to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primaryrelay", "primary", "oxen":
		return PrimaryRelay, nil
	case "fallbackexit", "fallback", "tor":
		return FallbackExit, nil
	default:
		return 0, fmt.Errorf("unknown backend kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if k != PrimaryRelay && k != FallbackExit {
		return nil, fmt.Errorf("invalid backend kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
