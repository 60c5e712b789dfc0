package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration read from YAML or COUNCIL_* variables.
// It takes Go duration syntax ("45s", "1m30s"). A bare integer in text
// form counts seconds, so COUNCIL_ORCHESTRATOR_PROVIDER_TIMEOUT=45 means 45s.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	var parsed time.Duration
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		parsed = time.Duration(secs) * time.Second
	} else if parsed, err = time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler. JSON dumps of the config
// use it as well.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// redactedSecret replaces a set Secret in every rendering.
const redactedSecret = "[REDACTED]"

// Secret holds a provider API key. Formatting, JSON and text marshaling
// render it as [REDACTED]; only Value exposes it.
type Secret string

// Value returns the raw key for the provider's auth header.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a key was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redactedSecret
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return s.masked()
}

// Format implements fmt.Formatter so no verb, %x and %q included, prints
// the raw key.
func (s Secret) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = io.WriteString(f, "Secret("+redactedSecret+")")
		return
	}
	if verb == 'q' {
		_, _ = io.WriteString(f, strconv.Quote(s.masked()))
		return
	}
	_, _ = io.WriteString(f, s.masked())
}

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.masked()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It stores the raw key.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
