package config

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration read from text such as "750ms" or "10s".
// It carries the server shutdown grace period and the per-request timeout
// applied to each detector and anonymizer call.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler. Negative values are
// rejected.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Context returns a child of parent that expires after d.
func (d Duration) Context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d.Duration())
}

// requirePositive reports a zero duration as ErrInvalid naming setting.
func (d Duration) requirePositive(setting string) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, setting)
	}
	return nil
}

// Secret holds the detector API key. It prints and serializes as
// "[REDACTED]" so a logged or dumped config never carries the key.
type Secret string

// String returns "[REDACTED]", or "" when unset.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the key itself.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a key was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

// Authorization returns the bearer header value for the key, or "" when
// no key is set.
func (s Secret) Authorization() string {
	if !s.IsSet() {
		return ""
	}
	return "Bearer " + string(s)
}

// MarshalJSON implements json.Marshaler with the redacted form.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalText implements encoding.TextMarshaler with the redacted form.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText stores the raw key.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
