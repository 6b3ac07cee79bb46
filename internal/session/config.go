package session

import (
	"fmt"
	"time"
)

// Defaults applied when a Config field is left at its zero value.
const (
	DefaultMaxAttempts     = 3
	DefaultPassThreshold   = 0.6
	DefaultResponseTimeout = 300 * time.Second
	DefaultScanWindow      = 50
)

// MasteryScores are the per-attempt scores emitted by the mastery tracker.
type MasteryScores struct {
	FirstTry  float64 `json:"first_try" yaml:"first_try"`
	Retry     float64 `json:"retry" yaml:"retry"`
	Incorrect float64 `json:"incorrect" yaml:"incorrect"`
}

// DefaultMasteryScores returns the 1.0 / 0.7 / 0.3 buckets.
func DefaultMasteryScores() MasteryScores {
	return MasteryScores{FirstTry: 1.0, Retry: 0.7, Incorrect: 0.3}
}

// Config holds the per-session tuning knobs fixed at session creation.
type Config struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts"`
	PassThreshold   float64       `json:"pass_threshold" yaml:"pass_threshold"`
	Scores          MasteryScores `json:"scores" yaml:"scores"`
	ResponseTimeout time.Duration `json:"response_timeout" yaml:"response_timeout"`

	// NoTimeout disables server-side expiry of pending requests.
	NoTimeout bool `json:"no_timeout,omitempty" yaml:"no_timeout"`

	// LegacyScan switches response lookup from the keyed inbox to a
	// newest-first scan of the delivery log.
	LegacyScan bool `json:"legacy_scan,omitempty" yaml:"legacy_scan"`
	ScanWindow int  `json:"scan_window,omitempty" yaml:"scan_window"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = DefaultPassThreshold
	}
	if c.Scores == (MasteryScores{}) {
		c.Scores = DefaultMasteryScores()
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.ScanWindow <= 0 {
		c.ScanWindow = DefaultScanWindow
	}
	return c
}

// Validate rejects values outside their meaningful range.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.PassThreshold <= 0 || c.PassThreshold > 1 {
		return fmt.Errorf("pass threshold must be in (0, 1], got %v", c.PassThreshold)
	}
	for name, v := range map[string]float64{
		"first_try": c.Scores.FirstTry,
		"retry":     c.Scores.Retry,
		"incorrect": c.Scores.Incorrect,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("mastery score %s must be in [0, 1], got %v", name, v)
		}
	}
	return nil
}

// Expired reports whether a request issued at issuedAt has timed out.
func (c Config) Expired(issuedAt, now time.Time) bool {
	if c.NoTimeout || c.ResponseTimeout <= 0 {
		return false
	}
	return now.Sub(issuedAt) > c.ResponseTimeout
}
