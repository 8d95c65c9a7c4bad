package koffeelint

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// AppConfig represents the complete configuration for koffeelint
type AppConfig struct {
	// Global settings
	Parallel *ParallelConfig `json:"parallel,omitempty"`
	Timeout  *Duration       `json:"timeout,omitempty"`

	// Host preferences applied when a request carries none
	Prefs map[string]bool `json:"prefs,omitempty"`

	// Linter configurations keyed by linter name
	Linters map[string]LinterConfig `json:"linters,omitempty"`
}

// ParallelConfig controls parallel execution settings
type ParallelConfig struct {
	MaxWorkers      *int  `json:"maxWorkers,omitempty"`
	DisableParallel *bool `json:"disableParallel,omitempty"`
}

// LinterConfig represents configuration for a specific linter
type LinterConfig struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Duration is a timeout written as a Go duration string ("30s", "1m30s")
// in config files. Bare numbers are rejected.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts only duration strings
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timeout must be a duration string such as \"30s\": %w", err)
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

// MarshalJSON writes the duration in the form config files use.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// NewAppConfig creates a new AppConfig with default values
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Prefs:   make(map[string]bool),
		Linters: make(map[string]LinterConfig),
	}
}

// Merge layers other on top of c. Fields set in other win; prefs and linter
// sections are merged key by key.
func (c *AppConfig) Merge(other *AppConfig) {
	if other == nil {
		return
	}

	if other.Parallel != nil {
		if c.Parallel == nil {
			c.Parallel = &ParallelConfig{}
		}
		c.Parallel.merge(other.Parallel)
	}
	if other.Timeout != nil {
		c.Timeout = other.Timeout
	}

	if c.Prefs == nil {
		c.Prefs = make(map[string]bool)
	}
	for name, value := range other.Prefs {
		c.Prefs[name] = value
	}

	if c.Linters == nil {
		c.Linters = make(map[string]LinterConfig)
	}
	for name, section := range other.Linters {
		c.Linters[name] = c.Linters[name].overlay(section)
	}
}

func (p *ParallelConfig) merge(other *ParallelConfig) {
	if other.MaxWorkers != nil {
		p.MaxWorkers = other.MaxWorkers
	}
	if other.DisableParallel != nil {
		p.DisableParallel = other.DisableParallel
	}
}

// overlay returns lc with the fields set in other replacing its own. A linter
// config object is replaced whole, not merged.
func (lc LinterConfig) overlay(other LinterConfig) LinterConfig {
	if other.Enabled != nil {
		lc.Enabled = other.Enabled
	}
	if other.Config != nil {
		lc.Config = other.Config
	}
	return lc
}

// GetLinterConfig returns the raw "config" object of a linter section, the
// input for that linter's SetConfig.
func (c *AppConfig) GetLinterConfig(name string) (json.RawMessage, bool) {
	section := c.Linters[name]
	return section.Config, section.Config != nil
}

// IsLinterEnabled reports whether a linter may run. Linters without an
// "enabled" setting run.
func (c *AppConfig) IsLinterEnabled(name string) bool {
	section, ok := c.Linters[name]
	return !ok || section.Enabled == nil || *section.Enabled
}
