package coffeescript

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// CoffeeScriptConfig holds configuration for the CoffeeScript linter
type CoffeeScriptConfig struct {
	// Tool selection
	Command    *string `json:"command,omitempty"`    // e.g. "npx coffeelint"; skips PATH discovery of coffeelint
	MinVersion *string `json:"minVersion,omitempty"` // Warn once when coffeelint is older

	// coffeelint.json handling
	ConfigFile     *string `json:"configFile,omitempty"`     // Force a specific coffeelint.json
	ValidateConfig *bool   `json:"validateConfig,omitempty"` // Check coffeelint.json before running

	// Request gating
	PrefName *string `json:"prefName,omitempty"` // Host preference that enables linting

	// Performance and limits
	MaxFileSize *int64    `json:"maxFileSize,omitempty"`
	Timeout     *Duration `json:"timeout,omitempty"` // 0 means no timeout
}

// Duration wraps time.Duration for JSON marshaling
type Duration struct {
	time.Duration
}

// DefaultCoffeeScriptConfig returns the default configuration for CoffeeScript linting
func DefaultCoffeeScriptConfig() *CoffeeScriptConfig {
	prefName := DefaultPrefName
	validate := false

	return &CoffeeScriptConfig{
		PrefName:       &prefName,
		ValidateConfig: &validate,
	}
}

// merge fills unset fields from defaults
func (c *CoffeeScriptConfig) merge(defaults *CoffeeScriptConfig) {
	if c.PrefName == nil {
		c.PrefName = defaults.PrefName
	}
	if c.ValidateConfig == nil {
		c.ValidateConfig = defaults.ValidateConfig
	}
}

func (c *CoffeeScriptConfig) prefName() string {
	if c.PrefName == nil || *c.PrefName == "" {
		return DefaultPrefName
	}
	return *c.PrefName
}

func (c *CoffeeScriptConfig) timeout() time.Duration {
	if c.Timeout == nil {
		return 0
	}
	return c.Timeout.Duration
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// UnmarshalJSON implements json.Unmarshaler for Duration
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
}

// MarshalJSON implements json.Marshaler for Duration
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}
