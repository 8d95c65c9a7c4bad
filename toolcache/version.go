package toolcache

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/jrossi/koffeelint/linters"
)

var versionRe = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?([-+][0-9A-Za-z.-]+)?`)

// ParseVersion extracts the first version number from tool output
func ParseVersion(output string) (*semver.Version, error) {
	match := versionRe.FindString(strings.TrimSpace(output))
	if match == "" {
		return nil, fmt.Errorf("no version in %q", output)
	}
	return semver.NewVersion(match)
}

// DetectVersion runs the tool with --version and records the result on tool.
// prefix holds any arguments that must precede the tool's own flags.
func (c *CacheManager) DetectVersion(ctx context.Context, run linters.RunFunc, tool *ToolInfo, prefix ...string) (*semver.Version, error) {
	if !tool.Available {
		return nil, fmt.Errorf("%s is not available", tool.Name)
	}

	c.mu.RLock()
	v := tool.SemVer
	c.mu.RUnlock()
	if v != nil {
		return v, nil
	}

	args := append(append([]string{}, prefix...), "--version")
	stdout, stderr, _, err := run(ctx, "", tool.Path, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s --version: %w", tool.Path, err)
	}

	raw := strings.TrimSpace(string(stdout))
	if raw == "" {
		raw = strings.TrimSpace(string(stderr))
	}
	v, err = ParseVersion(raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	tool.Version = raw
	tool.SemVer = v
	c.mu.Unlock()
	return v, nil
}

// CheckMinVersion warns once when tool is older than minVersion. An empty
// minVersion disables the check.
func (c *CacheManager) CheckMinVersion(ctx context.Context, run linters.RunFunc, tool *ToolInfo, minVersion string, prefix ...string) error {
	if minVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minVersion, err)
	}

	v, err := c.DetectVersion(ctx, run, tool, prefix...)
	if err != nil {
		c.complainer.Warn(fmt.Sprintf("could not determine %s version: %v", tool.Name, err))
		return nil
	}
	if !constraint.Check(v) {
		c.complainer.Warn(fmt.Sprintf("%s %s is older than the required %s", tool.Name, v, minVersion))
	}
	return nil
}
