package coffeescript

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Invocation describes one coffeelint run.
type Invocation struct {
	Executable string   // Resolved coffeelint (or command override) path
	PrefixArgs []string // Arguments placed before coffeelint's own flags
	ConfigFile string   // coffeelint.json to pass with -f, empty for none
	Dir        string   // Working directory for the process
}

// Args builds the argument vector for linting sourcePath.
func (inv Invocation) Args(sourcePath string) []string {
	args := append([]string{}, inv.PrefixArgs...)
	args = append(args, "--color=never")
	if inv.ConfigFile != "" {
		args = append(args, "-f", inv.ConfigFile)
	}
	return append(args, "--reporter", "jslint", sourcePath)
}

// invoke stages source in a temporary file, runs coffeelint on it and
// returns its report. A false success means output holds the failure text.
// The temporary file never outlives the call.
func (l *CoffeeScriptLinter) invoke(ctx context.Context, inv Invocation, source []byte) (success bool, output string) {
	tmp, err := stageSource(source)
	if err != nil {
		log.Errorf("Failed to stage buffer: %v", err)
		return false, err.Error()
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			log.Warningf("Failed to remove %s: %v", tmp, err)
		}
	}()

	if timeout := l.config.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout, stderr, exitCode, err := l.run(ctx, inv.Dir, inv.Executable, inv.Args(tmp)...)
	if err != nil {
		log.Errorf("Problem running %s: %v", inv.Executable, err)
		if ctx.Err() == context.DeadlineExceeded {
			return false, fmt.Sprintf("timed out after %s", l.config.timeout())
		}
		return false, err.Error()
	}

	// coffeelint exits non-zero whenever it reports errors, so only stderr
	// signals a failed run.
	if len(stderr) > 0 {
		text := string(stderr)
		log.Errorf("Error returned from coffeelint: %s", strings.TrimSpace(text))
		return false, text
	}

	log.Debugf("coffeelint exited with status %d", exitCode)
	return true, string(stdout)
}

// stageSource writes source to a new, uniquely named .coffee file.
func stageSource(source []byte) (string, error) {
	f, err := os.CreateTemp("", "koffeelint-*"+sourceExt)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(source); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return name, nil
}
