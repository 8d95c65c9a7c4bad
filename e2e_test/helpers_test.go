package e2e_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeCoffeelint answers --version and otherwise records its arguments in
// $FAKE_ARGS and prints the report at $FAKE_REPORT, exiting 1 like the real
// tool does when it finds errors.
const fakeCoffeelint = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "2.1.0"
  exit 0
fi
if [ -n "$FAKE_ARGS" ]; then
  printf '%s\n' "$@" > "$FAKE_ARGS"
fi
cat "$FAKE_REPORT"
exit 1
`

// buildTestBinary builds the koffeelint binary for testing
func buildTestBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("e2e tests use a shell script as coffeelint")
	}

	binPath := filepath.Join(t.TempDir(), "koffeelint_test")

	// Build the binary
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/koffeelint")
	cmd.Dir = ".." // Go up one directory since we're in e2e_test

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("Failed to build test binary: %v\nStderr: %s", err, stderr.String())
	}

	return binPath
}

// fakeToolDir returns a directory holding the scripted coffeelint
func fakeToolDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "coffeelint"), []byte(fakeCoffeelint), 0755); err != nil {
		t.Fatalf("Failed to write fake coffeelint: %v", err)
	}
	return dir
}

// testdataPath returns the absolute path of a file under testdata/coffee
func testdataPath(t *testing.T, parts ...string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join(append([]string{"..", "testdata", "coffee"}, parts...)...))
	if err != nil {
		t.Fatalf("Failed to resolve testdata: %v", err)
	}
	return path
}

type result struct {
	stdout   string
	stderr   string
	exitCode int
}

// runBinary executes the binary with PATH limited to pathDir and a private
// HOME so user config files are not picked up.
func runBinary(t *testing.T, binPath, pathDir, stdin string, extraEnv []string, args ...string) result {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Dir = t.TempDir()
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append([]string{
		"PATH=" + pathDir + string(os.PathListSeparator) + "/bin" + string(os.PathListSeparator) + "/usr/bin",
		"HOME=" + t.TempDir(),
		"FAKE_REPORT=" + testdataPath(t, "report.xml"),
	}, extraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	_ = cmd.Run()
	res := result{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitCode: cmd.ProcessState.ExitCode(),
	}

	t.Logf("Exit code: %d", res.exitCode)
	t.Logf("Stdout: %s", res.stdout)
	t.Logf("Stderr: %s", res.stderr)
	return res
}
