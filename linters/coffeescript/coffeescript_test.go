package coffeescript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrossi/koffeelint/linters"
	"github.com/jrossi/koffeelint/toolcache"
)

const cleanReport = `<?xml version="1.0" encoding="utf-8"?><jslint><file name="x"></file></jslint>`

var enabled = linters.Prefs{DefaultPrefName: true}

type fakeCall struct {
	dir     string
	name    string
	args    []string
	source  []byte
	existed bool
}

// fakeCoffeelint stands in for the coffeelint process.
type fakeCoffeelint struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
	version  string
	block    bool

	mu    sync.Mutex
	calls []fakeCall
}

func (f *fakeCoffeelint) run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, int, error) {
	if len(args) > 0 && args[len(args)-1] == "--version" {
		return []byte(f.version), nil, 0, nil
	}

	call := fakeCall{dir: dir, name: name, args: args}
	if len(args) > 0 {
		source, err := os.ReadFile(args[len(args)-1])
		call.source = source
		call.existed = err == nil
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, nil, -1, ctx.Err()
	}
	return []byte(f.stdout), []byte(f.stderr), f.exitCode, f.err
}

func (f *fakeCoffeelint) lintCalls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

// newTestLinter returns a linter whose PATH holds a single coffeelint.
func newTestLinter(t *testing.T, fake *fakeCoffeelint, opts ...Option) (*CoffeeScriptLinter, string) {
	t.Helper()
	bin := t.TempDir()
	exe := filepath.Join(bin, ToolName)
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755))

	base := []Option{
		WithRunner(fake.run),
		WithEnv(toolcache.StaticEnv(map[string]string{"PATH": bin})),
		WithCache(toolcache.NewCacheManager(toolcache.WithGOOS("linux"))),
	}
	return NewCoffeeScriptLinter(append(base, opts...)...), exe
}

func lint(t *testing.T, l *CoffeeScriptLinter, req *linters.Request) *linters.LintResult {
	t.Helper()
	result, err := l.Lint(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestLintSuccess(t *testing.T) {
	fake := &fakeCoffeelint{
		stdout: `<?xml version="1.0" encoding="utf-8"?><jslint><file name="x">` +
			`<issue line="1" reason="[warn] trailing whitespace" evidence="foo"/>` +
			`<issue line="2" reason="[error] Missing semicolon" evidence="undefined"/>` +
			`</file></jslint>`,
		exitCode: 1,
	}
	l, exe := newTestLinter(t, fake)
	cwd := t.TempDir()

	result := lint(t, l, &linters.Request{
		Cwd:     cwd,
		Path:    filepath.Join(cwd, "a.coffee"),
		Content: "foo = 1  \n  bar()\n",
		Prefs:   enabled,
	})

	assert.False(t, result.Success)
	assert.Equal(t, []linters.Diagnostic{
		{Severity: linters.SeverityWarning, Line: 1, ColumnStart: 1, ColumnEnd: 10, Description: "trailing whitespace : foo"},
		{Severity: linters.SeverityError, Line: 2, ColumnStart: 3, ColumnEnd: 8, Description: "Missing semicolon"},
	}, result.Diagnostics)

	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, exe, call.name)
	assert.Equal(t, cwd, call.dir)
	require.Len(t, call.args, 4)
	assert.Equal(t, []string{"--color=never", "--reporter", "jslint"}, call.args[:3])
	assert.True(t, strings.HasSuffix(call.args[3], ".coffee"))
	assert.True(t, call.existed)
	assert.Equal(t, "foo = 1  \n  bar()\n", string(call.source))

	_, err := os.Stat(call.args[3])
	assert.True(t, os.IsNotExist(err), "temp file should be removed")
}

func TestLintPassesDiscoveredConfig(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)

	root := t.TempDir()
	cwd := filepath.Join(root, "src", "app")
	require.NoError(t, os.MkdirAll(cwd, 0755))
	config := filepath.Join(root, ConfigFileName)
	require.NoError(t, os.WriteFile(config, []byte(`{"max_line_length": {"value": 120}}`), 0644))

	result := lint(t, l, &linters.Request{Cwd: cwd, Content: "x = 1\n", Prefs: enabled})
	assert.True(t, result.Success)
	assert.Empty(t, result.Diagnostics)

	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	args := calls[0].args
	require.Len(t, args, 6)
	assert.Equal(t, []string{"--color=never", "-f", config, "--reporter", "jslint"}, args[:5])
}

func TestLintForcedConfigFile(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"configFile": "/etc/coffeelint.json"}`)))

	lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/etc/coffeelint.json", calls[0].args[2])
}

func TestLintNothingToDo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		prefs   linters.PrefSet
	}{
		{"empty buffer", "", enabled},
		{"preference off", "x = 1\n", linters.Prefs{DefaultPrefName: false}},
		{"no preferences", "x = 1\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCoffeelint{stdout: cleanReport}
			// No PATH at all: nothing may be resolved either
			l, _ := newTestLinter(t, fake, WithEnv(toolcache.StaticEnv(map[string]string{})))

			result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: tt.content, Prefs: tt.prefs})
			assert.True(t, result.Success)
			assert.Empty(t, result.Diagnostics)
			assert.Empty(t, fake.lintCalls())
			assert.False(t, l.cache.Complainer().Seen("can't get user path"))
		})
	}
}

func TestLintCustomPrefName(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"prefName": "coffee"}`)))

	lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	assert.Empty(t, fake.lintCalls())

	lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: linters.Prefs{"coffee": true}})
	assert.Len(t, fake.lintCalls(), 1)
}

func TestLintEnvironmentFailures(t *testing.T) {
	tests := []struct {
		name     string
		env      toolcache.EnvFunc
		content  string
		wantLine int
		wantDesc string
	}{
		{
			name:     "no PATH",
			env:      toolcache.StaticEnv(map[string]string{"HOME": "/home/me"}),
			content:  "\n\nx = 1\n",
			wantLine: 3,
			wantDesc: MsgNoPath,
		},
		{
			name:     "environment lookup fails",
			env:      func() (map[string]string, error) { return nil, errors.New("boom") },
			content:  "x = 1\n",
			wantLine: 1,
			wantDesc: MsgNoPath,
		},
		{
			name:     "coffeelint not installed",
			env:      toolcache.StaticEnv(map[string]string{"PATH": os.TempDir() + string(filepath.ListSeparator) + "/nonexistent"}),
			content:  "x = 1\n",
			wantLine: 1,
			wantDesc: MsgNoCoffeelint,
		},
		{
			name:     "blank buffer anchors on line 1",
			env:      toolcache.StaticEnv(map[string]string{}),
			content:  "\n\n\n",
			wantLine: 1,
			wantDesc: MsgNoPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCoffeelint{stdout: cleanReport}
			l, _ := newTestLinter(t, fake, WithEnv(tt.env))

			result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: tt.content, Prefs: enabled})
			assert.False(t, result.Success)
			require.Len(t, result.Diagnostics, 1)
			d := result.Diagnostics[0]
			assert.Equal(t, linters.SeverityError, d.Severity)
			assert.Equal(t, tt.wantLine, d.Line)
			assert.Equal(t, tt.wantDesc, d.Description)
			assert.Empty(t, fake.lintCalls())
		})
	}
}

func TestLintEnvironmentFailureLoggedOnce(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake, WithEnv(toolcache.StaticEnv(map[string]string{})))

	for i := 0; i < 3; i++ {
		result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
		require.Len(t, result.Diagnostics, 1, "every request reports the problem")
	}
	assert.True(t, l.cache.Complainer().Seen("can't get user path"))
	assert.False(t, l.cache.Complainer().Complain("can't get user path"))
}

func TestLintRunFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeCoffeelint
		wantDesc string
	}{
		{
			name:     "stderr output",
			fake:     &fakeCoffeelint{stdout: cleanReport, stderr: "Error: Cannot find module 'coffeelint'\n"},
			wantDesc: "Error running coffeelint: Error: Cannot find module 'coffeelint'\n",
		},
		{
			name:     "process failure",
			fake:     &fakeCoffeelint{err: errors.New("fork/exec: permission denied")},
			wantDesc: "Error running coffeelint: fork/exec: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLinter(t, tt.fake)
			result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "\nx = 1\n", Prefs: enabled})

			require.Len(t, result.Diagnostics, 1)
			d := result.Diagnostics[0]
			assert.Equal(t, linters.SeverityError, d.Severity)
			assert.Equal(t, 2, d.Line)
			assert.Equal(t, tt.wantDesc, d.Description)

			calls := tt.fake.lintCalls()
			require.Len(t, calls, 1)
			_, err := os.Stat(calls[0].args[len(calls[0].args)-1])
			assert.True(t, os.IsNotExist(err), "temp file should be removed")
		})
	}
}

func TestLintTimeout(t *testing.T) {
	fake := &fakeCoffeelint{block: true}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"timeout": "20ms"}`)))

	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "Error running coffeelint: timed out after 20ms", result.Diagnostics[0].Description)
}

func TestLintMalformedReport(t *testing.T) {
	t.Run("without config", func(t *testing.T) {
		fake := &fakeCoffeelint{stdout: "<not-xml-at-all"}
		l, _ := newTestLinter(t, fake)

		result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "\nx = 1\n", Prefs: enabled})
		require.Len(t, result.Diagnostics, 1)
		d := result.Diagnostics[0]
		assert.Equal(t, linters.SeverityError, d.Severity)
		assert.Equal(t, 1, d.Line)
		assert.Equal(t, fmt.Sprintf(MsgXMLParseError, "None"), d.Description)
	})

	t.Run("with config", func(t *testing.T) {
		fake := &fakeCoffeelint{stdout: ""}
		l, _ := newTestLinter(t, fake)
		cwd := t.TempDir()
		config := filepath.Join(cwd, ConfigFileName)
		require.NoError(t, os.WriteFile(config, []byte(`{`), 0644))

		result := lint(t, l, &linters.Request{Cwd: cwd, Content: "x = 1\n", Prefs: enabled})
		require.Len(t, result.Diagnostics, 1)
		assert.Equal(t, fmt.Sprintf(MsgXMLParseError, config), result.Diagnostics[0].Description)
	})
}

func TestLintCommandOverride(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)

	bin := t.TempDir()
	node := filepath.Join(bin, "node")
	require.NoError(t, os.WriteFile(node, []byte("#!/bin/sh\n"), 0755))
	l = NewCoffeeScriptLinter(
		WithRunner(fake.run),
		WithEnv(toolcache.StaticEnv(map[string]string{"PATH": bin})),
	)
	require.NoError(t, l.SetConfig([]byte(`{"command": "node '/opt/coffee lint/bin/coffeelint'"}`)))

	lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, node, calls[0].name)
	assert.Equal(t, []string{"/opt/coffee lint/bin/coffeelint", "--color=never", "--reporter", "jslint"}, calls[0].args[:4])
}

func TestLintAbsoluteCommand(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, exe := newTestLinter(t, fake, WithEnv(toolcache.StaticEnv(map[string]string{"PATH": "/nonexistent"})))
	require.NoError(t, l.SetConfig([]byte(fmt.Sprintf(`{"command": %q}`, exe))))

	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	assert.Empty(t, result.Diagnostics)
	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, exe, calls[0].name)
}

func TestLintBadCommand(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"command": "node 'unterminated"}`)))

	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0].Description, "Invalid coffeelint command")
	assert.Empty(t, fake.lintCalls())
}

func TestLintMaxFileSize(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"maxFileSize": 4}`)))

	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 12345\n", Prefs: enabled})
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, fmt.Sprintf(MsgFileTooLarge, 10, 4), result.Diagnostics[0].Description)
	assert.Empty(t, fake.lintCalls())
}

func TestLintValidateConfig(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"validateConfig": true}`)))

	cwd := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cwd, ConfigFileName), []byte(`{"no_tabs": {"level": "fatal"}}`), 0644))

	result := lint(t, l, &linters.Request{Cwd: cwd, Content: "x = 1\n", Prefs: enabled})
	require.Len(t, result.Diagnostics, 1)
	d := result.Diagnostics[0]
	assert.Equal(t, linters.SeverityWarning, d.Severity)
	assert.Equal(t, 1, d.Line)
	assert.Contains(t, d.Description, "coffeelint config problem")
	assert.True(t, result.Success)
	assert.Len(t, fake.lintCalls(), 1)
}

func TestLintMinVersion(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport, version: "1.9.0"}
	l, _ := newTestLinter(t, fake)
	require.NoError(t, l.SetConfig([]byte(`{"minVersion": "2.0.0"}`)))

	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
	assert.Empty(t, result.Diagnostics)
	assert.True(t, l.cache.Complainer().Seen("coffeelint 1.9.0 is older than the required 2.0.0"))
}

func TestLintEncoding(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)

	lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "s = 'café'\n", Encoding: "latin-1", Prefs: enabled})
	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []byte("s = 'caf\xe9'\n"), calls[0].source)
}

func TestLintUnknownEncodingFallsBack(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)

	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Content: "s = 'café'\n", Encoding: "klingon", Prefs: enabled})
	assert.Empty(t, result.Diagnostics)
	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "s = 'café'\n", string(calls[0].source))
	assert.True(t, l.cache.Complainer().Seen(fmt.Sprintf(MsgEncodingFailed, "klingon")))
}

func TestLintLiterate(t *testing.T) {
	fake := &fakeCoffeelint{
		stdout: `<jslint><issue line="5" reason="[warn] trailing whitespace" evidence="undefined"/></jslint>`,
	}
	l, _ := newTestLinter(t, fake)

	doc := "# Squares\n\nSome prose.\n\n    square = (x) -> x * x \n"
	result := lint(t, l, &linters.Request{Cwd: t.TempDir(), Path: "math.litcoffee", Content: doc, Prefs: enabled})

	calls := fake.lintCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "\n\n\n\nsquare = (x) -> x * x \n", string(calls[0].source))

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, 5, result.Diagnostics[0].Line)
	assert.Equal(t, 1, result.Diagnostics[0].ColumnStart)
}

func TestLintConcurrentRequests(t *testing.T) {
	fake := &fakeCoffeelint{stdout: cleanReport}
	l, _ := newTestLinter(t, fake)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := l.Lint(context.Background(), &linters.Request{Cwd: t.TempDir(), Content: "x = 1\n", Prefs: enabled})
			assert.NoError(t, err)
			assert.Empty(t, result.Diagnostics)
		}()
	}
	wg.Wait()

	calls := fake.lintCalls()
	require.Len(t, calls, 8)
	seen := make(map[string]bool)
	for _, call := range calls {
		path := call.args[len(call.args)-1]
		assert.False(t, seen[path], "temp names must be unique")
		seen[path] = true
	}
}

func TestLintNilRequest(t *testing.T) {
	l, _ := newTestLinter(t, &fakeCoffeelint{})
	_, err := l.Lint(context.Background(), nil)
	assert.Error(t, err)
}

func TestCanHandle(t *testing.T) {
	l := NewCoffeeScriptLinter()
	assert.Equal(t, "coffeescript", l.Name())

	tests := []struct {
		path string
		want bool
	}{
		{"app.coffee", true},
		{"APP.COFFEE", true},
		{"notes.litcoffee", true},
		{"notes.coffee.md", true},
		{"", true},
		{"Cakefile", true},
		{"/proj/Cakefile", true},
		{"/proj/Cakefile.bak", false},
		{"app.js", false},
		{"coffee", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, l.CanHandle(tt.path))
		})
	}
}

func TestResolveAndTool(t *testing.T) {
	fake := &fakeCoffeelint{version: "2.1.0\n"}
	l, exe := newTestLinter(t, fake)

	inv, tool, msg := l.Resolve()
	assert.Empty(t, msg)
	assert.Equal(t, exe, inv.Executable)
	assert.True(t, tool.Available)

	tool, inv, err := l.Tool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exe, inv.Executable)
	assert.Equal(t, "2.1.0", tool.Version)
}

func TestToolUnavailable(t *testing.T) {
	l, _ := newTestLinter(t, &fakeCoffeelint{}, WithEnv(toolcache.StaticEnv(map[string]string{"PATH": "/nonexistent"})))
	_, _, err := l.Tool(context.Background())
	assert.EqualError(t, err, MsgNoCoffeelint)
}
