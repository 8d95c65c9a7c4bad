package koffeelint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/jrossi/koffeelint/linters"
	"github.com/jrossi/koffeelint/linters/coffeescript"
)

var log = logging.MustGetLogger("koffeelint")

// ErrNoLinter is returned for paths no enabled linter can handle
var ErrNoLinter = errors.New("no linter handles this file")

// ConfigurableLinter is a linter that accepts JSON configuration
type ConfigurableLinter interface {
	linters.Linter
	SetConfig(config []byte) error
}

// LintingEngine dispatches lint requests to the registered linters
type LintingEngine struct {
	linters  []linters.Linter
	config   *AppConfig
	defaults linters.Prefs
}

// NewLintingEngine creates a new linting engine with the default linters
func NewLintingEngine() *LintingEngine {
	return NewLintingEngineWithLinters(coffeescript.NewCoffeeScriptLinter())
}

// NewLintingEngineWithLinters creates an engine for the given linters
func NewLintingEngineWithLinters(ls ...linters.Linter) *LintingEngine {
	return &LintingEngine{
		linters: ls,
		config:  NewAppConfig(),
		defaults: linters.Prefs{
			coffeescript.DefaultPrefName: true,
		},
	}
}

// AddLinter adds a custom linter to the engine
func (e *LintingEngine) AddLinter(linter linters.Linter) {
	e.linters = append(e.linters, linter)
}

// Linters returns the registered linters
func (e *LintingEngine) Linters() []linters.Linter {
	return e.linters
}

// Config returns the active application config
func (e *LintingEngine) Config() *AppConfig {
	return e.config
}

// ApplyConfig hands each linter its section of cfg
func (e *LintingEngine) ApplyConfig(cfg *AppConfig) error {
	if cfg == nil {
		cfg = NewAppConfig()
	}
	for _, linter := range e.linters {
		configurable, ok := linter.(ConfigurableLinter)
		if !ok {
			continue
		}
		raw, ok := cfg.GetLinterConfig(linter.Name())
		if !ok {
			continue
		}
		if err := configurable.SetConfig(raw); err != nil {
			return fmt.Errorf("failed to configure %s linter: %w", linter.Name(), err)
		}
		log.Debugf("Applied %s linter config", linter.Name())
	}
	e.config = cfg
	return nil
}

// LinterFor returns the first enabled linter that handles path. Buffers
// without a path go to the first enabled linter.
func (e *LintingEngine) LinterFor(path string) (linters.Linter, bool) {
	for _, linter := range e.linters {
		if !e.config.IsLinterEnabled(linter.Name()) {
			continue
		}
		if path == "" || linter.CanHandle(path) {
			return linter, true
		}
	}
	return nil, false
}

// Prefs returns the preferences used for requests that carry none
func (e *LintingEngine) Prefs() linters.Prefs {
	prefs := make(linters.Prefs, len(e.defaults)+len(e.config.Prefs))
	for name, value := range e.defaults {
		prefs[name] = value
	}
	for name, value := range e.config.Prefs {
		prefs[name] = value
	}
	return prefs
}

// Lint runs the linter responsible for req.Path
func (e *LintingEngine) Lint(ctx context.Context, req *linters.Request) (*linters.LintResult, error) {
	if req == nil {
		return nil, fmt.Errorf("nil lint request")
	}
	linter, ok := e.LinterFor(req.Path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.Path, ErrNoLinter)
	}
	result := e.runTask(ctx, e.task(linter, req))
	return result.Result, result.Error
}

// LintAll runs every request, in parallel unless disabled, and returns
// results in request order
func (e *LintingEngine) LintAll(ctx context.Context, reqs []*linters.Request) []linters.LintTaskResult {
	results := make([]linters.LintTaskResult, len(reqs))
	var tasks []linters.LintTask
	var slots []int
	for i, req := range reqs {
		linter, ok := e.LinterFor(req.Path)
		if !ok {
			results[i] = linters.LintTaskResult{
				Path:  req.Path,
				Error: fmt.Errorf("%s: %w", req.Path, ErrNoLinter),
			}
			continue
		}
		tasks = append(tasks, e.task(linter, req))
		slots = append(slots, i)
	}

	workers := e.maxWorkers()
	if e.parallelDisabled() {
		workers = 1
	}
	executor := linters.NewParallelExecutor(workers)
	for j, result := range executor.ExecuteTasks(ctx, tasks) {
		results[slots[j]] = result
	}
	return results
}

func (e *LintingEngine) runTask(ctx context.Context, task linters.LintTask) linters.LintTaskResult {
	return linters.NewParallelExecutor(1).ExecuteTasks(ctx, []linters.LintTask{task})[0]
}

// timeoutLinter bounds every Lint call of the wrapped linter
type timeoutLinter struct {
	linters.Linter
	timeout time.Duration
}

func (t timeoutLinter) Lint(ctx context.Context, req *linters.Request) (*linters.LintResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Linter.Lint(ctx, req)
}

func (e *LintingEngine) task(linter linters.Linter, req *linters.Request) linters.LintTask {
	if timeout := e.timeout(); timeout > 0 {
		linter = timeoutLinter{Linter: linter, timeout: timeout}
	}
	return linters.LintTask{Linter: linter, Request: e.withPrefs(req)}
}

// withPrefs fills in the engine preferences for requests without any
func (e *LintingEngine) withPrefs(req *linters.Request) *linters.Request {
	if req.Prefs != nil {
		return req
	}
	withPrefs := *req
	withPrefs.Prefs = e.Prefs()
	return &withPrefs
}

func (e *LintingEngine) timeout() time.Duration {
	if e.config.Timeout == nil {
		return 0
	}
	return e.config.Timeout.Duration
}

func (e *LintingEngine) maxWorkers() int {
	if e.config.Parallel == nil || e.config.Parallel.MaxWorkers == nil {
		return 0
	}
	return *e.config.Parallel.MaxWorkers
}

func (e *LintingEngine) parallelDisabled() bool {
	return e.config.Parallel != nil && e.config.Parallel.DisableParallel != nil && *e.config.Parallel.DisableParallel
}
