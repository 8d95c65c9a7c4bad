package koffeelint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jrossi/koffeelint/linters"
	"github.com/jrossi/koffeelint/linters/coffeescript"
	"github.com/jrossi/koffeelint/toolcache"
)

// API provides the main interface for the koffeelint library
type API struct {
	engine *LintingEngine
	coffee *coffeescript.CoffeeScriptLinter
	cache  *toolcache.CacheManager
}

// New creates a new API instance with default settings
func New() *API {
	api, err := NewBuilder().Build()
	if err != nil {
		// The default config is always accepted
		panic(err)
	}
	return api
}

// Lint lints a single in-memory buffer
func (a *API) Lint(ctx context.Context, req *linters.Request) (*linters.LintResult, error) {
	return a.engine.Lint(ctx, req)
}

// LintFile reads path from disk and lints it
func (a *API) LintFile(ctx context.Context, path, encoding string) (*linters.LintResult, error) {
	req, err := FileRequest(path, encoding)
	if err != nil {
		return nil, err
	}
	return a.engine.Lint(ctx, req)
}

// LintFiles lints several files, returning results in argument order
func (a *API) LintFiles(ctx context.Context, paths []string, encoding string) []linters.LintTaskResult {
	results := make([]linters.LintTaskResult, len(paths))
	var reqs []*linters.Request
	var slots []int
	for i, path := range paths {
		req, err := FileRequest(path, encoding)
		if err != nil {
			results[i] = linters.LintTaskResult{Path: path, Error: err}
			continue
		}
		reqs = append(reqs, req)
		slots = append(slots, i)
	}
	for j, result := range a.engine.LintAll(ctx, reqs) {
		results[slots[j]] = result
	}
	return results
}

// Engine returns the underlying linting engine
func (a *API) Engine() *LintingEngine {
	return a.engine
}

// CoffeeScript returns the coffeelint adapter
func (a *API) CoffeeScript() *coffeescript.CoffeeScriptLinter {
	return a.coffee
}

// ToolCache returns the executable cache shared by the linters
func (a *API) ToolCache() *toolcache.CacheManager {
	return a.cache
}

// FileRequest builds a lint request for a file on disk. The working
// directory is the file's directory.
func FileRequest(path, encoding string) (*linters.Request, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &linters.Request{
		Cwd:      filepath.Dir(abs),
		Path:     abs,
		Content:  string(content),
		Encoding: encoding,
	}, nil
}

// Config provides configuration options for the API
type Config struct {
	Timeout   time.Duration
	AppConfig *AppConfig
}

// NewWithConfig creates a new API instance with configuration
func NewWithConfig(cfg Config) (*API, error) {
	b := NewBuilder()
	if cfg.AppConfig != nil {
		b.WithAppConfig(cfg.AppConfig)
	}
	if cfg.Timeout > 0 {
		b.WithTimeout(cfg.Timeout)
	}
	return b.Build()
}

// Builder provides a fluent interface for creating an API instance
type Builder struct {
	timeout   time.Duration
	appConfig *AppConfig
	runner    linters.RunFunc
	env       toolcache.EnvFunc
	cache     *toolcache.CacheManager
	extra     []linters.Linter
}

// NewBuilder creates a new API builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithTimeout bounds each lint request
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithAppConfig sets the application config
func (b *Builder) WithAppConfig(cfg *AppConfig) *Builder {
	b.appConfig = cfg
	return b
}

// WithRunner replaces the process runner used by the linters
func (b *Builder) WithRunner(run linters.RunFunc) *Builder {
	b.runner = run
	return b
}

// WithEnv replaces the user environment lookup
func (b *Builder) WithEnv(env toolcache.EnvFunc) *Builder {
	b.env = env
	return b
}

// WithToolCache shares an executable cache
func (b *Builder) WithToolCache(cache *toolcache.CacheManager) *Builder {
	b.cache = cache
	return b
}

// WithLinter registers an additional linter after the built-in ones
func (b *Builder) WithLinter(linter linters.Linter) *Builder {
	b.extra = append(b.extra, linter)
	return b
}

// Build creates the API instance
func (b *Builder) Build() (*API, error) {
	cache := b.cache
	if cache == nil {
		cache = toolcache.NewCacheManager()
	}

	opts := []coffeescript.Option{coffeescript.WithCache(cache)}
	if b.runner != nil {
		opts = append(opts, coffeescript.WithRunner(b.runner))
	}
	if b.env != nil {
		opts = append(opts, coffeescript.WithEnv(b.env))
	}
	coffee := coffeescript.NewCoffeeScriptLinter(opts...)

	engine := NewLintingEngineWithLinters(coffee)
	for _, linter := range b.extra {
		engine.AddLinter(linter)
	}

	cfg := NewAppConfig()
	cfg.Merge(b.appConfig)
	if b.timeout > 0 {
		cfg.Timeout = &Duration{Duration: b.timeout}
	}
	if err := engine.ApplyConfig(cfg); err != nil {
		return nil, err
	}

	return &API{
		engine: engine,
		coffee: coffee,
		cache:  cache,
	}, nil
}
