package coffeescript

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/shlex"
	"github.com/yuin/goldmark"
	"gopkg.in/op/go-logging.v1"

	"github.com/jrossi/koffeelint/linters"
	"github.com/jrossi/koffeelint/toolcache"
)

var log = logging.MustGetLogger("coffeescript")

const (
	// ToolName is the external linter executable
	ToolName = "coffeelint"
	// ConfigFileName is searched for upwards from the request directory
	ConfigFileName = "coffeelint.json"
	// DefaultPrefName is the host preference that enables this linter
	DefaultPrefName = "lint_coffee_script"

	sourceExt = ".coffee"
	// Build files written in CoffeeScript without an extension
	cakefile = "cakefile"
	// Internal errors are anchored on the first non-empty line within this many lines
	anchorScanLines = 50
)

// Messages reported as diagnostics
const (
	MsgNoCoffeelint   = "coffeelint executable not found on the environment PATH. Is it installed correctly?"
	MsgNoPath         = "Cannot access environment PATH. Is the system configured correctly?"
	MsgXMLParseError  = "Error parsing coffeelint results. Is %s a valid JSON file?"
	MsgRunException   = "Error running coffeelint: %s"
	MsgFileTooLarge   = "File size %d exceeds limit %d"
	MsgBadCommand     = "Invalid coffeelint command %q: %v"
	MsgConfigProblem  = "coffeelint config problem: %s"
	MsgEncodingFailed = "Cannot encode buffer as %s, using UTF-8"
)

// CoffeeScriptLinter runs coffeelint over editor buffers
type CoffeeScriptLinter struct {
	config *CoffeeScriptConfig
	cache  *toolcache.CacheManager
	env    toolcache.EnvFunc
	run    linters.RunFunc

	mdOnce sync.Once
	md     goldmark.Markdown
}

// Option configures a CoffeeScriptLinter
type Option func(*CoffeeScriptLinter)

// WithRunner replaces the process runner.
func WithRunner(run linters.RunFunc) Option {
	return func(l *CoffeeScriptLinter) {
		l.run = run
	}
}

// WithEnv replaces the user environment lookup.
func WithEnv(env toolcache.EnvFunc) Option {
	return func(l *CoffeeScriptLinter) {
		l.env = env
	}
}

// WithCache shares a tool cache (and its log-once set) with other components.
func WithCache(cache *toolcache.CacheManager) Option {
	return func(l *CoffeeScriptLinter) {
		l.cache = cache
	}
}

// WithConfig sets the linter configuration.
func WithConfig(config *CoffeeScriptConfig) Option {
	return func(l *CoffeeScriptLinter) {
		if config != nil {
			l.config = config
		}
	}
}

// NewCoffeeScriptLinter creates a new CoffeeScript linter
func NewCoffeeScriptLinter(opts ...Option) *CoffeeScriptLinter {
	l := &CoffeeScriptLinter{
		config: DefaultCoffeeScriptConfig(),
		env:    toolcache.OSEnv,
		run:    linters.ExecRunner(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = toolcache.NewCacheManager()
	}
	l.config.merge(DefaultCoffeeScriptConfig())
	return l
}

// Name returns the linter name
func (l *CoffeeScriptLinter) Name() string {
	return "coffeescript"
}

// CanHandle returns true if this linter can handle the given file. An
// empty path is an unsaved buffer the host already identified as CoffeeScript.
func (l *CoffeeScriptLinter) CanHandle(filePath string) bool {
	if filePath == "" {
		return true
	}
	lowerPath := strings.ToLower(filePath)
	if filepath.Base(lowerPath) == cakefile {
		return true
	}
	return strings.HasSuffix(lowerPath, sourceExt) || IsLiterate(lowerPath)
}

// SetConfig updates the linter configuration from JSON
func (l *CoffeeScriptLinter) SetConfig(config []byte) error {
	var csConfig CoffeeScriptConfig
	if err := json.Unmarshal(config, &csConfig); err != nil {
		return fmt.Errorf("failed to parse CoffeeScript config: %w", err)
	}
	csConfig.merge(DefaultCoffeeScriptConfig())
	l.config = &csConfig
	return nil
}

// Config returns the active configuration
func (l *CoffeeScriptLinter) Config() *CoffeeScriptConfig {
	return l.config
}

// Lint runs coffeelint over the request buffer. Every failure is reported
// as a diagnostic; the error return is reserved for a nil request.
func (l *CoffeeScriptLinter) Lint(ctx context.Context, req *linters.Request) (*linters.LintResult, error) {
	if req == nil {
		return nil, fmt.Errorf("nil lint request")
	}
	return newLintRequest(l, req).run(ctx), nil
}

// Resolve locates the coffeelint executable the way a lint request would.
// The returned message is the user facing reason when it is unavailable.
func (l *CoffeeScriptLinter) Resolve() (Invocation, *toolcache.ToolInfo, string) {
	var inv Invocation

	searchPath, err := l.cache.UserPath(l.env)
	if err != nil {
		return inv, nil, MsgNoPath
	}

	name := ToolName
	if command := stringValue(l.config.Command); command != "" {
		words, err := shlex.Split(command)
		if err != nil || len(words) == 0 {
			return inv, nil, fmt.Sprintf(MsgBadCommand, command, err)
		}
		name, inv.PrefixArgs = words[0], words[1:]
	}

	var tool *toolcache.ToolInfo
	if filepath.IsAbs(name) {
		tool = l.cache.ForceTool(name, name)
	} else {
		tool = l.cache.DiscoverTool(name, searchPath)
	}
	if !tool.Available {
		return inv, tool, MsgNoCoffeelint
	}
	inv.Executable = tool.Path
	return inv, tool, ""
}

// Tool resolves coffeelint and detects its version.
func (l *CoffeeScriptLinter) Tool(ctx context.Context) (*toolcache.ToolInfo, Invocation, error) {
	inv, tool, msg := l.Resolve()
	if msg != "" {
		return tool, inv, errors.New(msg)
	}
	if _, err := l.cache.DetectVersion(ctx, l.run, tool, inv.PrefixArgs...); err != nil {
		log.Warningf("Could not determine coffeelint version: %v", err)
	}
	return tool, inv, nil
}

// FindConfig returns the coffeelint.json that applies to dir.
func (l *CoffeeScriptLinter) FindConfig(dir string) (string, bool) {
	if forced := stringValue(l.config.ConfigFile); forced != "" {
		return forced, true
	}
	if dir == "" {
		return "", false
	}
	path, found, err := linters.FindConfigFile(dir, ConfigFileName)
	if err != nil {
		log.Warningf("Config search from %s failed: %v", dir, err)
		return "", false
	}
	return path, found
}

func (l *CoffeeScriptLinter) literateParser() goldmark.Markdown {
	l.mdOnce.Do(func() {
		l.md = newLiterateParser()
	})
	return l.md
}

// lintRequest carries the state of a single lint call
type lintRequest struct {
	linter  *CoffeeScriptLinter
	request *linters.Request
	result  *linters.LintResult

	text       string
	lines      []string
	invocation Invocation
	configFile string
}

func newLintRequest(l *CoffeeScriptLinter, req *linters.Request) *lintRequest {
	r := &lintRequest{
		linter:  l,
		request: req,
		result:  linters.NewLintResult(),
		text:    req.Content,
	}

	if r.text != "" && IsLiterate(req.Path) {
		r.text = ExtractLiterate(l.literateParser(), []byte(r.text))
	}
	r.lines = linters.SplitLines(r.text)
	return r
}

func (r *lintRequest) run(ctx context.Context) *linters.LintResult {
	l := r.linter
	if r.text == "" || !r.enabled() {
		return r.result
	}

	inv, tool, msg := l.Resolve()
	if msg != "" {
		r.addInternalError(msg)
		return r.result
	}
	r.invocation = inv
	r.invocation.Dir = r.request.Cwd

	// coffeelint only looks for its config next to the file it lints, which is
	// the temp file, so the search from the real directory happens here.
	if path, found := l.FindConfig(r.request.Cwd); found {
		r.configFile = path
		r.invocation.ConfigFile = path
	}

	if limit := l.config.MaxFileSize; limit != nil && int64(len(r.text)) > *limit {
		r.addInternalError(fmt.Sprintf(MsgFileTooLarge, len(r.text), *limit))
		return r.result
	}

	if minVersion := stringValue(l.config.MinVersion); minVersion != "" {
		if err := l.cache.CheckMinVersion(ctx, l.run, tool, minVersion, r.invocation.PrefixArgs...); err != nil {
			log.Warningf("Skipping version check: %v", err)
		}
	}

	if r.configFile != "" && l.config.ValidateConfig != nil && *l.config.ValidateConfig {
		r.checkConfig()
	}

	source, err := encodeContent(r.text, r.request.Encoding)
	if err != nil {
		l.cache.Complainer().Warn(fmt.Sprintf(MsgEncodingFailed, r.request.Encoding))
		source = []byte(r.text)
	}

	success, output := l.invoke(ctx, r.invocation, source)
	if success {
		r.parseReport(output)
	} else {
		r.addInternalError(fmt.Sprintf(MsgRunException, output))
	}
	return r.result
}

func (r *lintRequest) enabled() bool {
	prefs := r.request.Prefs
	return prefs != nil && prefs.BooleanPref(r.linter.config.prefName())
}

func (r *lintRequest) checkConfig() {
	problem, err := CheckConfigFile(r.configFile)
	if err != nil {
		log.Warningf("Cannot validate %s: %v", r.configFile, err)
		return
	}
	if problem != "" {
		r.result.Add(r.lines, linters.Diagnostic{
			Severity:    linters.SeverityWarning,
			Line:        1,
			Description: fmt.Sprintf(MsgConfigProblem, problem),
		})
	}
}

// parseReport translates the tool output. A report that cannot be parsed is
// blamed on the config file, the usual reason for coffeelint to crash.
func (r *lintRequest) parseReport(output string) {
	issues, err := ParseReport([]byte(output))
	if err != nil {
		log.Errorf("Could not parse coffeelint result: %v", err)
		config := r.configFile
		if config == "" {
			config = "None"
		}
		r.result.Add(r.lines, linters.Diagnostic{
			Severity:    linters.SeverityError,
			Line:        1,
			Description: fmt.Sprintf(MsgXMLParseError, config),
		})
		return
	}

	for _, d := range Translate(issues, r.lines) {
		r.result.Add(r.lines, d)
	}
	log.Debugf("Parsed coffeelint result: %d issue(s)", len(issues))
}

// addInternalError reports a failure that has no line of its own. It is
// anchored on the first non-empty line near the top of the buffer.
func (r *lintRequest) addInternalError(desc string) {
	r.result.Add(r.lines, linters.Diagnostic{
		Severity:    linters.SeverityError,
		Line:        internalErrorLine(r.lines),
		Description: desc,
	})
}

// internalErrorLine returns the 1-based line for an internal error.
func internalErrorLine(lines []string) int {
	for i := 0; i < anchorScanLines && i < len(lines); i++ {
		if lines[i] != "" {
			return i + 1
		}
	}
	return 1
}
