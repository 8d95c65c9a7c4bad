package toolcache

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("toolcache")

// ErrNoPath is returned when the user's PATH cannot be determined.
var ErrNoPath = errors.New("PATH is not set in the user environment")

// ToolInfo contains metadata about a discovered tool
type ToolInfo struct {
	Name      string          `json:"name"`
	Path      string          `json:"path"`              // Full path to tool binary
	Available bool            `json:"available"`         // Whether tool was found
	Source    string          `json:"source"`            // "path" or "forced"
	Version   string          `json:"version,omitempty"` // Raw version string
	SemVer    *semver.Version `json:"-"`
	LastCheck time.Time       `json:"lastCheck"`         // When tool was last verified
	ModTime   time.Time       `json:"modTime,omitempty"` // Binary modification time

	searchKey string
}

// CacheManager resolves tools on a search path and remembers the result
// until the binary changes or a different search path is used.
type CacheManager struct {
	goos       string
	complainer *Complainer

	mu    sync.RWMutex
	tools map[string]*ToolInfo
}

// Option configures a CacheManager
type Option func(*CacheManager)

// WithGOOS overrides the platform used for suffix handling.
func WithGOOS(goos string) Option {
	return func(c *CacheManager) {
		c.goos = goos
	}
}

// WithComplainer shares a Complainer between components.
func WithComplainer(complainer *Complainer) Option {
	return func(c *CacheManager) {
		c.complainer = complainer
	}
}

// NewCacheManager creates an empty in-memory tool cache.
func NewCacheManager(opts ...Option) *CacheManager {
	c := &CacheManager{
		goos:  runtime.GOOS,
		tools: make(map[string]*ToolInfo),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.complainer == nil {
		c.complainer = NewComplainer(nil)
	}
	return c
}

// Complainer returns the log-once set used by this cache.
func (c *CacheManager) Complainer() *Complainer {
	return c.complainer
}

// DiscoverTool finds toolName on searchPath. A missing tool is not an
// error: the returned ToolInfo has Available == false.
func (c *CacheManager) DiscoverTool(toolName string, searchPath []string) *ToolInfo {
	key := strings.Join(searchPath, string(os.PathListSeparator))

	// Check if tool is cached and fresh
	c.mu.RLock()
	cached := c.tools[toolName]
	c.mu.RUnlock()
	if cached != nil && cached.searchKey == key && isToolCacheFresh(cached) {
		return cached
	}

	tool := c.discoverSingleTool(toolName, searchPath)
	tool.searchKey = key
	if !tool.Available {
		c.complainer.Complain(toolName + " not found")
	}

	c.mu.Lock()
	c.tools[toolName] = tool
	c.mu.Unlock()

	return tool
}

// ForceTool records an explicitly configured tool path.
func (c *CacheManager) ForceTool(toolName, path string) *ToolInfo {
	tool := &ToolInfo{
		Name:      toolName,
		Path:      path,
		Source:    "forced",
		LastCheck: time.Now(),
	}
	if stat, err := os.Stat(path); err == nil && stat.Mode().IsRegular() {
		tool.Available = true
		tool.ModTime = stat.ModTime()
	} else {
		c.complainer.Complain(toolName + " not found at " + path)
	}

	c.mu.Lock()
	c.tools[toolName] = tool
	c.mu.Unlock()
	return tool
}

// Invalidate drops any cached entry for toolName.
func (c *CacheManager) Invalidate(toolName string) {
	c.mu.Lock()
	delete(c.tools, toolName)
	c.mu.Unlock()
}

// isToolCacheFresh checks if cached tool information is still valid
func isToolCacheFresh(tool *ToolInfo) bool {
	if !tool.Available {
		// Re-check missing tools every time, the user may have installed it
		return false
	}
	stat, err := os.Stat(tool.Path)
	if err != nil {
		return false // Binary no longer exists
	}
	return stat.ModTime().Equal(tool.ModTime)
}

// discoverSingleTool searches the directories in order
func (c *CacheManager) discoverSingleTool(toolName string, searchPath []string) *ToolInfo {
	tool := &ToolInfo{
		Name:      toolName,
		LastCheck: time.Now(),
	}

	path, ok := LookPath(toolName, searchPath, c.goos)
	if !ok {
		return tool
	}

	tool.Path = path
	tool.Available = true
	tool.Source = "path"
	if stat, err := os.Stat(path); err == nil {
		tool.ModTime = stat.ModTime()
	}

	log.Debugf("Resolved %s to %s", toolName, path)
	return tool
}

// LookPath returns the first executable called name in dirs. On Windows a
// ".cmd" wrapper next to the match is preferred over the match itself.
func LookPath(name string, dirs []string, goos string) (string, bool) {
	windows := goos == "windows"
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, candidate := range candidates(name, windows) {
			path := filepath.Join(dir, candidate)
			if !isExecutable(path, windows) {
				continue
			}
			if !filepath.IsAbs(path) {
				if abs, err := filepath.Abs(path); err == nil {
					path = abs
				}
			}
			if windows && fileExists(path+".cmd") {
				path += ".cmd"
			}
			return path, true
		}
	}
	return "", false
}

// candidates lists the file names tried for name in each directory.
func candidates(name string, windows bool) []string {
	if !windows || filepath.Ext(name) != "" {
		return []string{name}
	}
	names := []string{name}
	for _, ext := range pathExt() {
		names = append(names, name+ext)
	}
	return names
}

func pathExt() []string {
	if env := os.Getenv("PATHEXT"); env != "" {
		return strings.Split(strings.ToLower(env), ";")
	}
	return []string{".com", ".exe", ".bat", ".cmd"}
}

// isExecutable reports whether path is a regular file that can be run.
func isExecutable(path string, windows bool) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	mode := stat.Mode()
	if !mode.IsRegular() {
		return false
	}
	return windows || mode&0111 != 0
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Mode().IsRegular()
}
