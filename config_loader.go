package koffeelint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonschema"
	toml "github.com/pelletier/go-toml/v2"
)

// ConfigDirName holds koffeelint's own configuration files
const ConfigDirName = ".koffeelint"

// appConfigSchema validates config files before they are merged
const appConfigSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"parallel": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"maxWorkers": {"type": "integer", "minimum": 0},
				"disableParallel": {"type": "boolean"}
			}
		},
		"timeout": {"type": "string"},
		"prefs": {
			"type": "object",
			"additionalProperties": {"type": "boolean"}
		},
		"linters": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"additionalProperties": false,
				"properties": {
					"enabled": {"type": "boolean"},
					"config": {"type": "object"}
				}
			}
		}
	}
}`

var (
	appSchemaOnce sync.Once
	appSchema     *jsonschema.Schema
	appSchemaErr  error
)

// ConfigLoader handles loading and merging configuration files
type ConfigLoader struct {
	projectDir string
	homeDir    string
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader() (*ConfigLoader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	projectDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	return NewConfigLoaderWithDirs(projectDir, homeDir), nil
}

// NewConfigLoaderWithDirs creates a loader for explicit project and home directories
func NewConfigLoaderWithDirs(projectDir, homeDir string) *ConfigLoader {
	return &ConfigLoader{
		projectDir: projectDir,
		homeDir:    homeDir,
	}
}

// LoadConfig loads and merges configuration from multiple sources
func (cl *ConfigLoader) LoadConfig() (*AppConfig, error) {
	return cl.LoadConfigWithPaths(cl.GetConfigPaths())
}

// LoadConfigWithPaths loads configuration from specific paths
func (cl *ConfigLoader) LoadConfigWithPaths(paths []string) (*AppConfig, error) {
	config := NewAppConfig()

	for _, path := range paths {
		if err := cl.loadAndMergeConfig(config, path); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// loadAndMergeConfig loads a single config file and merges it
func (cl *ConfigLoader) loadAndMergeConfig(config *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist, skip silently
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	fileConfig, err := ParseAppConfig(path, data)
	if err != nil {
		return err
	}

	log.Debugf("Loaded config from %s", path)
	config.Merge(fileConfig)
	return nil
}

// ParseAppConfig decodes a JSON or TOML (by extension) config file and
// validates it against the config schema.
func ParseAppConfig(path string, data []byte) (*AppConfig, error) {
	var doc map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Round trip through JSON so both formats share one schema and decoder
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config file %s: %w", path, err)
	}
	var generic interface{}
	if err := json.Unmarshal(normalized, &generic); err != nil {
		return nil, fmt.Errorf("failed to normalize config file %s: %w", path, err)
	}
	if err := validateAppConfig(generic); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	var fileConfig AppConfig
	if err := json.Unmarshal(normalized, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fileConfig, nil
}

func validateAppConfig(doc interface{}) error {
	appSchemaOnce.Do(func() {
		appSchema, appSchemaErr = jsonschema.NewCompiler().Compile([]byte(appConfigSchema))
	})
	if appSchemaErr != nil {
		return fmt.Errorf("failed to compile config schema: %w", appSchemaErr)
	}

	result := appSchema.Validate(doc)
	if result.IsValid() {
		return nil
	}
	var problems []string
	for field, evalErr := range result.Errors {
		problems = append(problems, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(problems)
	return fmt.Errorf("schema validation failed: %s", strings.Join(problems, "; "))
}

// FindProjectRoot finds the project root by looking for .git directory
func (cl *ConfigLoader) FindProjectRoot() (string, error) {
	dir := cl.projectDir
	for {
		// Check if .git exists in current directory
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil && info.IsDir() {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root of filesystem
			break
		}
		dir = parent
	}

	// No .git found, use current directory
	return cl.projectDir, nil
}

// GetConfigPaths returns the paths where config files will be searched,
// lowest precedence first
func (cl *ConfigLoader) GetConfigPaths() []string {
	projectDir, _ := cl.FindProjectRoot()

	var paths []string
	for _, base := range []string{
		filepath.Join(cl.homeDir, ConfigDirName, "config"),       // user global
		filepath.Join(projectDir, ConfigDirName, "config"),       // project-specific
		filepath.Join(projectDir, ConfigDirName, "config.local"), // local overrides
	} {
		paths = append(paths, base+".json", base+".toml")
	}
	return paths
}

// ConfigExists checks if any configuration files exist
func (cl *ConfigLoader) ConfigExists() bool {
	for _, path := range cl.GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}
