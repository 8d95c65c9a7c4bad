package coffeescript

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonschema"
)

// coffeelintSchema describes the shape coffeelint expects from coffeelint.json:
// an object of rule name to rule settings.
const coffeelintSchema = `{
	"type": "object",
	"properties": {
		"extends": {"type": "string"}
	},
	"additionalProperties": {
		"type": "object",
		"properties": {
			"level": {"enum": ["error", "warn", "ignore"]},
			"module": {"type": "string"}
		}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.NewCompiler().Compile([]byte(coffeelintSchema))
	})
	return schema, schemaErr
}

// CheckConfigFile validates a coffeelint.json file. It returns a description
// of the first problem found, or "" when the file looks usable.
func CheckConfigFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return CheckConfig(path, data), nil
}

// CheckConfig validates coffeelint.json content; name is used in messages.
func CheckConfig(name string, data []byte) string {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Sprintf("%s is not valid JSON: %v", name, err)
	}

	s, err := compiledSchema()
	if err != nil {
		log.Errorf("Failed to compile coffeelint.json schema: %v", err)
		return ""
	}

	result := s.Validate(doc)
	if result.IsValid() {
		return ""
	}

	var problems []string
	for field, evalErr := range result.Errors {
		problems = append(problems, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	if len(problems) == 0 {
		return fmt.Sprintf("%s does not look like a coffeelint config", name)
	}
	sort.Strings(problems)
	return fmt.Sprintf("%s does not look like a coffeelint config (%s)", name, strings.Join(problems, "; "))
}
