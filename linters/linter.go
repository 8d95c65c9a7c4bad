package linters

import (
	"context"
	"strings"
)

// Linter defines the interface for all buffer linters
type Linter interface {
	// Lint checks the request buffer and returns any diagnostics found
	Lint(ctx context.Context, req *Request) (*LintResult, error)

	// CanHandle returns true if this linter can handle the given file
	CanHandle(filePath string) bool

	// Name returns the linter name for logging
	Name() string
}

// PrefSet exposes the host's user preferences.
type PrefSet interface {
	BooleanPref(name string) bool
}

// Prefs is a map backed PrefSet. Unknown preferences are false.
type Prefs map[string]bool

// BooleanPref implements PrefSet
func (p Prefs) BooleanPref(name string) bool {
	return p[name]
}

// Request is a single lint request issued by the host editor. It is not
// modified by linters.
type Request struct {
	Cwd      string  // Working directory of the document
	Path     string  // Document path, may be empty for unsaved buffers
	Content  string  // Buffer text (UTF-8)
	Encoding string  // Encoding the tool expects the buffer in, e.g. "utf-8"
	Prefs    PrefSet // Host preferences; nil means everything disabled
}

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// LintResult contains the results of linting a buffer
type LintResult struct {
	Success     bool
	Diagnostics []Diagnostic
}

// Diagnostic represents a single line anchored finding.
// Line is 1-based; 0 means no specific line.
type Diagnostic struct {
	Severity    Severity `json:"severity"`
	Line        int      `json:"line"`
	ColumnStart int      `json:"columnStart,omitempty"` // 1-based, 0 when unknown
	ColumnEnd   int      `json:"columnEnd,omitempty"`   // exclusive, 0 when unknown
	Description string   `json:"description"`
}

// NewLintResult returns an empty, successful result.
func NewLintResult() *LintResult {
	return &LintResult{
		Success:     true,
		Diagnostics: []Diagnostic{},
	}
}

// Add appends a diagnostic, anchoring its columns to lines when the line exists.
func (r *LintResult) Add(lines []string, d Diagnostic) {
	if d.Line > 0 && d.Line <= len(lines) && d.ColumnStart == 0 {
		text := lines[d.Line-1]
		d.ColumnStart = len(text) - len(strings.TrimLeft(text, " \t")) + 1
		d.ColumnEnd = len(text) + 1
	}
	if d.Severity == SeverityError {
		r.Success = false
	}
	r.Diagnostics = append(r.Diagnostics, d)
}

// Count returns the number of diagnostics with the given severity.
func (r *LintResult) Count(sev Severity) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// SplitLines splits text into lines the way the host numbers them.
// An empty text yields a single empty line.
func SplitLines(text string) []string {
	if text == "" {
		return []string{""}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
