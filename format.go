package koffeelint

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
	markdown "github.com/teekennedy/goldmark-markdown"

	"github.com/jrossi/koffeelint/linters"
)

// Output formats understood by FormatResults
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// FileReport is the serialized form of one file's lint result
type FileReport struct {
	Path        string               `json:"path"`
	Linter      string               `json:"linter,omitempty"`
	Success     bool                 `json:"success"`
	Diagnostics []linters.Diagnostic `json:"diagnostics"`
	Error       string               `json:"error,omitempty"`
}

// Reports converts task results into FileReports
func Reports(results []linters.LintTaskResult) []FileReport {
	reports := make([]FileReport, 0, len(results))
	for _, r := range results {
		report := FileReport{
			Path:        r.Path,
			Linter:      r.LinterName,
			Diagnostics: []linters.Diagnostic{},
		}
		if r.Error != nil {
			report.Error = r.Error.Error()
		}
		if r.Result != nil {
			report.Success = r.Result.Success
			report.Diagnostics = r.Result.Diagnostics
		}
		reports = append(reports, report)
	}
	return reports
}

// HasErrors reports whether any result failed or carries an error diagnostic
func HasErrors(results []linters.LintTaskResult) bool {
	for _, r := range results {
		if r.Error != nil {
			return true
		}
		if r.Result != nil && !r.Result.Success {
			return true
		}
	}
	return false
}

// FormatResults writes results to w in the named format
func FormatResults(w io.Writer, format string, results []linters.LintTaskResult) error {
	reports := Reports(results)
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, formatText(reports))
		return err
	case FormatJSON:
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatMarkdown:
		out, err := formatMarkdown(reports)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// formatText prints one diagnostic per line as path:line:column: severity: description
func formatText(reports []FileReport) string {
	var output strings.Builder
	for _, report := range reports {
		if report.Error != "" {
			output.WriteString(fmt.Sprintf("%s: %s\n", report.Path, report.Error))
			continue
		}
		for _, d := range report.Diagnostics {
			if d.Line > 0 && d.ColumnStart > 0 {
				output.WriteString(fmt.Sprintf("%s:%d:%d: %s: %s\n", report.Path, d.Line, d.ColumnStart, d.Severity, d.Description))
			} else if d.Line > 0 {
				output.WriteString(fmt.Sprintf("%s:%d: %s: %s\n", report.Path, d.Line, d.Severity, d.Description))
			} else {
				output.WriteString(fmt.Sprintf("%s: %s: %s\n", report.Path, d.Severity, d.Description))
			}
		}
	}
	return output.String()
}

// formatMarkdown writes a section per file and normalizes the document
// through the markdown renderer.
func formatMarkdown(reports []FileReport) ([]byte, error) {
	var src strings.Builder
	src.WriteString("# koffeelint report\n\n")
	for _, report := range reports {
		src.WriteString(fmt.Sprintf("## `%s`\n\n", report.Path))
		switch {
		case report.Error != "":
			src.WriteString(fmt.Sprintf("Could not lint: %s\n\n", escapeMarkdown(report.Error)))
		case len(report.Diagnostics) == 0:
			src.WriteString("No issues found.\n\n")
		default:
			for _, d := range report.Diagnostics {
				src.WriteString(fmt.Sprintf("- **%s** line %d: %s\n", d.Severity, d.Line, escapeMarkdown(d.Description)))
			}
			src.WriteString("\n")
		}
	}

	source := []byte(src.String())
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	var out bytes.Buffer
	if err := markdown.NewRenderer().Render(&out, source, doc); err != nil {
		return nil, fmt.Errorf("failed to render markdown report: %w", err)
	}
	return out.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
