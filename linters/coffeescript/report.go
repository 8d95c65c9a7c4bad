package coffeescript

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/jrossi/koffeelint/linters"
)

var (
	// [severity] message
	reasonRe = regexp.MustCompile(`^\[(.*?)\]\s*(.*)`)
	// [file]:line:col: error: message <copy of line> ^
	compilerErrorRe = regexp.MustCompile(`^\[.*?\]:\d+:\d+:\s* .*?:(.*?)\s*\^\s*`)
)

var (
	errEmptyReport = errors.New("report contains no elements")
	errExtraRoot   = errors.New("report has more than one root element")
	errStrayText   = errors.New("report has text outside the root element")
)

// RawIssue is one issue element of a jslint report, untranslated.
type RawIssue struct {
	Reason      string
	Line        string
	Evidence    string
	HasLine     bool
	HasEvidence bool
}

// ParseReport reads the jslint XML report produced by coffeelint and returns
// every issue element in document order.
func ParseReport(data []byte) ([]RawIssue, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = true
	decoder.CharsetReader = charsetReader

	var issues []RawIssue
	sawElement := false
	depth := 0
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse report: %w", err)
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			if depth == 0 && sawElement {
				return nil, errExtraRoot
			}
			sawElement = true
			depth++
			if tok.Name.Local == "issue" {
				issues = append(issues, rawIssueFrom(tok.Attr))
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			// Only whitespace may surround the root element
			if depth == 0 && len(bytes.TrimSpace(tok)) > 0 {
				return nil, errStrayText
			}
		}
	}

	if !sawElement {
		return nil, errEmptyReport
	}
	return issues, nil
}

func rawIssueFrom(attrs []xml.Attr) RawIssue {
	var issue RawIssue
	for _, attr := range attrs {
		value := normalizeAttr(attr.Value)
		switch attr.Name.Local {
		case "reason":
			issue.Reason = value
		case "line":
			issue.Line = value
			issue.HasLine = true
		case "evidence":
			issue.Evidence = value
			issue.HasEvidence = true
		}
	}
	return issue
}

// normalizeAttr applies XML attribute-value normalization for literal
// whitespace characters, which encoding/xml leaves untouched.
func normalizeAttr(v string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ").Replace(v)
}

// Translate converts raw issues into diagnostics. Issues whose reason does
// not carry a [severity] prefix, or whose line is not a number, are skipped.
func Translate(issues []RawIssue, lines []string) []linters.Diagnostic {
	diagnostics := make([]linters.Diagnostic, 0, len(issues))
	for _, issue := range issues {
		d, ok := translateIssue(issue, lines)
		if ok {
			diagnostics = append(diagnostics, d)
		}
	}
	return diagnostics
}

func translateIssue(issue RawIssue, lines []string) (linters.Diagnostic, bool) {
	m := reasonRe.FindStringSubmatch(issue.Reason)
	if m == nil {
		return linters.Diagnostic{}, false
	}

	lineNo, err := strconv.Atoi(strings.TrimSpace(issue.Line))
	if !issue.HasLine || err != nil || lineNo < 0 {
		return linters.Diagnostic{}, false
	}

	lineText := ""
	if lineNo > 0 && lineNo <= len(lines) {
		lineText = lines[lineNo-1]
	}

	evidence := "undefined"
	if issue.HasEvidence {
		evidence = issue.Evidence
	}

	return linters.Diagnostic{
		Severity:    Severity(m[1]),
		Line:        lineNo,
		Description: Describe(m[2], evidence, lineText),
	}, true
}

// Severity maps a coffeelint severity word onto a diagnostic severity.
func Severity(word string) linters.Severity {
	switch word {
	case "error":
		return linters.SeverityError
	case "warn":
		return linters.SeverityWarning
	default:
		return linters.SeverityInfo
	}
}

// Describe builds the diagnostic text from an issue message, its evidence and
// the text of the line it points at.
func Describe(msg, evidence, line string) string {
	msg = CleanCompilerError(msg, line)
	if evidence != "" && evidence != "undefined" {
		msg = msg + " : " + evidence
	}
	return msg
}

// CleanCompilerError reduces a compiler error message to its core text and
// removes the copy of line that the compiler embeds. Other messages are
// returned unchanged.
func CleanCompilerError(msg, line string) string {
	m := compilerErrorRe.FindStringSubmatch(msg)
	if m == nil {
		return msg
	}
	cleaned := m[1]
	if line != "" {
		cleaned = strings.Replace(cleaned, line, "", 1)
	}
	return strings.TrimSpace(cleaned)
}
