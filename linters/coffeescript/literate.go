package coffeescript

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// IsLiterate reports whether path names a literate CoffeeScript document.
func IsLiterate(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".litcoffee") || strings.HasSuffix(lower, ".coffee.md")
}

// newLiterateParser returns a markdown parser that understands front matter,
// so a leading YAML block is never mistaken for prose or a heading.
func newLiterateParser() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
		),
	)
}

// ExtractLiterate turns a literate CoffeeScript document into plain
// CoffeeScript. Code block lines keep their position with the block
// indentation removed; every other line becomes empty, so diagnostics keep
// pointing at the right line of the original document.
func ExtractLiterate(md goldmark.Markdown, source []byte) string {
	lineStarts := []int{0}
	for i, b := range source {
		if b == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	out := make([]string, len(lineStarts))

	doc := md.Parser().Parse(text.NewReader(source), parser.WithContext(parser.NewContext()))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock:
		default:
			return ast.WalkContinue, nil
		}

		segments := n.Lines()
		for i := 0; i < segments.Len(); i++ {
			seg := segments.At(i)
			line := lineOf(lineStarts, seg.Start)
			value := seg.Value(source)
			out[line] = strings.TrimRight(string(value), "\r\n")
		}
		return ast.WalkSkipChildren, nil
	})

	// Drop the phantom line after a trailing newline
	if bytes.HasSuffix(source, []byte("\n")) {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}

// lineOf returns the 0-based line containing offset.
func lineOf(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
