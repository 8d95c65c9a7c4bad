package coffeescript

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// lookupEncoding resolves an encoding name. Names such as
// "latin-1" and "utf_8" are accepted alongside the WHATWG labels.
func lookupEncoding(name string) (encoding.Encoding, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	if label == "" {
		return unicode.UTF8, nil
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	label = strings.ReplaceAll(label, "_", "-")
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(strings.ReplaceAll(label, "-", "")); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}

// encodeContent converts UTF-8 buffer text to the named encoding.
func encodeContent(content, name string) ([]byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		return []byte(content), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to encode buffer as %s: %w", name, err)
	}
	return out, nil
}

// charsetReader lets the report decoder honor a non UTF-8 XML declaration.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := lookupEncoding(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}
