// internal/loader/loader.go

// Package loader reads rule DSL documents and compiles them into
// executable rule sets.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nettolabs/netto/internal/rules"
	"github.com/nettolabs/netto/internal/types"
)

/*
 * DSL document loading.
 *
 * Documents are JSONC: JSON plus // line comments and block comments,
 * which rule authors use heavily for annotating thresholds and toggling
 * rules off. Comments are stripped by a small scanner that tracks
 * string state, so a URL or "//" inside a JSON string survives intact.
 * Newlines inside stripped regions are preserved to keep decoder error
 * line numbers pointing at the author's file.
 *
 * Loading and compilation are separate steps: Load gives back the raw
 * document (servers store it verbatim), Compile turns it into engine
 * input through a caller-supplied registry. Declaration order is
 * preserved through both.
 */

// Load decodes a JSONC rule document.
func Load(r io.Reader) (*types.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	var doc types.Document
	if err := json.Unmarshal(stripComments(raw), &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	for i, spec := range doc.Rules {
		if _, ok := spec["type"].(string); !ok {
			return nil, fmt.Errorf("rule %d (id %q): missing or non-string type", i, spec.ID())
		}
	}
	return &doc, nil
}

// LoadFile decodes the JSONC rule document at path.
func LoadFile(path string) (*types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Compile turns a document's declarations into compiled rules in
// declaration order. The document's variables table becomes the
// constants environment of every formula. Any failing declaration
// fails the whole document.
func Compile(doc *types.Document, reg *rules.Registry) ([]*rules.CompiledRule, error) {
	compiled := make([]*rules.CompiledRule, 0, len(doc.Rules))
	for _, spec := range doc.Rules {
		rule, err := reg.Compile(spec, doc.Variables)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

// LoadAndCompile is the common path for file-based callers.
func LoadAndCompile(path string, reg *rules.Registry) (*types.Document, []*rules.CompiledRule, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := Compile(doc, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, compiled, nil
}

// stripComments removes // and /* */ comments outside JSON strings,
// preserving newlines so decoder errors keep their line numbers.
func stripComments(src []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(src))

	const (
		stNormal = iota
		stString
		stLineComment
		stBlockComment
	)
	state := stNormal

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch state {
		case stNormal:
			switch {
			case c == '"':
				state = stString
				out.WriteByte(c)
			case c == '/' && i+1 < len(src) && src[i+1] == '/':
				state = stLineComment
				i++
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				state = stBlockComment
				i++
			default:
				out.WriteByte(c)
			}
		case stString:
			out.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(src) {
					i++
					out.WriteByte(src[i])
				}
			case '"':
				state = stNormal
			}
		case stLineComment:
			if c == '\n' {
				state = stNormal
				out.WriteByte(c)
			}
		case stBlockComment:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				state = stNormal
				i++
			} else if c == '\n' {
				out.WriteByte(c)
			}
		}
	}
	return out.Bytes()
}
