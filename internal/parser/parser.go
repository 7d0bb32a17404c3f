// Package parser splits content files into front-matter and body, and
// extracts link targets from Markdown bodies.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
)

const delim = "---"

// Recognized front-matter keys. Everything else lands in Document.Extra.
const (
	KeyLayout    = "layout"
	KeyTitle     = "title"
	KeyPermalink = "permalink"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// MalformedError describes why a document could not be parsed. It unwraps
// to apperr.ErrMalformedDocument.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Err)
	}
	return "malformed document: " + e.Reason
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *MalformedError) Unwrap() []error {
	if e.Err != nil {
		return []error{apperr.ErrMalformedDocument, e.Err}
	}
	return []error{apperr.ErrMalformedDocument}
}

// IsMalformed reports whether err is a parse failure.
func IsMalformed(err error) bool {
	return errors.Is(err, apperr.ErrMalformedDocument)
}

// Parse splits data into front-matter and body and returns a Document with
// the recognized fields populated. Status and Source are left for the caller.
func Parse(data []byte) (*models.Document, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		Body:     string(body),
		Checksum: checksum.Body(body),
	}
	if fm == nil {
		return doc, nil
	}

	fields, err := decodeFields(fm)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		switch k {
		case KeyLayout:
			doc.Layout = models.Layout(v)
		case KeyTitle:
			doc.Title = v
		case KeyPermalink:
			doc.Permalink = v
		default:
			if doc.Extra == nil {
				doc.Extra = make(map[string]string)
			}
			doc.Extra[k] = v
		}
	}
	return doc, nil
}

// splitFrontmatter separates a leading --- block from the body. fm is nil
// when the content does not open with a delimiter line.
func splitFrontmatter(data []byte) (fm []byte, body []byte, err error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	nl := bytes.IndexByte(data, '\n')
	first := data
	if nl >= 0 {
		first = data[:nl]
	}
	if string(bytes.TrimRight(first, " \t\r")) != delim {
		return nil, data, nil
	}
	if nl < 0 {
		return nil, nil, &MalformedError{Reason: "front-matter opened but never closed"}
	}

	rest := data[nl+1:]
	pos := 0
	for pos <= len(rest) {
		end := bytes.IndexByte(rest[pos:], '\n')
		var line []byte
		next := len(rest)
		if end < 0 {
			line = rest[pos:]
		} else {
			line = rest[pos : pos+end]
			next = pos + end + 1
		}
		if string(bytes.TrimRight(line, " \t\r")) == delim {
			if end < 0 {
				return rest[:pos], []byte{}, nil
			}
			return rest[:pos], rest[next:], nil
		}
		if end < 0 {
			break
		}
		pos = next
	}
	return nil, nil, &MalformedError{Reason: "front-matter opened but never closed"}
}

// decodeFields flattens the front-matter mapping into strings. Scalars are
// kept verbatim; sequences and mappings are kept as their YAML text.
func decodeFields(fm []byte) (map[string]string, error) {
	out := make(map[string]string)
	if len(bytes.TrimSpace(fm)) == 0 {
		return out, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(fm, &root); err != nil {
		return nil, &MalformedError{Reason: "invalid front-matter YAML", Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return out, nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, &MalformedError{Reason: "front-matter is not a mapping"}
	}

	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value
		val := m.Content[i+1]
		switch {
		case val.Kind == yaml.ScalarNode:
			if val.ShortTag() == "!!null" {
				out[key] = ""
			} else {
				out[key] = val.Value
			}
		case key == KeyLayout || key == KeyTitle || key == KeyPermalink:
			return nil, &MalformedError{Reason: fmt.Sprintf("front-matter key %q must be a string", key)}
		default:
			raw, err := yaml.Marshal(val)
			if err != nil {
				out[key] = val.Value
				continue
			}
			out[key] = strings.TrimRight(string(raw), "\n")
		}
	}
	return out, nil
}

// HasFrontmatter reports whether data opens with a front-matter delimiter.
func HasFrontmatter(data []byte) bool {
	data = bytes.TrimPrefix(data, utf8BOM)
	first := data
	if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
		first = data[:nl]
	}
	return string(bytes.TrimRight(first, " \t\r")) == delim
}
