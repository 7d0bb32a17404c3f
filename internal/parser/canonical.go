package parser

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

var keyRank = map[string]int{KeyLayout: 0, KeyTitle: 1, KeyPermalink: 2}

// Canonicalize reorders the front-matter mapping of data: recognized keys
// first, the rest sorted by name. Value nodes are re-emitted as parsed, so
// tags, styles and nesting survive. The body and the file's newline style
// are kept. Content without front-matter is returned unchanged.
func Canonicalize(data []byte) ([]byte, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if fm == nil {
		return data, nil
	}

	var root yaml.Node
	if len(bytes.TrimSpace(fm)) > 0 {
		if err := yaml.Unmarshal(fm, &root); err != nil {
			return nil, &MalformedError{Reason: "invalid front-matter YAML", Err: err}
		}
	}

	var block []byte
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		m := root.Content[0]
		if m.Kind != yaml.MappingNode {
			return nil, &MalformedError{Reason: "front-matter is not a mapping"}
		}
		sortMapping(m)

		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&root); err != nil {
			return nil, fmt.Errorf("parser: encode front-matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode front-matter: %w", err)
		}
		block = buf.Bytes()
	}

	nl := newline(data)
	var out bytes.Buffer
	if bytes.HasPrefix(data, utf8BOM) {
		out.Write(utf8BOM)
	}
	out.WriteString(delim + nl)
	if nl != "\n" {
		block = bytes.ReplaceAll(block, []byte("\n"), []byte(nl))
	}
	out.Write(block)
	out.WriteString(delim + nl)
	out.Write(body)
	return out.Bytes(), nil
}

// sortMapping orders key/value pairs of m in place.
func sortMapping(m *yaml.Node) {
	type pair struct{ k, v *yaml.Node }
	pairs := make([]pair, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		pairs = append(pairs, pair{m.Content[i], m.Content[i+1]})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ri, iok := keyRank[pairs[i].k.Value]
		rj, jok := keyRank[pairs[j].k.Value]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return pairs[i].k.Value < pairs[j].k.Value
		}
	})
	m.Content = m.Content[:0]
	for _, p := range pairs {
		m.Content = append(m.Content, p.k, p.v)
	}
}

// newline returns the line ending of the first line of data.
func newline(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i > 0 && data[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
