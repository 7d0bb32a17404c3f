package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/quire/internal/models"
)

// Serialize renders doc back to front-matter plus body. The block is always
// emitted so a body starting with --- stays unambiguous; Parse(Serialize(d))
// yields d for every parsed document.
func Serialize(doc *models.Document) ([]byte, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k, v string) {
		style := yaml.Style(0)
		if strings.ContainsAny(v, "\n\r\t") {
			style = yaml.DoubleQuotedStyle
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: style},
		)
	}

	if doc.Layout != "" {
		add(KeyLayout, string(doc.Layout))
	}
	if doc.Title != "" {
		add(KeyTitle, doc.Title)
	}
	if doc.Permalink != "" {
		add(KeyPermalink, doc.Permalink)
	}
	keys := make([]string, 0, len(doc.Extra))
	for k := range doc.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, doc.Extra[k])
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if len(m.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return nil, fmt.Errorf("parser: encode front-matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode front-matter: %w", err)
		}
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(doc.Body)
	return buf.Bytes(), nil
}
