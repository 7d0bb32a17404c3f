package parser

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Liquid base-url prefixes make destinations contain spaces, which CommonMark
// refuses as link destinations. They carry no routing information here.
var baseURLRe = regexp.MustCompile(`\{\{\s*site\.baseurl\s*\}\}`)

// ExtractLinks returns every link destination in body, in document order.
// Inline and reference links, autolinks, reference definitions and <a href>
// inside raw HTML are included; images and code are not.
func ExtractLinks(body string) []string {
	src := baseURLRe.ReplaceAll([]byte(body), nil)

	ctx := gmparser.NewContext()
	root := goldmark.New().Parser().Parse(text.NewReader(src), gmparser.WithContext(ctx))

	var out []string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Link:
			out = append(out, string(node.Destination))
		case *gmast.AutoLink:
			out = append(out, string(node.URL(src)))
		case *gmast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				buf.Write(seg.Value(src))
			}
			out = append(out, anchorHrefs(buf.Bytes())...)
		case *gmast.HTMLBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			if node.HasClosure() {
				buf.Write(node.ClosureLine.Value(src))
			}
			out = append(out, anchorHrefs(buf.Bytes())...)
		case *gmast.CodeSpan, *gmast.FencedCodeBlock, *gmast.CodeBlock:
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not the AST.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		out = append(out, string(ref.Destination()))
	}
	return out
}

// anchorHrefs returns the href of every <a> start tag in an HTML fragment.
func anchorHrefs(fragment []byte) []string {
	var out []string
	z := html.NewTokenizer(bytes.NewReader(fragment))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			for _, attr := range tok.Attr {
				if strings.EqualFold(attr.Key, "href") && attr.Val != "" {
					out = append(out, attr.Val)
				}
			}
		}
	}
}
