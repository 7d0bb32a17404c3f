package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nlayout: post\ntitle: Enum vs Booleans\npermalink: /coding/style/enum-vs-boolean\n---\n# Heading\nBody text.\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Enum vs Booleans" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.Layout != models.LayoutPost {
		t.Errorf("layout = %q, want post", doc.Layout)
	}
	if doc.Permalink != "/coding/style/enum-vs-boolean" {
		t.Errorf("permalink = %q", doc.Permalink)
	}
	if doc.Body != "# Heading\nBody text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
	if doc.Checksum == "" {
		t.Error("expected checksum")
	}
	if doc.Extra != nil {
		t.Errorf("extra = %v, want nil", doc.Extra)
	}
}

func TestParse_UnknownKeysPreserved(t *testing.T) {
	input := []byte("---\ntitle: Useful Java Classes\ndate: 2019-03-01\ntags: [java, util]\npublished: false\n---\nbody\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		"date":      "2019-03-01",
		"tags":      "[java, util]",
		"published": "false",
	}
	if !reflect.DeepEqual(doc.Extra, want) {
		t.Errorf("extra = %v, want %v", doc.Extra, want)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "" || doc.Permalink != "" {
		t.Errorf("expected empty fields, got %+v", doc)
	}
	if doc.Body != string(input) {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_Unterminated(t *testing.T) {
	cases := []string{
		"---\ntitle: Open\nbody without close\n",
		"---",
		"---\n",
	}
	for _, in := range cases {
		_, err := Parse([]byte(in))
		if err == nil {
			t.Errorf("Parse(%q): expected error", in)
			continue
		}
		if !errors.Is(err, apperr.ErrMalformedDocument) {
			t.Errorf("Parse(%q): err = %v, want ErrMalformedDocument", in, err)
		}
		var me *MalformedError
		if !errors.As(err, &me) {
			t.Errorf("Parse(%q): expected *MalformedError", in)
		}
	}
}

func TestParse_InvalidYAMLIsMalformed(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !IsMalformed(err) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func TestParse_NonMappingIsMalformed(t *testing.T) {
	_, err := Parse([]byte("---\n- a\n- b\n---\nBody\n"))
	if !IsMalformed(err) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func TestParse_NonScalarTitleIsMalformed(t *testing.T) {
	_, err := Parse([]byte("---\ntitle:\n  - a\n---\nBody\n"))
	if !IsMalformed(err) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func TestParse_EmptyFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("---\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Body != "Body\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_CRLFAndBOM(t *testing.T) {
	input := []byte("\xEF\xBB\xBF---\r\ntitle: Windows\r\n---\r\nline one\r\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Windows" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.Body != "line one\r\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_ClosingDelimiterAtEOF(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: Tail\n---"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Tail" || doc.Body != "" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestParse_NullValue(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: T\ncategory:\n---\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := doc.Extra["category"]; !ok || v != "" {
		t.Errorf("extra = %v", doc.Extra)
	}
}
