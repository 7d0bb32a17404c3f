package revision

import (
	"errors"
	"testing"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/registry"
)

func reg(t *testing.T, docs ...*models.Document) *registry.Registry {
	t.Helper()
	r := registry.New()
	for _, d := range docs {
		_ = r.Register(d)
	}
	r.Seal()
	return r
}

func d(link, title string, status models.Status, sum string) *models.Document {
	return &models.Document{Permalink: link, Title: title, Status: status, Source: link + ".md", Checksum: sum}
}

func TestKey(t *testing.T) {
	cases := map[string]string{
		"Enum vs Booleans":   "enum vs booleans",
		"enum VS. booleans!": "enum vs booleans",
		"  Useful   Java  ":  "useful java",
		"Café—Crème":         "cafecreme",
		"Enum-vs-Boolean":    "enum vs boolean",
		"Java's Optional<T>": "javas optionalt",
		"":                   "",
	}
	for in, want := range cases {
		if got := Key(in); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReconcile_DraftSupersededByPublished(t *testing.T) {
	res := Reconcile(reg(t,
		d("/b", "Foo", models.StatusDraft, "x"),
		d("/b-final", "Foo", models.StatusPublished, "y"),
	))
	if len(res.Ambiguous) != 0 {
		t.Fatalf("ambiguous = %+v", res.Ambiguous)
	}
	if len(res.Revisions) != 1 {
		t.Fatalf("revisions = %+v", res.Revisions)
	}
	g := res.Revisions[0]
	if g.State != StateCanonical || g.Canonical == nil || g.Canonical.Permalink != "/b-final" {
		t.Errorf("group = %+v", g)
	}
	if len(g.Superseded) != 1 || g.Superseded[0].Permalink != "/b" || g.Superseded[0].Identical {
		t.Errorf("superseded = %+v", g.Superseded)
	}
}

func TestReconcile_IdenticalDraftFlagged(t *testing.T) {
	res := Reconcile(reg(t,
		d("/useful", "Useful Java Classes", models.StatusPublished, "same"),
		d("/useful-draft", "useful java classes", models.StatusDraft, "same"),
	))
	if len(res.Revisions) != 1 || !res.Revisions[0].Superseded[0].Identical {
		t.Errorf("revisions = %+v", res.Revisions)
	}
}

func TestReconcile_IdenticalIgnoresLineEndings(t *testing.T) {
	res := Reconcile(reg(t,
		d("/useful", "Useful", models.StatusPublished, checksum.Body([]byte("line one\nline two\n"))),
		d("/useful-draft", "Useful", models.StatusDraft, checksum.Body([]byte("line one  \r\nline two\t\r\n"))),
		d("/useful-old", "Useful", models.StatusDraft, checksum.Body([]byte("line one\nline 2\n"))),
	))
	if len(res.Revisions) != 1 {
		t.Fatalf("revisions = %+v", res.Revisions)
	}
	for _, m := range res.Revisions[0].Superseded {
		if want := m.Permalink == "/useful-draft"; m.Identical != want {
			t.Errorf("%s identical = %v, want %v", m.Permalink, m.Identical, want)
		}
	}
}

func TestReconcile_Ambiguous(t *testing.T) {
	res := Reconcile(reg(t,
		d("/coding/style/enum-vs-boolean", "Enum vs Booleans", models.StatusPublished, "a"),
		d("/enum-vs-boolean", "Enum vs Booleans", models.StatusPublished, "b"),
	))
	if len(res.Ambiguous) != 1 {
		t.Fatalf("ambiguous = %+v", res.Ambiguous)
	}
	g := res.Ambiguous[0]
	if g.Key != "enum vs booleans" || g.State != StateAmbiguous || len(g.Members) != 2 {
		t.Errorf("group = %+v", g)
	}
	if !errors.Is(g.Err(), apperr.ErrAmbiguousRevision) {
		t.Errorf("Err() = %v", g.Err())
	}
	if len(res.Errors()) != 1 {
		t.Errorf("Errors() = %v", res.Errors())
	}
}

func TestReconcile_DraftsOnly(t *testing.T) {
	res := Reconcile(reg(t,
		d("/wip", "Work In Progress", models.StatusDraft, "a"),
		d("/wip-2", "Work in progress", models.StatusDraft, "b"),
		d("/lonely", "Lonely Draft", models.StatusDraft, "c"),
	))
	if len(res.UnresolvedDrafts) != 2 {
		t.Fatalf("unresolved = %+v", res.UnresolvedDrafts)
	}
	for _, g := range res.UnresolvedDrafts {
		if g.State != StateUnresolvedDraft || g.Err() != nil {
			t.Errorf("group = %+v", g)
		}
	}
	if len(res.Ambiguous) != 0 || len(res.Revisions) != 0 {
		t.Errorf("unexpected groups: %+v", res)
	}
}

func TestReconcile_SinglePublishedNotReported(t *testing.T) {
	res := Reconcile(reg(t, d("/only", "Only", models.StatusPublished, "a")))
	if len(res.Revisions)+len(res.Ambiguous)+len(res.UnresolvedDrafts) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestReconcile_UntitledFallsBackToSlug(t *testing.T) {
	res := Reconcile(reg(t,
		d("/drafts/enum-vs-boolean", "", models.StatusDraft, "a"),
		d("/coding/enum-vs-boolean", "Enum vs Boolean", models.StatusPublished, "b"),
	))
	if len(res.Revisions) != 1 {
		t.Errorf("revisions = %+v", res.Revisions)
	}
}
