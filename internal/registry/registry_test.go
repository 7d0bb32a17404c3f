package registry

import (
	"errors"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

func published(link, source string) *models.Document {
	return &models.Document{Permalink: link, Source: source, Status: models.StatusPublished}
}

func draft(link, source string) *models.Document {
	return &models.Document{Permalink: link, Source: source, Status: models.StatusDraft}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	d := published("/a", "a.md")
	if err := r.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := r.Lookup("/a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != d {
		t.Errorf("Lookup returned %+v, want the registered document", got)
	}
}

func TestLookup_NotFound(t *testing.T) {
	r := New()
	if _, err := r.Lookup("/missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := r.LookupPublished("/missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRegister_DuplicatePublished(t *testing.T) {
	r := New()
	if err := r.Register(published("/a", "one.md")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(published("/a", "two.md"))
	if !errors.Is(err, apperr.ErrDuplicatePermalink) {
		t.Fatalf("err = %v, want ErrDuplicatePermalink", err)
	}
	var de *DuplicateError
	if !errors.As(err, &de) || de.Existing != "one.md" || de.Source != "two.md" {
		t.Errorf("duplicate error = %+v", de)
	}

	// Both retained.
	if n := len(r.LookupAll("/a")); n != 2 {
		t.Errorf("LookupAll = %d docs, want 2", n)
	}
	conflicts := r.Conflicts()
	if len(conflicts) != 1 || conflicts[0].Permalink != "/a" {
		t.Fatalf("conflicts = %+v", conflicts)
	}
	if !slices.Equal(conflicts[0].Sources, []string{"one.md", "two.md"}) {
		t.Errorf("sources = %v", conflicts[0].Sources)
	}
}

func TestRegister_DraftSharesPermalink(t *testing.T) {
	r := New()
	if err := r.Register(draft("/b", "_drafts/b.md")); err != nil {
		t.Fatalf("Register draft: %v", err)
	}
	if err := r.Register(published("/b", "_posts/b.md")); err != nil {
		t.Fatalf("Register published: %v", err)
	}
	if err := r.Register(draft("/b", "_drafts/b2.md")); err != nil {
		t.Fatalf("Register second draft: %v", err)
	}
	if len(r.Conflicts()) != 0 {
		t.Errorf("drafts must not conflict: %+v", r.Conflicts())
	}
	pub, err := r.LookupPublished("/b")
	if err != nil || pub.Source != "_posts/b.md" {
		t.Errorf("LookupPublished = %+v, %v", pub, err)
	}
	last, _ := r.Lookup("/b")
	if last.Source != "_drafts/b2.md" {
		t.Errorf("Lookup = %s, want the latest registration", last.Source)
	}
}

func TestRegister_EmptyPermalink(t *testing.T) {
	r := New()
	if err := r.Register(&models.Document{Status: models.StatusPublished}); !errors.Is(err, apperr.ErrInvalidDocument) {
		t.Errorf("err = %v, want ErrInvalidDocument", err)
	}
	if err := r.Register(nil); !errors.Is(err, apperr.ErrInvalidDocument) {
		t.Errorf("err = %v, want ErrInvalidDocument", err)
	}
}

func TestSeal(t *testing.T) {
	r := New()
	r.Seal()
	if err := r.Register(published("/a", "a.md")); !errors.Is(err, apperr.ErrSealed) {
		t.Errorf("err = %v, want ErrSealed", err)
	}
}

func TestAll_FilterAndRestart(t *testing.T) {
	r := New()
	_ = r.Register(published("/a", "a.md"))
	_ = r.Register(draft("/b", "b.md"))
	_ = r.Register(published("/c", "c.md"))

	seq := r.All(models.StatusPublished)
	for range 2 {
		var got []string
		for d := range seq {
			got = append(got, d.Permalink)
		}
		if !slices.Equal(got, []string{"/a", "/c"}) {
			t.Errorf("published = %v", got)
		}
	}

	var drafts []string
	for d := range r.All(models.StatusDraft) {
		drafts = append(drafts, d.Permalink)
	}
	if !slices.Equal(drafts, []string{"/b"}) {
		t.Errorf("drafts = %v", drafts)
	}

	n := 0
	for range r.All("") {
		n++
	}
	if n != 3 {
		t.Errorf("all = %d, want 3", n)
	}
}

func TestAll_EarlyBreak(t *testing.T) {
	r := New()
	_ = r.Register(published("/a", "a.md"))
	_ = r.Register(published("/b", "b.md"))
	n := 0
	for range r.All(models.StatusPublished) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("n = %d", n)
	}
}

// Registering the same published permalink several times yields exactly one
// conflict entry whatever the insertion order.
func TestConflicts_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		links := rapid.SliceOfN(rapid.SampledFrom([]string{"/a", "/b", "/c"}), 1, 12).Draw(rt, "links")
		statuses := rapid.SliceOfN(rapid.Bool(), len(links), len(links)).Draw(rt, "published")

		docs := make([]*models.Document, len(links))
		for i, l := range links {
			if statuses[i] {
				docs[i] = published(l, "p"+string(rune('a'+i))+".md")
			} else {
				docs[i] = draft(l, "d"+string(rune('a'+i))+".md")
			}
		}
		perm := rapid.Permutation(docs).Draw(rt, "order")

		forward, shuffled := New(), New()
		for _, d := range docs {
			_ = forward.Register(d)
		}
		for _, d := range perm {
			_ = shuffled.Register(d)
		}

		a, b := forward.Conflicts(), shuffled.Conflicts()
		if len(a) != len(b) {
			rt.Fatalf("conflicts differ: %+v vs %+v", a, b)
		}
		for i := range a {
			if a[i].Permalink != b[i].Permalink || !slices.Equal(a[i].Sources, b[i].Sources) {
				rt.Fatalf("conflicts differ: %+v vs %+v", a, b)
			}
		}

		want := map[string]int{}
		for i, l := range links {
			if statuses[i] {
				want[l]++
			}
		}
		dupes := 0
		for _, n := range want {
			if n > 1 {
				dupes++
			}
		}
		if len(a) != dupes {
			rt.Fatalf("got %d conflicts, want %d", len(a), dupes)
		}
	})
}
