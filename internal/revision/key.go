package revision

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key returns the identity used to group revisions of one article: case
// folded, diacritics removed, punctuation and symbols dropped, whitespace
// collapsed.
func Key(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, title)
	if err != nil {
		stripped = title
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			space = true
		}
	}
	return b.String()
}

// keyFor falls back to the last permalink segment when a document has no
// usable title.
func keyFor(title, link string) string {
	if k := Key(title); k != "" {
		return k
	}
	return Key(path.Base(link))
}
