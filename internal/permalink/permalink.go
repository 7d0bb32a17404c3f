// Package permalink normalizes site-relative paths so that front-matter
// permalinks and link targets compare equal.
package permalink

import (
	"path"
	"regexp"
	"strings"
)

var datePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)

// Normalize returns the canonical form of a site path: leading slash, no
// query or fragment, no trailing slash, and no index.html or .html suffix.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	for _, suffix := range []string{"/index.html", "/index.htm"} {
		if strings.HasSuffix(p, suffix) {
			p = strings.TrimSuffix(p, suffix)
		}
	}
	if p != "/" {
		p = strings.TrimSuffix(p, ".html")
		p = strings.TrimSuffix(p, ".htm")
	}
	if p == "" {
		p = "/"
	}
	return p
}

// IsSiteRelative reports whether a link target addresses this site by
// absolute path (as opposed to an external URL or a relative reference).
func IsSiteRelative(target string) bool {
	t := strings.TrimSpace(target)
	return strings.HasPrefix(t, "/") && !strings.HasPrefix(t, "//")
}

// FromPath derives a permalink from a content-root-relative file path when
// the front-matter does not set one. Dated post filenames lose their date
// prefix and index files collapse to their directory. Segments listed in
// strip (such as _posts or _drafts) are dropped.
func FromPath(rel string, strip ...string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	dir, file := path.Split(rel)

	var segs []string
	for _, s := range strings.Split(strings.Trim(dir, "/"), "/") {
		if s == "" || contains(strip, s) {
			continue
		}
		segs = append(segs, s)
	}

	stem := strings.TrimSuffix(file, path.Ext(file))
	stem = datePrefixRe.ReplaceAllString(stem, "")
	if stem != "index" && stem != "" {
		segs = append(segs, stem)
	}
	return Normalize("/" + strings.Join(segs, "/"))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
