package scan

import (
	"path"
	"runtime"
	"strings"
)

// Options control which files are scanned and how documents are classified.
type Options struct {
	// DraftDirs name directories whose documents are drafts.
	DraftDirs []string
	// PostDirs name directories whose documents default to the post layout.
	PostDirs []string
	// Extensions lists content file extensions, including the dot.
	Extensions []string
	// Exclude holds path.Match globs matched against root-relative paths.
	Exclude []string
	// Workers bounds parallel parsing; zero uses GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the Jekyll conventions.
func DefaultOptions() Options {
	return Options{
		DraftDirs:  []string{"_drafts"},
		PostDirs:   []string{"_posts"},
		Extensions: []string{".md", ".markdown", ".html"},
	}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// skippedDirs are never content.
var skippedDirs = map[string]struct{}{
	"_site":         {},
	".git":          {},
	"node_modules":  {},
	"vendor":        {},
	".jekyll-cache": {},
	".sass-cache":   {},
	".bundle":       {},
}

// filter implements storage.Filter for Options.
type filter struct {
	opts Options
}

func (f filter) SkipDir(rel string) bool {
	base := path.Base(rel)
	if _, ok := skippedDirs[base]; ok {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasPrefix(base, "_") && !contains(f.opts.DraftDirs, base) && !contains(f.opts.PostDirs, base) {
		return true
	}
	return f.excluded(rel)
}

func (f filter) Include(rel string) bool {
	base := path.Base(rel)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") {
		return false
	}
	ext := strings.ToLower(path.Ext(base))
	if !contains(f.opts.Extensions, ext) {
		return false
	}
	return !f.excluded(rel)
}

func (f filter) excluded(rel string) bool {
	for _, pattern := range f.opts.Exclude {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// inDirs reports whether any directory segment of rel is listed in dirs.
func inDirs(rel string, dirs []string) bool {
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	for _, seg := range strings.Split(dir, "/") {
		if contains(dirs, seg) {
			return true
		}
	}
	return false
}
