// Package models defines the domain types for Quire.
package models

// Status records whether a document came from a drafts area.
type Status string

// Document statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Layout is the front-matter layout tag. Values outside the known set are
// kept verbatim.
type Layout string

// Known layouts.
const (
	LayoutPost Layout = "post"
	LayoutPage Layout = "page"
)

// Known reports whether l is post or page.
func (l Layout) Known() bool {
	return l == LayoutPost || l == LayoutPage
}

// Document is a parsed content file.
type Document struct {
	Permalink string            `json:"permalink" yaml:"permalink"`
	Title     string            `json:"title" yaml:"title"`
	Layout    Layout            `json:"layout" yaml:"layout"`
	Body      string            `json:"-" yaml:"-"`
	Status    Status            `json:"status" yaml:"status"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
	Source    string            `json:"source" yaml:"source"`
	Checksum  string            `json:"checksum" yaml:"checksum"`
}

// IsDraft is shorthand for Status == StatusDraft.
func (d *Document) IsDraft() bool {
	return d.Status == StatusDraft
}

// CrossReference is an internal link from one document to a permalink.
type CrossReference struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Raw    string `json:"raw,omitempty" yaml:"raw,omitempty"`
}
