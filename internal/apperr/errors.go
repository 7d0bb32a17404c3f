package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrMalformedDocument  = errors.New("malformed document")
	ErrDuplicatePermalink = errors.New("duplicate permalink")
	ErrAmbiguousRevision  = errors.New("ambiguous revision")
	ErrInvalidDocument    = errors.New("invalid document")
	ErrSealed             = errors.New("registry is sealed")
)
