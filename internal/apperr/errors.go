// Package apperr defines the error taxonomy shared by the parser, the site
// generator and the services built on top of them.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput reports hierarchy markup that cannot be traversed.
	// Fatal: no partial notebook is returned.
	ErrMalformedInput = errors.New("malformed input")
	// ErrOrphanPage reports a page whose owning section cannot be resolved.
	ErrOrphanPage = errors.New("orphan page")
	// ErrWriteFailure reports a filesystem error for a single output file.
	ErrWriteFailure = errors.New("write failure")
	// ErrLayoutFailure reports that the output directories could not be created.
	// Fatal for the whole generation run.
	ErrLayoutFailure = errors.New("layout failure")

	ErrNotFound = errors.New("not found")
)

// PageError attaches page context to a per-page generation failure.
type PageError struct {
	PageID string
	Path   string
	Err    error
}

func (e *PageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("page %s: %v", e.PageID, e.Err)
	}
	return fmt.Sprintf("page %s (%s): %v", e.PageID, e.Path, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Kind returns a short label for the sentinel wrapped by err, for reports
// and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrOrphanPage):
		return "orphan_page"
	case errors.Is(err, ErrWriteFailure):
		return "write_failure"
	case errors.Is(err, ErrLayoutFailure):
		return "layout_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
