package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":                nil,
		"malformed_input": fmt.Errorf("%w: bad", ErrMalformedInput),
		"orphan_page":     &PageError{PageID: "p", Err: ErrOrphanPage},
		"write_failure":   errors.Join(&PageError{PageID: "p", Path: "a.yaml", Err: ErrWriteFailure}),
		"layout_failure":  fmt.Errorf("x: %w", ErrLayoutFailure),
		"not_found":       ErrNotFound,
		"cancelled":       &PageError{PageID: "p", Err: context.Canceled},
		"internal":        errors.New("boom"),
	}
	for want, err := range cases {
		if got := Kind(err); got != want {
			t.Errorf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestPageError(t *testing.T) {
	err := &PageError{PageID: "p1", Path: "s/a.yaml", Err: ErrWriteFailure}
	if err.Error() != "page p1 (s/a.yaml): write failure" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrWriteFailure) {
		t.Error("PageError should unwrap to its cause")
	}
	if (&PageError{PageID: "p2", Err: ErrOrphanPage}).Error() != "page p2: orphan page" {
		t.Error("unexpected message without path")
	}
}
