// Package source is the boundary to the application that owns the notebook.
// It hands out hierarchy markup and per-page content markup on demand.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoContent is returned by PageContent when the host has no body for a
// page. Callers treat it as an empty body.
var ErrNoContent = errors.New("source: no page content")

// Source supplies raw markup.
type Source interface {
	Hierarchy(ctx context.Context) (string, error)
	PageContent(ctx context.Context, pageID string) (string, error)
}

// Files reads markup previously exported to disk: the hierarchy from one
// file and page bodies from <PagesDir>/<page-id>.xml.
type Files struct {
	HierarchyPath string
	PagesDir      string
}

var _ Source = Files{}

// Hierarchy implements Source.
func (f Files) Hierarchy(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.HierarchyPath == "" {
		return "", errors.New("source: hierarchy path is not set")
	}
	data, err := os.ReadFile(f.HierarchyPath)
	if err != nil {
		return "", fmt.Errorf("source: read hierarchy: %w", err)
	}
	return string(data), nil
}

// PageContent implements Source. Without a PagesDir every page has no body.
func (f Files) PageContent(ctx context.Context, pageID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.PagesDir == "" {
		return "", ErrNoContent
	}
	if pageID == "" || strings.ContainsAny(pageID, `/\`) || pageID == "." || pageID == ".." {
		return "", fmt.Errorf("source: page id %q cannot name a file", pageID)
	}
	data, err := os.ReadFile(filepath.Join(f.PagesDir, pageID+".xml"))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoContent
	}
	if err != nil {
		return "", fmt.Errorf("source: read page %s: %w", pageID, err)
	}
	return string(data), nil
}

// Static serves markup held in memory. It backs exports triggered with the
// markup inline, where no page bodies are available.
type Static struct {
	Markup string
	Bodies map[string]string
}

var _ Source = Static{}

// Hierarchy implements Source.
func (s Static) Hierarchy(ctx context.Context) (string, error) {
	return s.Markup, ctx.Err()
}

// PageContent implements Source.
func (s Static) PageContent(ctx context.Context, pageID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, ok := s.Bodies[pageID]
	if !ok {
		return "", ErrNoContent
	}
	return body, nil
}
