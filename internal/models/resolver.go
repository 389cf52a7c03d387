package models

import (
	"fmt"

	"github.com/starford/onexport/internal/apperr"
)

// Owner resolution modes accepted by NewResolver.
const (
	OwnerModePrefix      = "prefix"
	OwnerModeContainment = "containment"
)

// Default position of the owning section id inside a page id.
const (
	DefaultOwnerOffset = 2
	DefaultOwnerLength = 16
)

// OwnerResolver finds the section a page belongs to. Failures wrap
// apperr.ErrOrphanPage.
type OwnerResolver interface {
	ResolveOwningSection(nb *Notebook, p Page) (*Section, error)
}

// PrefixResolver reads the owning section id from a fixed-width substring of
// the page id.
type PrefixResolver struct {
	Offset int
	Length int
}

// DefaultResolver returns the resolver matching the hierarchy id layout the
// exporter was first written against.
func DefaultResolver() PrefixResolver {
	return PrefixResolver{Offset: DefaultOwnerOffset, Length: DefaultOwnerLength}
}

// ResolveOwningSection implements OwnerResolver.
func (r PrefixResolver) ResolveOwningSection(nb *Notebook, p Page) (*Section, error) {
	end := r.Offset + r.Length
	if r.Offset < 0 || r.Length <= 0 || len(p.ID) < end {
		return nil, fmt.Errorf("%w: id %q too short for section reference [%d:%d]", apperr.ErrOrphanPage, p.ID, r.Offset, end)
	}
	return lookup(nb, p.ID[r.Offset:end])
}

// ContainmentResolver uses the section element the parser found the page in.
type ContainmentResolver struct{}

// ResolveOwningSection implements OwnerResolver.
func (ContainmentResolver) ResolveOwningSection(nb *Notebook, p Page) (*Section, error) {
	if p.ContainerID == "" {
		return nil, fmt.Errorf("%w: page %q has no container", apperr.ErrOrphanPage, p.ID)
	}
	return lookup(nb, p.ContainerID)
}

func lookup(nb *Notebook, sectionID string) (*Section, error) {
	var found *Section
	for i := range nb.Sections {
		if nb.Sections[i].ID != sectionID {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: section id %q is ambiguous", apperr.ErrOrphanPage, sectionID)
		}
		found = &nb.Sections[i]
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no section with id %q", apperr.ErrOrphanPage, sectionID)
	}
	return found, nil
}

// NewResolver builds the resolver for mode. offset and length only apply to
// prefix mode.
func NewResolver(mode string, offset, length int) (OwnerResolver, error) {
	switch mode {
	case "", OwnerModePrefix:
		return PrefixResolver{Offset: offset, Length: length}, nil
	case OwnerModeContainment:
		return ContainmentResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown owner resolution mode %q", mode)
	}
}

// PagesBySection groups pages by resolved owner, keyed by section id. Pages
// that cannot be resolved are returned separately with their errors.
func PagesBySection(nb *Notebook, r OwnerResolver) (map[string][]Page, []error) {
	out := make(map[string][]Page, len(nb.Sections))
	var errs []error
	for _, p := range nb.Pages {
		s, err := r.ResolveOwningSection(nb, p)
		if err != nil {
			errs = append(errs, &apperr.PageError{PageID: p.ID, Err: err})
			continue
		}
		out[s.ID] = append(out[s.ID], p)
	}
	return out, errs
}
