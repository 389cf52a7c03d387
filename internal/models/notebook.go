// Package models defines the notebook hierarchy: a notebook, its sections and
// the pages collected across them.
package models

import (
	"github.com/starford/onexport/internal/slug"
)

// Node is the shape shared by sections and pages.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func newNode(id, name string) Node {
	return Node{ID: id, Name: name, Slug: slug.Slug(name)}
}

// Section groups pages. Pages are linked to it by owner resolution, not by
// pointer.
type Section struct {
	Node
}

// NewSection builds a section and derives its slug from name.
func NewSection(id, name string) Section {
	return Section{Node: newNode(id, name)}
}

// Page is a leaf of the hierarchy. Body is opaque page-content markup
// supplied by the host application; the parser never fills it.
type Page struct {
	Node
	// ContainerID is the id of the section element the page was found in.
	ContainerID string `json:"container_id,omitempty"`
	Body        string `json:"-"`
}

// NewPage builds a page and derives its slug from name.
func NewPage(id, name, containerID string) Page {
	return Page{Node: newNode(id, name), ContainerID: containerID}
}

// Notebook is the root of a parsed hierarchy. It is read-only after
// construction.
type Notebook struct {
	DisplayName string    `json:"display_name"`
	Slug        string    `json:"slug"`
	Sections    []Section `json:"sections"`
	// Pages are ordered by section visitation, then document order.
	Pages []Page `json:"pages"`
	// Raw is the verbatim markup the notebook was parsed from.
	Raw string `json:"-"`
}

// NewNotebook assembles a notebook from already ordered sections and pages.
func NewNotebook(displayName string, sections []Section, pages []Page, raw string) *Notebook {
	return &Notebook{
		DisplayName: displayName,
		Slug:        slug.Slug(displayName),
		Sections:    sections,
		Pages:       pages,
		Raw:         raw,
	}
}

// Section returns the section with the given id.
func (nb *Notebook) Section(id string) (*Section, bool) {
	for i := range nb.Sections {
		if nb.Sections[i].ID == id {
			return &nb.Sections[i], true
		}
	}
	return nil, false
}

// Page returns the page with the given id.
func (nb *Notebook) Page(id string) (*Page, bool) {
	for i := range nb.Pages {
		if nb.Pages[i].ID == id {
			return &nb.Pages[i], true
		}
	}
	return nil, false
}

// WithBodies returns a copy of the notebook with page bodies attached from
// bodies (keyed by page id). The receiver is left untouched.
func (nb *Notebook) WithBodies(bodies map[string]string) *Notebook {
	out := *nb
	out.Sections = append([]Section(nil), nb.Sections...)
	out.Pages = make([]Page, len(nb.Pages))
	for i, p := range nb.Pages {
		if body, ok := bodies[p.ID]; ok {
			p.Body = body
		}
		out.Pages[i] = p
	}
	return &out
}

// PageIDs returns every page id in model order.
func (nb *Notebook) PageIDs() []string {
	ids := make([]string, len(nb.Pages))
	for i, p := range nb.Pages {
		ids[i] = p.ID
	}
	return ids
}

// SectionIDs returns every section id in model order.
func (nb *Notebook) SectionIDs() []string {
	ids := make([]string, len(nb.Sections))
	for i, s := range nb.Sections {
		ids[i] = s.ID
	}
	return ids
}
