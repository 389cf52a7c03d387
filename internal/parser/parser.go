// Package parser turns notebook hierarchy markup into a models.Notebook in a
// single forward pass over the XML token stream.
package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starford/onexport/internal/apperr"
	"github.com/starford/onexport/internal/models"
)

// Element local names, matched regardless of namespace prefix.
const (
	notebookElement = "Notebook"
	sectionElement  = "Section"
	pageElement     = "Page"
)

// Parse builds a Notebook from hierarchy markup. Every failure wraps
// apperr.ErrMalformedInput and no partial notebook is returned.
func Parse(markup string) (*models.Notebook, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, malformed("empty document")
	}

	w := &walker{
		dec:  xml.NewDecoder(strings.NewReader(markup)),
		seen: make(map[string]struct{}),
	}
	w.dec.Strict = true

	root, err := w.advanceToNotebook()
	if err != nil {
		return nil, err
	}
	displayName := attr(root, "nickname")
	if displayName == "" {
		displayName = attr(root, "name")
	}

	if err := w.notebook(); err != nil {
		return nil, err
	}
	// Read to EOF so trailing garbage is still reported.
	if err := w.drain(); err != nil {
		return nil, err
	}

	return models.NewNotebook(displayName, w.sections, w.pages, markup), nil
}

// ParseReader reads the whole document from r and parses it. The raw markup
// is kept on the notebook, so the document is buffered.
func ParseReader(r io.Reader) (*models.Notebook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parser: read markup: %w", err)
	}
	return Parse(string(data))
}

type walker struct {
	dec      *xml.Decoder
	sections []models.Section
	pages    []models.Page
	seen     map[string]struct{}
}

// next returns the next token, treating EOF as truncation since callers only
// use it while an element is still open.
func (w *walker) next() (xml.Token, error) {
	tok, err := w.dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, malformed("unexpected end of document")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrMalformedInput, err)
	}
	return tok, nil
}

func (w *walker) advanceToNotebook() (xml.StartElement, error) {
	for {
		tok, err := w.dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, malformed("no %s element", notebookElement)
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("%w: %w", apperr.ErrMalformedInput, err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == notebookElement {
			return se, nil
		}
	}
}

// notebook consumes the notebook subtree. Sections may sit at any depth
// (section groups) and are visited in document order.
func (w *walker) notebook() error {
	depth := 0
	for {
		tok, err := w.next()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case sectionElement:
				if err := w.section(t); err != nil {
					return err
				}
				continue
			case notebookElement:
				return malformed("nested %s element", notebookElement)
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// section consumes one section subtree. Its pages are recorded as they are
// met and the section itself is recorded once its end element is reached.
func (w *walker) section(start xml.StartElement) error {
	id := attr(start, "ID")
	if id == "" {
		return malformed("%s without ID", sectionElement)
	}
	name := attr(start, "name")

	depth := 0
	for {
		tok, err := w.next()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case sectionElement:
				return malformed("%s %q nested in %s %q", sectionElement, attr(t, "ID"), sectionElement, id)
			case pageElement:
				pageID := attr(t, "ID")
				if pageID == "" {
					return malformed("%s without ID in %s %q", pageElement, sectionElement, id)
				}
				w.pages = append(w.pages, models.NewPage(pageID, attr(t, "name"), id))
			}
			depth++
		case xml.EndElement:
			if depth > 0 {
				depth--
				continue
			}
			if _, dup := w.seen[id]; dup {
				return malformed("duplicate %s ID %q", sectionElement, id)
			}
			w.seen[id] = struct{}{}
			w.sections = append(w.sections, models.NewSection(id, name))
			return nil
		}
	}
}

func (w *walker) drain() error {
	for {
		_, err := w.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrMalformedInput, err)
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrMalformedInput, fmt.Sprintf(format, args...))
}
