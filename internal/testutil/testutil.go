// Package testutil provides shared test helpers: hierarchy markup fixtures,
// temporary catalogue databases and export roots.
package testutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/onexport/internal/index"
)

// Namespace is the hierarchy namespace used by fixtures.
const Namespace = "http://schemas.microsoft.com/office/onenote/2013/onenote"

// Section describes a section element and its pages.
type Section struct {
	ID    string
	Name  string
	Pages []Page
}

// Page describes a page element.
type Page struct {
	ID   string
	Name string
}

// SectionID returns a 16 character section id built from seed.
func SectionID(seed string) string {
	id := seed
	for len(id) < 16 {
		id += "0"
	}
	return id[:16]
}

// PageID returns a page id that embeds sectionID where the default owner
// resolver expects it.
func PageID(sectionID, suffix string) string {
	return "{{" + sectionID + "}{1}{" + suffix + "}"
}

// Hierarchy renders hierarchy markup for one notebook.
func Hierarchy(nickname string, sections ...Section) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	fmt.Fprintf(&b, `<one:Notebooks xmlns:one="%s">`+"\n", Namespace)
	fmt.Fprintf(&b, `  <one:Notebook name="%s" nickname="%s" ID="{NB-%s}">`+"\n", esc(nickname), esc(nickname), esc(nickname))
	for _, s := range sections {
		fmt.Fprintf(&b, `    <one:Section name="%s" ID="%s">`+"\n", esc(s.Name), esc(s.ID))
		for _, p := range s.Pages {
			fmt.Fprintf(&b, `      <one:Page ID="%s" name="%s" pageLevel="1"/>`+"\n", esc(p.ID), esc(p.Name))
		}
		b.WriteString("    </one:Section>\n")
	}
	b.WriteString("  </one:Notebook>\n</one:Notebooks>\n")
	return b.String()
}

// SampleHierarchy returns a notebook with one section holding two pages and
// one empty section.
func SampleHierarchy() string {
	a, b := SectionID("AAAA"), SectionID("BBBB")
	return Hierarchy("Work Notes",
		Section{ID: a, Name: "Projects", Pages: []Page{
			{ID: PageID(a, "E1"), Name: "Kickoff"},
			{ID: PageID(a, "E2"), Name: "Follow up"},
		}},
		Section{ID: b, Name: "Empty"},
	)
}

func esc(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// TestDB creates a temporary catalogue database that is automatically
// cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "onexport-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
