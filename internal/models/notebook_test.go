package models

import (
	"errors"
	"testing"

	"github.com/starford/onexport/internal/apperr"
)

const (
	sectionA = "AAAAAAAAAAAAAAAA"
	sectionB = "BBBBBBBBBBBBBBBB"
)

func sampleNotebook() *Notebook {
	return NewNotebook("Work Notes",
		[]Section{NewSection(sectionA, "Projects"), NewSection(sectionB, "Archive")},
		[]Page{
			NewPage("{{"+sectionA+"}{1}{E1}", "Kickoff", sectionA),
			NewPage("{{"+sectionB+"}{1}{E2}", "Old stuff", sectionB),
		},
		"<raw/>")
}

func TestNewNotebook_DerivesSlugs(t *testing.T) {
	nb := sampleNotebook()
	if nb.Slug != "work-notes" {
		t.Errorf("notebook slug = %q", nb.Slug)
	}
	if nb.Sections[0].Slug != "projects" {
		t.Errorf("section slug = %q", nb.Sections[0].Slug)
	}
	if nb.Pages[1].Slug != "old-stuff" {
		t.Errorf("page slug = %q", nb.Pages[1].Slug)
	}
}

func TestPrefixResolver_Resolves(t *testing.T) {
	nb := sampleNotebook()
	r := DefaultResolver()
	s, err := r.ResolveOwningSection(nb, nb.Pages[1])
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.ID != sectionB {
		t.Errorf("section = %q, want %q", s.ID, sectionB)
	}
}

func TestPrefixResolver_Orphan(t *testing.T) {
	nb := sampleNotebook()
	r := DefaultResolver()

	cases := []Page{
		NewPage("{{CCCCCCCCCCCCCCCC}{1}{E3}", "Lost", sectionA),
		NewPage("short", "Tiny id", sectionA),
	}
	for _, p := range cases {
		if _, err := r.ResolveOwningSection(nb, p); !errors.Is(err, apperr.ErrOrphanPage) {
			t.Errorf("page %q: err = %v, want ErrOrphanPage", p.ID, err)
		}
	}
}

func TestContainmentResolver(t *testing.T) {
	nb := sampleNotebook()
	p := NewPage("no-prefix-here", "Loose", sectionA)
	s, err := ContainmentResolver{}.ResolveOwningSection(nb, p)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.ID != sectionA {
		t.Errorf("section = %q", s.ID)
	}

	p.ContainerID = ""
	if _, err := (ContainmentResolver{}).ResolveOwningSection(nb, p); !errors.Is(err, apperr.ErrOrphanPage) {
		t.Errorf("err = %v, want ErrOrphanPage", err)
	}
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver("", 2, 16)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, ok := r.(PrefixResolver); !ok {
		t.Errorf("default mode resolver = %T", r)
	}
	if _, err := NewResolver("guess", 0, 0); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestWithBodies_DoesNotMutate(t *testing.T) {
	nb := sampleNotebook()
	id := nb.Pages[0].ID
	withBody := nb.WithBodies(map[string]string{id: "<one:Page/>"})

	if nb.Pages[0].Body != "" {
		t.Error("original notebook was mutated")
	}
	if withBody.Pages[0].Body != "<one:Page/>" {
		t.Errorf("body = %q", withBody.Pages[0].Body)
	}
	if withBody.Pages[1].Body != "" {
		t.Error("unexpected body on second page")
	}
}

func TestPagesBySection(t *testing.T) {
	nb := NewNotebook("nb",
		[]Section{NewSection(sectionA, "A")},
		[]Page{
			NewPage("{{"+sectionA+"}{1}{E1}", "one", sectionA),
			NewPage("{{ZZZZZZZZZZZZZZZZ}{1}{E2}", "two", sectionA),
		}, "")
	grouped, errs := PagesBySection(nb, DefaultResolver())
	if len(grouped[sectionA]) != 1 {
		t.Errorf("pages in A = %d, want 1", len(grouped[sectionA]))
	}
	if len(errs) != 1 || !errors.Is(errs[0], apperr.ErrOrphanPage) {
		t.Errorf("errs = %v", errs)
	}
}
