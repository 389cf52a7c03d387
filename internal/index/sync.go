package index

import (
	"bytes"
	"cmp"
	"context"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/starford/onexport/internal/frontmatter"
	"github.com/starford/onexport/internal/models"
	"github.com/starford/onexport/internal/parser"
	"github.com/starford/onexport/internal/storage"
)

// SyncOptions names the files the generator writes inside a notebook
// directory and how it attributed pages to sections.
type SyncOptions struct {
	RawFilename string
	Extension   string
	// Resolver defaults to models.DefaultResolver.
	Resolver models.OwnerResolver
}

// Sync rebuilds the catalogue from an exported collection rooted at store:
//   - every <notebook>/<RawFilename> is parsed for sections and page order
//   - every page header under that notebook is decoded and recorded
//   - page bodies next to their headers are picked up for search
//
// When several headers carry the same page id the most recently written one
// is kept.
//
// Notebooks whose hierarchy copy cannot be parsed are skipped with a
// warning. It returns the number of notebooks recorded.
func Sync(ctx context.Context, db Catalogue, store storage.Provider, opts SyncOptions, logger *slog.Logger) (int, error) {
	if opts.RawFilename == "" {
		opts.RawFilename = "notebook.xml"
	}
	if opts.Extension == "" {
		opts.Extension = "yaml"
	}
	if opts.Resolver == nil {
		opts.Resolver = models.DefaultResolver()
	}

	raws, err := store.List("", opts.RawFilename)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, m := range raws {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		nbDir := path.Dir(m.Path)
		if path.Base(m.Path) != opts.RawFilename || nbDir == "." || strings.Contains(nbDir, "/") {
			continue
		}
		snap, err := readNotebook(store, nbDir, m.Path, opts, logger)
		if err != nil {
			logger.Warn("sync: notebook skipped", slog.String("notebook", nbDir), slog.String("error", err.Error()))
			continue
		}
		if err := db.ReplaceNotebook(ctx, snap); err != nil {
			return synced, err
		}
		logger.Debug("sync: indexed notebook",
			slog.String("notebook", nbDir),
			slog.Int("pages", len(snap.Pages)))
		synced++
	}
	return synced, nil
}

func readNotebook(store storage.Provider, nbDir, rawPath string, opts SyncOptions, logger *slog.Logger) (Snapshot, error) {
	raw, err := store.Read(rawPath)
	if err != nil {
		return Snapshot{}, err
	}
	nb, err := parser.Parse(string(raw))
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{NotebookSlug: nbDir}
	sectionBySlug := make(map[string]string, len(nb.Sections))
	for _, s := range nb.Sections {
		snap.Sections = append(snap.Sections, SectionRow{ID: s.ID, NotebookSlug: nbDir, Name: s.Name, Slug: s.Slug})
		if _, taken := sectionBySlug[s.Slug]; !taken {
			sectionBySlug[s.Slug] = s.ID
		}
	}
	order := make(map[string]int, len(nb.Pages))
	for i, p := range nb.Pages {
		order[p.ID] = i
	}
	// Sections sharing a slug share a directory, so the resolver decides.
	owner := make(map[string]string, len(nb.Pages))
	grouped, _ := models.PagesBySection(nb, opts.Resolver)
	for sectionID, ps := range grouped {
		for _, p := range ps {
			owner[p.ID] = sectionID
		}
	}

	headers, err := store.List(nbDir, "."+opts.Extension)
	if err != nil {
		return Snapshot{}, err
	}
	type ranked struct {
		pos int
		row PageRow
	}
	var pages []ranked
	seen := make(map[string]int, len(headers))
	for _, h := range headers {
		data, err := store.Read(h.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", h.Path), slog.String("error", err.Error()))
			continue
		}
		hdr, err := frontmatter.DecodePage(bytes.NewReader(data))
		if err != nil {
			logger.Warn("sync: header unreadable", slog.String("path", h.Path), slog.String("error", err.Error()))
			continue
		}
		if i, dup := seen[hdr.ID]; dup {
			if !h.UpdatedAt.After(pages[i].row.ExportedAt) {
				logger.Warn("sync: duplicate header ignored", slog.String("id", hdr.ID), slog.String("path", h.Path))
				continue
			}
			logger.Warn("sync: duplicate header ignored", slog.String("id", hdr.ID), slog.String("path", pages[i].row.Path))
		}
		rel := strings.TrimPrefix(h.Path, nbDir+"/")
		sectionID, resolved := owner[hdr.ID]
		if !resolved {
			sectionID = sectionBySlug[path.Dir(rel)]
		}
		row := PageRow{
			ID:           hdr.ID,
			NotebookSlug: nbDir,
			SectionID:    sectionID,
			Name:         hdr.Name,
			Slug:         hdr.Slug,
			Path:         rel,
			Checksum:     h.Checksum,
			ExportedAt:   h.UpdatedAt,
		}
		if body, err := store.Read(strings.TrimSuffix(h.Path, "."+opts.Extension) + ".xml"); err == nil {
			row.Body = string(body)
		}
		pos, known := order[hdr.ID]
		if !known {
			pos = len(nb.Pages)
		}
		if i, dup := seen[hdr.ID]; dup {
			pages[i] = ranked{pos: pos, row: row}
			continue
		}
		seen[hdr.ID] = len(pages)
		pages = append(pages, ranked{pos: pos, row: row})
	}
	slices.SortStableFunc(pages, func(a, b ranked) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		return cmp.Compare(a.row.Path, b.row.Path)
	})
	for _, p := range pages {
		snap.Pages = append(snap.Pages, p.row)
	}
	return snap, nil
}
