package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/onexport/internal/apperr"
)

// SectionRow represents a row in the sections table.
type SectionRow struct {
	ID           string `json:"id"`
	NotebookSlug string `json:"notebook_slug"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
}

// PageRow represents a row in the pages table. Body is only filled by
// GetPage.
type PageRow struct {
	ID           string    `json:"id"`
	NotebookSlug string    `json:"notebook_slug"`
	SectionID    string    `json:"section_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Path         string    `json:"path"`
	Checksum     string    `json:"checksum"`
	Body         string    `json:"body,omitempty"`
	ExportedAt   time.Time `json:"exported_at"`
}

// ExportRow represents one export run.
type ExportRow struct {
	RunID        string    `json:"run_id"`
	Notebook     string    `json:"notebook"`
	NotebookSlug string    `json:"notebook_slug"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Sections     int       `json:"sections"`
	Pages        int       `json:"pages"`
	Written      int       `json:"written"`
	Failed       int       `json:"failed"`
	Outcome      string    `json:"outcome"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	PageID  string `json:"page_id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// Snapshot is the catalogue content of one notebook. Pages are stored in
// slice order.
type Snapshot struct {
	NotebookSlug string
	Sections     []SectionRow
	Pages        []PageRow
}

// PageFilter narrows ListPages. Zero values mean no filter.
type PageFilter struct {
	NotebookSlug string
	SectionID    string
	Limit        int
	Offset       int
}

// RecordExport replaces the notebook's sections and pages with snap and
// stores run, all within one transaction.
func (db *DB) RecordExport(ctx context.Context, snap Snapshot, run ExportRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := replaceNotebook(ctx, tx, snap); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO exports (run_id, notebook, notebook_slug, started_at, finished_at,
		                     sections, pages, written, failed, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Notebook, run.NotebookSlug, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Sections, run.Pages, run.Written, run.Failed, run.Outcome)
	if err != nil {
		return fmt.Errorf("index: insert export: %w", err)
	}
	return tx.Commit()
}

// ReplaceNotebook replaces the notebook's sections and pages with snap
// without recording a run.
func (db *DB) ReplaceNotebook(ctx context.Context, snap Snapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := replaceNotebook(ctx, tx, snap); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceNotebook(ctx context.Context, tx *sql.Tx, snap Snapshot) error {
	if snap.NotebookSlug == "" {
		return errors.New("index: snapshot has no notebook slug")
	}
	// A notebook whose nickname changed arrives under a new slug; rows still
	// held under the old slug are dropped along with it.
	previous, err := previousSlugs(ctx, tx, snap)
	if err != nil {
		return err
	}
	for _, slug := range append(previous, snap.NotebookSlug) {
		if err := clearNotebook(ctx, tx, slug); err != nil {
			return err
		}
	}

	secStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sections (id, notebook_slug, name, slug, position)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare section insert: %w", err)
	}
	defer secStmt.Close()
	for i, s := range snap.Sections {
		if _, err := secStmt.ExecContext(ctx, s.ID, snap.NotebookSlug, s.Name, s.Slug, i); err != nil {
			return fmt.Errorf("index: insert section %s: %w", s.ID, err)
		}
	}

	pageStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO pages (id, notebook_slug, section_id, name, slug, path,
		                              checksum, body, position, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare page insert: %w", err)
	}
	defer pageStmt.Close()
	now := time.Now().UTC()
	for i, p := range snap.Pages {
		at := p.ExportedAt
		if at.IsZero() {
			at = now
		}
		if _, err := pageStmt.ExecContext(ctx, p.ID, snap.NotebookSlug, p.SectionID, p.Name, p.Slug,
			p.Path, p.Checksum, p.Body, i, at.UTC()); err != nil {
			return fmt.Errorf("index: insert page %s: %w", p.ID, err)
		}
		if err := ftsUpsert(tx, p.ID, p.Name, p.Body); err != nil {
			return err
		}
	}
	return nil
}

func clearNotebook(ctx context.Context, tx *sql.Tx, notebookSlug string) error {
	if err := ftsDeleteNotebook(tx, notebookSlug); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE notebook_slug = ?`, notebookSlug); err != nil {
		return fmt.Errorf("index: clear pages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE notebook_slug = ?`, notebookSlug); err != nil {
		return fmt.Errorf("index: clear sections: %w", err)
	}
	return nil
}

// previousSlugs returns the other notebook slugs that already hold one of
// snap's section or page ids.
func previousSlugs(ctx context.Context, tx *sql.Tx, snap Snapshot) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	collect := func(query, id string) error {
		rows, err := tx.QueryContext(ctx, query, id, snap.NotebookSlug)
		if err != nil {
			return fmt.Errorf("index: find previous notebook: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var slug string
			if err := rows.Scan(&slug); err != nil {
				return fmt.Errorf("index: scan notebook slug: %w", err)
			}
			if _, dup := seen[slug]; !dup {
				seen[slug] = struct{}{}
				out = append(out, slug)
			}
		}
		return rows.Err()
	}
	for _, sec := range snap.Sections {
		if err := collect(`SELECT DISTINCT notebook_slug FROM sections WHERE id = ? AND notebook_slug <> ?`, sec.ID); err != nil {
			return nil, err
		}
	}
	for _, p := range snap.Pages {
		if err := collect(`SELECT DISTINCT notebook_slug FROM pages WHERE id = ? AND notebook_slug <> ?`, p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetPage returns the page with the given id, including its body.
func (db *DB) GetPage(ctx context.Context, id string) (*PageRow, error) {
	var p PageRow
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, notebook_slug, section_id, name, slug, path, checksum, body, exported_at
		FROM pages WHERE id = ?`, id).
		Scan(&p.ID, &p.NotebookSlug, &p.SectionID, &p.Name, &p.Slug, &p.Path, &p.Checksum, &p.Body, &p.ExportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: page %q", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get page: %w", err)
	}
	return &p, nil
}

// ListPages returns pages in export order plus the total number matching f.
func (db *DB) ListPages(ctx context.Context, f PageFilter) ([]PageRow, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	where := `WHERE (? = '' OR notebook_slug = ?) AND (? = '' OR section_id = ?)`
	args := []any{f.NotebookSlug, f.NotebookSlug, f.SectionID, f.SectionID}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM pages `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count pages: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, notebook_slug, section_id, name, slug, path, checksum, exported_at
		FROM pages `+where+`
		ORDER BY notebook_slug, position
		LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list pages: %w", err)
	}
	defer rows.Close()

	out := []PageRow{}
	for rows.Next() {
		var p PageRow
		if err := rows.Scan(&p.ID, &p.NotebookSlug, &p.SectionID, &p.Name, &p.Slug, &p.Path, &p.Checksum, &p.ExportedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// ListSections returns the sections of a notebook in document order.
func (db *DB) ListSections(ctx context.Context, notebookSlug string) ([]SectionRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, notebook_slug, name, slug FROM sections
		WHERE notebook_slug = ? ORDER BY position`, notebookSlug)
	if err != nil {
		return nil, fmt.Errorf("index: list sections: %w", err)
	}
	defer rows.Close()

	out := []SectionRow{}
	for rows.Next() {
		var s SectionRow
		if err := rows.Scan(&s.ID, &s.NotebookSlug, &s.Name, &s.Slug); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListExports returns the most recent runs first.
func (db *DB) ListExports(ctx context.Context, limit int) ([]ExportRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, notebook, notebook_slug, started_at, finished_at,
		       sections, pages, written, failed, outcome
		FROM exports
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list exports: %w", err)
	}
	defer rows.Close()

	out := []ExportRow{}
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.RunID, &r.Notebook, &r.NotebookSlug, &r.StartedAt, &r.FinishedAt,
			&r.Sections, &r.Pages, &r.Written, &r.Failed, &r.Outcome); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
