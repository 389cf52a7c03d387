package index

import "context"

// Catalogue defines the catalogue operations used by the exporter, the HTTP
// API and the MCP tools. Consumers should depend on this interface rather
// than the concrete *DB type.
type Catalogue interface {
	RecordExport(ctx context.Context, snap Snapshot, run ExportRow) error
	ReplaceNotebook(ctx context.Context, snap Snapshot) error
	GetPage(ctx context.Context, id string) (*PageRow, error)
	ListPages(ctx context.Context, f PageFilter) ([]PageRow, int, error)
	ListSections(ctx context.Context, notebookSlug string) ([]SectionRow, error)
	ListExports(ctx context.Context, limit int) ([]ExportRow, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Catalogue at compile time.
var _ Catalogue = (*DB)(nil)
