package api

import (
	"context"

	"github.com/starford/onexport/internal/exporter"
)

// Exporter runs an export of inline hierarchy markup. *exporter.Service
// implements it.
type Exporter interface {
	Export(ctx context.Context, markup string) (*exporter.Report, error)
}

var _ Exporter = (*exporter.Service)(nil)
