package api

import (
	"github.com/starford/onexport/internal/exporter"
	"github.com/starford/onexport/internal/index"
)

// ExportReport is the response of POST /exports (aliased from the domain layer).
type ExportReport = exporter.Report

// ExportListResponse wraps recorded export runs, newest first.
type ExportListResponse struct {
	Exports []index.ExportRow `json:"exports" validate:"required"`
}

// PageListResponse wraps paginated page listings.
type PageListResponse struct {
	Pages []index.PageRow `json:"pages" validate:"required"`
	Total int             `json:"total" example:"42" validate:"required"`
}

// SectionListResponse wraps the sections of one notebook.
type SectionListResponse struct {
	Sections []index.SectionRow `json:"sections" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
