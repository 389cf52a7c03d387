package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/onexport/internal/apperr"
	"github.com/starford/onexport/internal/index"
)

const maxMarkupBytes = 32 << 20

// Handler holds API route handlers.
type Handler struct {
	exp Exporter
	cat index.Catalogue
}

// NewHandler creates a new Handler.
func NewHandler(exp Exporter, cat index.Catalogue) *Handler {
	return &Handler{exp: exp, cat: cat}
}

// pageID extracts the page id from the URL. Ids carry braces, so clients
// usually send them percent-encoded.
func pageID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// CreateExport handles POST /api/exports.
//
//	@Summary		Export hierarchy markup sent as the request body
//	@Tags			exports
//	@Accept			xml
//	@Produce		json
//	@Success		200		{object}	ExportReport
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports [post]
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMarkupBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("hierarchy markup is required"))
		return
	}

	rep, err := h.exp.Export(r.Context(), string(body))
	switch {
	case rep != nil:
		// Per-page failures are listed in the report.
		writeJSON(w, http.StatusOK, rep)
	case errors.Is(err, apperr.ErrMalformedInput):
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: err.Error(), Kind: apperr.Kind(err)})
	default:
		slog.Error("export failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "export failed", Kind: apperr.Kind(err)})
	}
}

// ListExports handles GET /api/exports.
//
//	@Summary		List recorded export runs, newest first
//	@Tags			exports
//	@Produce		json
//	@Param			limit	query		int		false	"Max runs"
//	@Success		200		{object}	ExportListResponse
//	@Security		BearerAuth
//	@Router			/exports [get]
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.cat.ListExports(r.Context(), limit)
	if err != nil {
		slog.Error("list exports failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ExportListResponse{Exports: runs})
}

// ListPages handles GET /api/pages.
//
//	@Summary		List exported pages with optional filtering and pagination
//	@Tags			pages
//	@Produce		json
//	@Param			notebook	query		string	false	"Notebook slug"
//	@Param			section		query		string	false	"Section id"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	PageListResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	pages, total, err := h.cat.ListPages(r.Context(), index.PageFilter{
		NotebookSlug: q.Get("notebook"),
		SectionID:    q.Get("section"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		slog.Error("list pages failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages, Total: total})
}

// GetPage handles GET /api/pages/{id}.
//
//	@Summary		Get one exported page with its body
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page id"
//	@Success		200	{object}	index.PageRow
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	id := pageID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	page, err := h.cat.GetPage(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get page failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListSections handles GET /api/sections.
//
//	@Summary		List the sections of one notebook
//	@Tags			pages
//	@Produce		json
//	@Param			notebook	query		string	true	"Notebook slug"
//	@Success		200			{object}	SectionListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sections [get]
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	nb := r.URL.Query().Get("notebook")
	if nb == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'notebook' is required"))
		return
	}
	secs, err := h.cat.ListSections(r.Context(), nb)
	if err != nil {
		slog.Error("list sections failed", slog.String("notebook", nb), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SectionListResponse{Sections: secs})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across exported pages
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.cat.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
