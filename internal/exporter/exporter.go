// Package exporter runs complete export passes: fetch markup, parse, fetch
// page bodies, generate the tree, record the catalogue and report progress.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/onexport/internal/apperr"
	"github.com/starford/onexport/internal/generator"
	"github.com/starford/onexport/internal/index"
	"github.com/starford/onexport/internal/metrics"
	"github.com/starford/onexport/internal/models"
	"github.com/starford/onexport/internal/parser"
	"github.com/starford/onexport/internal/source"
	"github.com/starford/onexport/internal/sse"
)

// Outcomes reported on a Report.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
)

// Events receives progress notifications. *sse.Broker implements it.
type Events interface {
	Publish(sse.Event)
	PublishProgress(sse.Progress)
}

type noopEvents struct{}

func (noopEvents) Publish(sse.Event)            {}
func (noopEvents) PublishProgress(sse.Progress) {}

// Failure describes one page (or the raw hierarchy copy) that was not
// written.
type Failure struct {
	PageID  string `json:"page_id,omitempty"`
	Path    string `json:"path,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Report summarises one export run.
type Report struct {
	RunID        string           `json:"run_id"`
	Notebook     string           `json:"notebook"`
	NotebookSlug string           `json:"notebook_slug"`
	Dir          string           `json:"dir"`
	Sections     int              `json:"sections"`
	Pages        int              `json:"pages"`
	Written      int              `json:"written"`
	Files        []generator.File `json:"files"`
	Failures     []Failure        `json:"failures"`
	Pruned       []string         `json:"pruned,omitempty"`
	Outcome      string           `json:"outcome"`
	StartedAt    time.Time        `json:"started_at"`
	DurationMS   int64            `json:"duration_ms"`
}

// Option configures a Service.
type Option func(*Service)

// WithCatalogue records every run in cat.
func WithCatalogue(cat index.Catalogue) Option {
	return func(s *Service) { s.catalogue = cat }
}

// WithEvents publishes run progress to ev.
func WithEvents(ev Events) Option {
	return func(s *Service) { s.events = ev }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithResolver sets the owner resolver handed to the generator.
func WithResolver(r models.OwnerResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// Service runs exports one at a time so concurrent triggers never write
// into the same tree together.
type Service struct {
	mu        sync.Mutex
	cfg       generator.Config
	resolver  models.OwnerResolver
	catalogue index.Catalogue
	events    Events
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// New creates an export service writing with cfg.
func New(cfg generator.Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		resolver: models.DefaultResolver(),
		events:   noopEvents{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export runs an export of inline markup. Pages have no bodies.
func (s *Service) Export(ctx context.Context, markup string) (*Report, error) {
	return s.ExportFrom(ctx, source.Static{Markup: markup})
}

// ExportFrom runs one export from src.
//
// Parse and layout failures abort the run and return a nil Report. Per-page
// failures are listed on the Report; the returned error then joins them, so
// callers that only care about complete success can check err alone.
func (s *Service) ExportFrom(ctx context.Context, src source.Source) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.With(slog.String("run_id", runID))

	markup, err := src.Hierarchy(ctx)
	if err != nil {
		s.recorder.IncExport(metrics.ExportFailed)
		return nil, fmt.Errorf("exporter: fetch hierarchy: %w", err)
	}
	nb, err := parser.Parse(markup)
	if err != nil {
		s.recorder.IncExport(metrics.ExportMalformed)
		log.Warn("export rejected", slog.String("error", err.Error()))
		return nil, err
	}
	s.recorder.SetNotebookSize(len(nb.Sections), len(nb.Pages))
	s.events.Publish(sse.Event{Type: sse.TypeExportStarted, Data: map[string]any{
		"run_id":   runID,
		"notebook": nb.DisplayName,
		"pages":    len(nb.Pages),
	}})

	bodies, fetchFailures := s.fetchBodies(ctx, src, nb, log)
	nb = nb.WithBodies(bodies)

	gen, err := generator.New(nb, s.cfg,
		generator.WithResolver(s.resolver),
		generator.WithLogger(log),
		generator.WithRecorder(s.recorder),
		generator.WithProgress(func(done, total int) {
			s.events.PublishProgress(sse.Progress{RunID: runID, Done: done, Total: total})
		}),
	)
	if err != nil {
		s.recorder.IncExport(metrics.ExportFailed)
		return nil, err
	}

	res, genErr := gen.Generate(ctx)
	if res == nil {
		s.recorder.IncExport(metrics.ExportFailed)
		s.events.Publish(sse.Event{Type: sse.TypeExportFinished, Data: map[string]any{
			"run_id": runID,
			"error":  genErr.Error(),
		}})
		log.Error("export failed", slog.String("error", genErr.Error()))
		return nil, genErr
	}

	rep := &Report{
		RunID:        runID,
		Notebook:     nb.DisplayName,
		NotebookSlug: nb.Slug,
		Dir:          gen.Dir(),
		Sections:     len(nb.Sections),
		Pages:        len(nb.Pages),
		Written:      res.Written,
		Files:        res.Files,
		Failures:     []Failure{},
		Pruned:       res.Pruned,
		StartedAt:    start.UTC(),
	}
	if rep.Files == nil {
		rep.Files = []generator.File{}
	}
	failures := append(fetchFailures, res.Failures...)
	for _, f := range failures {
		fail := describe(f)
		rep.Failures = append(rep.Failures, fail)
		s.events.Publish(sse.Event{Type: sse.TypePageFailed, Data: map[string]any{
			"run_id":  runID,
			"page_id": fail.PageID,
			"kind":    fail.Kind,
			"message": fail.Message,
		}})
	}

	rep.Outcome = OutcomeSuccess
	exportOutcome := metrics.ExportSuccess
	if len(rep.Failures) > 0 {
		rep.Outcome = OutcomePartial
		exportOutcome = metrics.ExportPartial
	}
	rep.DurationMS = time.Since(start).Milliseconds()

	var catErr error
	if s.catalogue != nil {
		if err := s.catalogue.RecordExport(ctx, snapshot(nb, res), runRow(rep, start)); err != nil {
			catErr = fmt.Errorf("exporter: record catalogue: %w", err)
			log.Error("catalogue not updated", slog.String("error", err.Error()))
		}
	}

	s.recorder.IncExport(exportOutcome)
	s.recorder.ObserveExportDuration(time.Since(start))
	s.events.Publish(sse.Event{Type: sse.TypeExportFinished, Data: map[string]any{
		"run_id":   runID,
		"notebook": rep.Notebook,
		"written":  rep.Written,
		"failed":   len(rep.Failures),
		"outcome":  rep.Outcome,
	}})
	log.Info("export finished",
		slog.String("notebook", rep.Notebook),
		slog.String("dir", rep.Dir),
		slog.Int("written", rep.Written),
		slog.Int("failed", len(rep.Failures)),
		slog.Int64("duration_ms", rep.DurationMS))

	return rep, errors.Join(errors.Join(failures...), catErr)
}

// fetchBodies asks src for every page body. Pages without content are left
// out; other fetch errors become failures but the page header is still
// written.
func (s *Service) fetchBodies(ctx context.Context, src source.Source, nb *models.Notebook, log *slog.Logger) (map[string]string, []error) {
	bodies := make(map[string]string)
	var failures []error
	for _, p := range nb.Pages {
		body, err := src.PageContent(ctx, p.ID)
		switch {
		case err == nil:
			if body != "" {
				bodies[p.ID] = body
			}
		case errors.Is(err, source.ErrNoContent):
		case ctx.Err() != nil:
			// The generator reports cancelled pages itself.
			return bodies, failures
		default:
			log.Warn("page content unavailable", slog.String("page_id", p.ID), slog.String("error", err.Error()))
			failures = append(failures, &apperr.PageError{PageID: p.ID, Err: err})
		}
	}
	return bodies, failures
}

func describe(err error) Failure {
	f := Failure{Kind: apperr.Kind(err), Message: err.Error()}
	var pe *apperr.PageError
	if errors.As(err, &pe) {
		f.PageID = pe.PageID
		f.Path = pe.Path
	}
	return f
}

func snapshot(nb *models.Notebook, res *generator.Result) index.Snapshot {
	snap := index.Snapshot{NotebookSlug: nb.Slug}
	for _, s := range nb.Sections {
		snap.Sections = append(snap.Sections, index.SectionRow{ID: s.ID, NotebookSlug: nb.Slug, Name: s.Name, Slug: s.Slug})
	}
	for _, f := range res.Files {
		p, ok := nb.Page(f.PageID)
		if !ok {
			continue
		}
		snap.Pages = append(snap.Pages, index.PageRow{
			ID:           p.ID,
			NotebookSlug: nb.Slug,
			SectionID:    f.SectionID,
			Name:         p.Name,
			Slug:         p.Slug,
			Path:         f.Path,
			Checksum:     f.Checksum,
			Body:         p.Body,
		})
	}
	return snap
}

func runRow(rep *Report, start time.Time) index.ExportRow {
	return index.ExportRow{
		RunID:        rep.RunID,
		Notebook:     rep.Notebook,
		NotebookSlug: rep.NotebookSlug,
		StartedAt:    start,
		FinishedAt:   time.Now(),
		Sections:     rep.Sections,
		Pages:        rep.Pages,
		Written:      rep.Written,
		Failed:       len(rep.Failures),
		Outcome:      rep.Outcome,
	}
}
