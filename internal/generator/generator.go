// Package generator materializes a parsed notebook as a directory tree: one
// directory per section and one front-matter file per page.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/onexport/internal/apperr"
	"github.com/starford/onexport/internal/frontmatter"
	"github.com/starford/onexport/internal/metrics"
	"github.com/starford/onexport/internal/models"
	"github.com/starford/onexport/internal/storage"
)

// Defaults applied by Config when a field is left empty.
const (
	DefaultExtension   = "yaml"
	DefaultRawFilename = "notebook.xml"
	// BodyExtension is used for page bodies written next to the header file.
	BodyExtension = "xml"
)

// Config locates the generated tree. It replaces any process-wide settings:
// every generator carries its own copy.
type Config struct {
	Root        string
	Collection  string
	Extension   string
	RawFilename string
	Workers     int
}

func (c Config) withDefaults() Config {
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if c.RawFilename == "" {
		c.RawFilename = DefaultRawFilename
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// NotebookDir returns <Root>/_<Collection>/<notebook slug>.
func (c Config) NotebookDir(notebookSlug string) string {
	return filepath.Join(c.Root, "_"+c.Collection, notebookSlug)
}

// Option configures a Generator.
type Option func(*Generator)

// WithResolver replaces the default prefix owner resolver.
func WithResolver(r models.OwnerResolver) Option {
	return func(g *Generator) { g.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithProgress registers fn to be called after every page is settled,
// written or failed. It may be called from several goroutines at once.
func WithProgress(fn func(done, total int)) Option {
	return func(g *Generator) { g.progress = fn }
}

// Generator writes one notebook. It only reads the notebook.
type Generator struct {
	nb       *models.Notebook
	cfg      Config
	dir      string
	resolver models.OwnerResolver
	logger   *slog.Logger
	recorder metrics.Recorder
	progress func(done, total int)
}

// New validates cfg and returns a generator for nb.
func New(nb *models.Notebook, cfg Config, opts ...Option) (*Generator, error) {
	if nb == nil {
		return nil, errors.New("generator: notebook is required")
	}
	cfg = cfg.withDefaults()
	if cfg.Root == "" {
		return nil, errors.New("generator: output root is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("generator: collection is required")
	}
	if cfg.Extension == BodyExtension {
		return nil, fmt.Errorf("generator: extension %q is reserved for page bodies", BodyExtension)
	}

	g := &Generator{
		nb:       nb,
		cfg:      cfg,
		dir:      cfg.NotebookDir(nb.Slug),
		resolver: models.DefaultResolver(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		progress: func(int, int) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Dir returns the notebook output directory.
func (g *Generator) Dir() string { return g.dir }

// File is one page header written by WritePages. Path is relative to Dir.
type File struct {
	PageID    string `json:"page_id"`
	SectionID string `json:"section_id"`
	Path      string `json:"path"`
	Checksum  string `json:"checksum"`
}

// Result aggregates a WritePages run. Files and Failures follow page order.
// Pruned lists page files left by earlier runs that were removed.
type Result struct {
	Written  int
	Files    []File
	Failures []error
	Pruned   []string
}

// Err joins every failure, or returns nil when there were none.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Failures...)
}

// EnsureLayout creates the notebook directory and one directory per section.
// Existing directories are left alone. Any failure wraps
// apperr.ErrLayoutFailure.
func (g *Generator) EnsureLayout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrLayoutFailure, err)
	}
	store, err := storage.NewFS(g.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrLayoutFailure, err)
	}
	for _, s := range g.nb.Sections {
		if err := store.MkdirAll(s.Slug); err != nil {
			return fmt.Errorf("%w: section %q: %w", apperr.ErrLayoutFailure, s.ID, err)
		}
	}
	g.logger.Debug("layout ensured",
		slog.String("dir", g.dir),
		slog.Int("sections", len(g.nb.Sections)))
	return nil
}

// WriteRawHierarchy writes the source markup verbatim to the notebook
// directory. Failures wrap apperr.ErrWriteFailure.
func (g *Generator) WriteRawHierarchy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store, err := g.store()
	if err != nil {
		return err
	}
	if err := store.Write(g.cfg.RawFilename, []byte(g.nb.Raw)); err != nil {
		return fmt.Errorf("%w: %s: %w", apperr.ErrWriteFailure, g.cfg.RawFilename, err)
	}
	return nil
}

// WritePages writes one header file per page. A failing page never stops
// the others: orphans, filesystem errors and pages skipped after ctx is
// cancelled all end up in Result.Failures, and the returned error joins
// them. Once every page is settled, header and body files in section
// directories that this run did not plan are removed.
func (g *Generator) WritePages(ctx context.Context) (*Result, error) {
	store, err := g.store()
	if err != nil {
		return nil, err
	}

	jobs := g.plan()
	files := make([]*File, len(jobs))
	errs := make([]error, len(jobs))

	var done atomic.Int64
	settle := func() { g.progress(int(done.Add(1)), len(jobs)) }

	grp := new(errgroup.Group)
	grp.SetLimit(g.cfg.Workers)
	for i, j := range jobs {
		if j.err != nil {
			errs[i] = j.err
			settle()
			continue
		}
		if err := ctx.Err(); err != nil {
			errs[i] = &apperr.PageError{PageID: j.page.ID, Err: err}
			settle()
			continue
		}
		// Each job owns slot i, so no locking is needed.
		grp.Go(func() error {
			defer settle()
			if err := ctx.Err(); err != nil {
				errs[i] = &apperr.PageError{PageID: j.page.ID, Err: err}
				return nil
			}
			f, err := g.writePage(store, j)
			if err != nil {
				errs[i] = err
				return nil
			}
			files[i] = &f
			return nil
		})
	}
	_ = grp.Wait()

	res := &Result{}
	for i := range jobs {
		switch {
		case errs[i] != nil:
			res.Failures = append(res.Failures, errs[i])
			if errors.Is(errs[i], apperr.ErrOrphanPage) {
				g.recorder.IncPage(metrics.PageOrphan)
			} else {
				g.recorder.IncPage(metrics.PageFailed)
			}
			g.logger.Warn("page not written",
				slog.String("page_id", jobs[i].page.ID),
				slog.String("error", errs[i].Error()))
		case files[i] != nil:
			res.Written++
			res.Files = append(res.Files, *files[i])
			g.recorder.IncPage(metrics.PageWritten)
		}
	}

	if ctx.Err() == nil {
		res.Pruned = g.prune(store, jobs, errs)
	}

	g.logger.Info("pages written",
		slog.String("notebook", g.nb.DisplayName),
		slog.Int("written", res.Written),
		slog.Int("failed", len(res.Failures)),
		slog.Int("pruned", len(res.Pruned)))
	return res, res.Err()
}

// prune deletes page files under section directories that no job owns.
// Files at a failed page's path are kept so the previous export survives.
// Notebook-level files such as the hierarchy copy are never touched.
func (g *Generator) prune(store storage.Provider, jobs []job, errs []error) []string {
	header, body := "."+g.cfg.Extension, "."+BodyExtension
	keep := make(map[string]struct{}, 2*len(jobs))
	for i, j := range jobs {
		if j.section == nil {
			continue
		}
		keep[j.stem+header] = struct{}{}
		if j.page.Body != "" || errs[i] != nil {
			keep[j.stem+body] = struct{}{}
		}
	}

	existing, err := store.List("", "")
	if err != nil {
		g.logger.Warn("prune skipped", slog.String("dir", g.dir), slog.String("error", err.Error()))
		return nil
	}
	var pruned []string
	for _, m := range existing {
		if !strings.Contains(m.Path, "/") {
			continue
		}
		if ext := path.Ext(m.Path); ext != header && ext != body {
			continue
		}
		if _, ok := keep[m.Path]; ok {
			continue
		}
		if err := store.Delete(m.Path); err != nil {
			g.logger.Warn("stale page file not removed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		pruned = append(pruned, m.Path)
	}
	return pruned
}

// Generate runs a full generation: layout, raw hierarchy, pages. Layout
// failures abort the run; a raw hierarchy failure is reported with the page
// failures.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()
	if err := g.EnsureLayout(ctx); err != nil {
		return nil, err
	}
	rawErr := g.WriteRawHierarchy(ctx)
	res, _ := g.WritePages(ctx)
	if res == nil {
		res = &Result{}
	}
	if rawErr != nil {
		res.Failures = append([]error{rawErr}, res.Failures...)
	}
	g.logger.Debug("generation finished", slog.Duration("took", time.Since(start)))
	return res, res.Err()
}

type job struct {
	page    models.Page
	section *models.Section
	stem    string // "<section-slug>/<file-stem>", unique within the run
	err     error
}

// plan resolves owners and assigns output paths in page order before any
// file is written, so output does not depend on write scheduling. Pages that
// map to an already used path get a numeric suffix.
func (g *Generator) plan() []job {
	jobs := make([]job, len(g.nb.Pages))
	used := make(map[string]struct{}, len(g.nb.Pages))
	for i, p := range g.nb.Pages {
		s, err := g.resolver.ResolveOwningSection(g.nb, p)
		if err != nil {
			jobs[i] = job{page: p, err: &apperr.PageError{PageID: p.ID, Err: err}}
			continue
		}
		base := path.Join(s.Slug, p.Slug)
		stem := base
		for n := 2; ; n++ {
			if _, taken := used[stem]; !taken {
				break
			}
			stem = fmt.Sprintf("%s-%d", base, n)
		}
		used[stem] = struct{}{}
		jobs[i] = job{page: p, section: s, stem: stem}
	}
	return jobs
}

func (g *Generator) writePage(store storage.Provider, j job) (File, error) {
	rel := j.stem + "." + g.cfg.Extension
	header, err := frontmatter.EncodePage(frontmatter.PageHeader{
		ID:   j.page.ID,
		Name: j.page.Name,
		Slug: j.page.Slug,
	})
	if err != nil {
		return File{}, &apperr.PageError{PageID: j.page.ID, Path: rel, Err: fmt.Errorf("%w: %w", apperr.ErrWriteFailure, err)}
	}
	if err := store.Write(rel, header); err != nil {
		return File{}, &apperr.PageError{PageID: j.page.ID, Path: rel, Err: fmt.Errorf("%w: %w", apperr.ErrWriteFailure, err)}
	}
	if j.page.Body != "" {
		bodyRel := j.stem + "." + BodyExtension
		if err := store.Write(bodyRel, []byte(j.page.Body)); err != nil {
			return File{}, &apperr.PageError{PageID: j.page.ID, Path: bodyRel, Err: fmt.Errorf("%w: %w", apperr.ErrWriteFailure, err)}
		}
	}
	return File{
		PageID:    j.page.ID,
		SectionID: j.section.ID,
		Path:      rel,
		Checksum:  storage.Checksum(header),
	}, nil
}

func (g *Generator) store() (storage.Provider, error) {
	store, err := storage.NewFS(g.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: notebook directory not ready: %w", apperr.ErrLayoutFailure, err)
	}
	return store, nil
}
