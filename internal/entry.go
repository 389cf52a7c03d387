// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/onexport/internal/api"
	"github.com/starford/onexport/internal/exporter"
	"github.com/starford/onexport/internal/index"
	"github.com/starford/onexport/internal/mcpserver"
	"github.com/starford/onexport/internal/metrics"
	"github.com/starford/onexport/internal/models"
	"github.com/starford/onexport/internal/source"
	"github.com/starford/onexport/internal/sse"
	"github.com/starford/onexport/internal/storage"
	"github.com/starford/onexport/internal/watcher"
)

// runtime holds the services shared by every command.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	db       *index.DB
	registry *prom.Registry
	broker   *sse.Broker
	exporter *exporter.Service
	resolver models.OwnerResolver
	source   source.Files
}

func (r *runtime) Close() {
	if r.broker != nil {
		r.broker.Close()
	}
	_ = r.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout, logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// start builds the logger, the catalogue and the export service. With
// events set, export progress is published through an SSE broker.
func (a *application) start(events bool) (*runtime, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	src := source.Files{HierarchyPath: cfg.Source.Hierarchy, PagesDir: cfg.Source.PagesDir}
	if a.input != "" {
		src.HierarchyPath = a.input
	}
	if a.pagesDir != "" {
		src.PagesDir = a.pagesDir
	}

	logger.Info("Configuration loaded",
		slog.String("export_root", cfg.Export.Root),
		slog.String("collection", cfg.Export.Collection),
		slog.String("hierarchy", src.HierarchyPath),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	resolver, err := cfg.Export.Owner.Resolver()
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	registry := prom.NewRegistry()
	registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(registry)

	rt := &runtime{cfg: cfg, logger: logger, db: db, registry: registry, resolver: resolver, source: src}
	exportOpts := []exporter.Option{
		exporter.WithCatalogue(db),
		exporter.WithRecorder(recorder),
		exporter.WithLogger(logger),
		exporter.WithResolver(resolver),
	}
	if events {
		rt.broker = sse.NewBroker(250 * time.Millisecond)
		exportOpts = append(exportOpts, exporter.WithEvents(rt.broker))
	}
	rt.exporter = exporter.New(cfg.Export.Generator(), exportOpts...)
	return rt, nil
}

func (r *runtime) collectionDir() string {
	return filepath.Join(r.cfg.Export.Root, "_"+r.cfg.Export.Collection)
}

// Export runs a single export from the configured source and prints the
// report. Any page failure makes it return an error.
func Export(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.source.HierarchyPath == "" {
		return errors.New("no hierarchy input: set source.hierarchy or pass --input")
	}

	rep, err := rt.exporter.ExportFrom(ctx, rt.source)
	if rep != nil {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Watch exports once and then re-exports every time the hierarchy file
// changes, until ctx is cancelled or a shutdown signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.source.HierarchyPath == "" {
		return errors.New("no hierarchy input: set source.hierarchy or pass --input")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt.exportOnce(ctx)
	return watcher.Watch(ctx, rt.source.HierarchyPath, rt.cfg.Watch.Debounce, rt.logger, func(ctx context.Context) error {
		_, err := rt.exporter.ExportFrom(ctx, rt.source)
		return err
	})
}

func (r *runtime) exportOnce(ctx context.Context) {
	if _, err := r.exporter.ExportFrom(ctx, r.source); err != nil {
		r.logger.Warn("initial export incomplete", slog.String("error", err.Error()))
	}
}

// Serve starts the HTTP API with SSE progress events and Prometheus
// metrics. When a hierarchy source is configured and watching is enabled
// the watcher runs alongside.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger

	// Bring the catalogue in line with whatever is already on disk.
	if store, err := storage.NewFS(rt.collectionDir()); err == nil {
		if _, err := index.Sync(ctx, rt.db, store, rt.syncOptions(), logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	apiRouter := api.NewRouter(rt.exporter, rt.db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, _, err := rt.db.ListPages(req.Context(), index.PageFilter{Limit: 1}); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.HTTPHandler(rt.registry))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Re-export on hierarchy changes.
	if cfg.Watch.Enabled && rt.source.HierarchyPath != "" {
		g.Go(func() error {
			rt.exportOnce(gCtx)
			return watcher.Watch(gCtx, rt.source.HierarchyPath, cfg.Watch.Debounce, logger, func(ctx context.Context) error {
				_, err := rt.exporter.ExportFrom(ctx, rt.source)
				return err
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Returning an error cancels gCtx so the watcher stops too.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown requested")

// MCP serves the export and catalogue tools over stdio. Logs go to stderr
// because stdout carries the protocol.
func MCP(ctx context.Context, opts ...Option) error {
	opts = append(opts, WithLogOutput(os.Stderr))
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(rt.exporter, rt.db, app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// Reindex rebuilds the catalogue from the exported tree on disk and prints
// the number of notebooks recorded.
func Reindex(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.start(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := storage.NewFS(rt.collectionDir())
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	n, err := index.Sync(ctx, rt.db, store, rt.syncOptions(), rt.logger)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	_, err = fmt.Fprintf(app.out, "reindexed %d notebook(s) from %s\n", n, store.Root())
	return err
}

func (r *runtime) syncOptions() index.SyncOptions {
	return index.SyncOptions{
		RawFilename: r.cfg.Export.RawFilename,
		Extension:   r.cfg.Export.Extension,
		Resolver:    r.resolver,
	}
}
