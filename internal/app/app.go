// Package app assembles the store, registries, pipeline and HTTP surface from
// a loaded config. Both the server binary and the CLI start here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/project-euler/queryassist/internal/analysis"
	"github.com/project-euler/queryassist/internal/api"
	"github.com/project-euler/queryassist/internal/config"
	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/nlp"
	"github.com/project-euler/queryassist/internal/service"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/translator"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *state.Store
	Pipeline *service.Pipeline
	Importer *analysis.Importer
}

// New wires an empty store to a pipeline with the financial function library
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var cache *nlp.ConceptCache
	if cfg.Parser.ConceptCacheSize > 0 {
		c, err := nlp.NewConceptCache(cfg.Parser.ConceptCacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "concept cache")
		}
		cache = c
	}

	store := state.NewStore()
	translators := translator.NewRegistry()
	fns := functions.NewRegistry(nil, logger)
	fns.Register(functions.FinancialLibrary, functions.Financial(time.Now)...)

	pipeline := service.NewPipeline(store, service.PipelineOptions{
		Translators: translators,
		Functions:   fns,
		Concepts:    cache,
		Logger:      logger,
	})
	inferrer := analysis.NewHeuristicInferrer(cfg.Import.SampleSize, cfg.Import.TypeThreshold)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Pipeline: pipeline,
		Importer: analysis.NewImporter(store, translators, inferrer, logger),
	}, nil
}

// LoadFiles imports datasets from disk. Files are read in parallel and
// imported in the given order so the source listing follows it.
func (a *App) LoadFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	bodies := make([][]byte, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			bodies[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		if _, err := a.Importer.ImportBytes(ctx, "", filepath.Base(path), bodies[i]); err != nil {
			return errors.Wrapf(err, "import %s", path)
		}
	}
	return nil
}

// Router builds the HTTP handler with CORS and request logging
func (a *App) Router() http.Handler {
	handler := api.NewHandler(a.Pipeline, a.Store, a.Importer, a.Config, api.NewMetrics(), a.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("queryassist is running"))
	})
	handler.RegisterRoutes(r)
	return r
}

// Serve listens on the configured port until ctx is done, then drains
// in-flight requests
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", "addr", srv.Addr, "origins", a.Config.Server.AllowedOrigins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
