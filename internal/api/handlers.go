// Package api exposes the query pipeline, the source store and the importers
// over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/project-euler/queryassist/internal/analysis"
	"github.com/project-euler/queryassist/internal/config"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/service"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/translator"
)

// DBOpener connects to a Postgres database
type DBOpener func(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*analysis.PostgresSource, error)

type Handler struct {
	Pipeline *service.Pipeline
	Store    *state.Store
	Importer *analysis.Importer
	Metrics  *Metrics
	Config   *config.Config

	// OpenDB defaults to analysis.OpenPostgres
	OpenDB DBOpener

	logger *slog.Logger

	mu        sync.Mutex
	currentDB *analysis.PostgresSource
}

func NewHandler(pipeline *service.Pipeline, store *state.Store, importer *analysis.Importer, cfg *config.Config, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		Pipeline: pipeline,
		Store:    store,
		Importer: importer,
		Metrics:  metrics,
		Config:   cfg,
		OpenDB:   analysis.OpenPostgres,
		logger:   logger.With("component", "api"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", h.ListSources)
		r.Post("/sources", h.UploadSource)
		r.Route("/sources/{sourceID}", func(r chi.Router) {
			r.Put("/", h.ReplaceSource)
			r.Delete("/", h.DeleteSource)
			r.Get("/schema", h.GetSchema)
			r.Get("/rows", h.GetRows)
			r.Get("/profile", h.GetProfile)
		})

		r.Post("/parse", h.Parse)
		r.Post("/validate", h.Validate)
		r.Post("/execute", h.Execute)
		r.Post("/query", h.Query)
		r.Post("/map", h.MapConcepts)
		r.Post("/statistics", h.ApplyStatistic)

		r.Get("/functions", h.ListFunctions)
		r.Post("/functions/match", h.MatchFunction)

		r.Get("/translators", h.ListTranslators)
		r.Post("/translators", h.RegisterTranslator)

		r.Post("/db/connect", h.ConnectDB)
		r.Get("/db/tables", h.ListTables)
		r.Post("/db/import", h.ImportTable)
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// writeError logs server side failures and answers with the mapped status
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

// Parse returns the plan for a prompt without running it
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Pipeline.Parse(req.Prompt))
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sources, err := h.selectSources(req.SourceIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Pipeline.Validate(r.Context(), req.Plan, sources)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Execute runs a client supplied plan. An invalid plan answers 422 with the
// validation findings.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sources, err := h.selectSources(req.SourceIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Pipeline.Execute(r.Context(), req.Plan, sources)
	var planErr *service.PlanError
	switch {
	case errors.As(err, &planErr):
		h.Metrics.observeQuery("execute", "invalid", time.Since(start).Seconds())
		writeJSON(w, http.StatusUnprocessableEntity, planErr.Validation)
	case err != nil:
		h.Metrics.observeQuery("execute", "error", time.Since(start).Seconds())
		h.writeError(w, r, err)
	default:
		h.Metrics.observeQuery("execute", "ok", time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, result)
	}
}

// Query answers a prompt end to end
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req PromptRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	answer, err := h.Pipeline.Ask(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, service.ErrInvalidPlan):
		h.Metrics.observeQuery("ask", "invalid", time.Since(start).Seconds())
		writeJSON(w, http.StatusUnprocessableEntity, answer)
	case err != nil:
		h.Metrics.observeQuery("ask", "error", time.Since(start).Seconds())
		h.writeError(w, r, err)
	default:
		h.Metrics.observeQuery("ask", "ok", time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, answer)
	}
}

func (h *Handler) MapConcepts(w http.ResponseWriter, r *http.Request) {
	var req MapRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, ok := h.Store.Get(req.SourceID); !ok {
		h.writeError(w, r, errors.Wrapf(state.ErrSourceNotFound, "%q", req.SourceID))
		return
	}
	conds, err := h.Pipeline.MapConcepts(r.Context(), req.SourceID, req.Conditions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conds)
}

// ApplyStatistic runs one operation over a stored source or inline rows
func (h *Handler) ApplyStatistic(w http.ResponseWriter, r *http.Request) {
	var req StatisticRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rows := req.Rows
	if req.SourceID != "" {
		stored, err := h.Store.GetAllRows(r.Context(), req.SourceID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rows = stored
	}

	value, err := h.Pipeline.ApplyStatistic(rows, req.Field, req.Op)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatisticResponse{Op: req.Op, Field: req.Field, Value: value})
}

func (h *Handler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pipeline.Functions().List())
}

func (h *Handler) MatchFunction(w http.ResponseWriter, r *http.Request) {
	var req FunctionMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FunctionMatchResponse{Match: h.Pipeline.FindFunction(req.Prompt, req.Entities)})
}

func (h *Handler) ListTranslators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pipeline.Translators().Entries())
}

// RegisterTranslator merges names into a translator type
func (h *Handler) RegisterTranslator(w http.ResponseWriter, r *http.Request) {
	var req TranslatorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Type) == "" || len(req.Names) == 0 {
		http.Error(w, "type and names are required", http.StatusBadRequest)
		return
	}
	h.Pipeline.Translators().Register(req.Type, req.Names, translator.Options{Synonyms: req.Synonyms})
	h.logger.InfoContext(r.Context(), "translator registered", "type", req.Type, "names", len(req.Names))
	writeJSON(w, http.StatusCreated, h.Pipeline.Translators().Entries())
}

// selectSources resolves requested ids in request order. No ids selects
// every source.
func (h *Handler) selectSources(ids []string) ([]models.SourceMeta, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]models.SourceMeta, 0, len(ids))
	for _, id := range ids {
		src, ok := h.Store.Get(id)
		if !ok {
			return nil, errors.Wrapf(state.ErrSourceNotFound, "%q", id)
		}
		out = append(out, src.Meta)
	}
	return out, nil
}
