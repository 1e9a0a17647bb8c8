package api

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/project-euler/queryassist/internal/analysis"
)

// ConnectDB opens the database a client names, filling gaps from config. A
// previous connection is closed once the new one answers.
func (h *Handler) ConnectDB(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cfg := h.Config.Postgres
	if req.Host != "" {
		cfg.Host = req.Host
	}
	if req.Port != 0 {
		cfg.Port = req.Port
	}
	if req.User != "" {
		cfg.User = req.User
	}
	if req.Password != "" {
		cfg.Password = req.Password
	}
	if req.DBName != "" {
		cfg.DBName = req.DBName
	}
	if req.SSLMode != "" {
		cfg.SSLMode = req.SSLMode
	}
	if req.Schema != "" {
		cfg.Schema = req.Schema
	}

	pg, err := h.OpenDB(r.Context(), cfg, h.logger)
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, "failed to connect"))
		return
	}

	h.mu.Lock()
	prev := h.currentDB
	h.currentDB = pg
	h.mu.Unlock()
	if prev != nil {
		if err := prev.Close(); err != nil {
			h.logger.WarnContext(r.Context(), "closing previous database", "error", err)
		}
	}

	h.logger.InfoContext(r.Context(), "database connected", "host", cfg.Host, "dbname", cfg.DBName, "schema", cfg.Schema)
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// ListTables returns tables from the connected database
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	pg := h.database()
	if pg == nil {
		h.writeError(w, r, errNoDatabase)
		return
	}
	tables, err := pg.ListTables(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// ImportTable copies a table of the connected database into a new source
func (h *Handler) ImportTable(w http.ResponseWriter, r *http.Request) {
	pg := h.database()
	if pg == nil {
		h.writeError(w, r, errNoDatabase)
		return
	}

	var req ImportTableRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Table) == "" {
		http.Error(w, "table is required", http.StatusBadRequest)
		return
	}

	res, err := h.Importer.ImportTable(r.Context(), pg, req.Table, req.Name)
	if err != nil {
		h.Metrics.observeImport("postgres", "error")
		h.writeError(w, r, err)
		return
	}
	h.Metrics.observeImport(string(res.Format), "ok")
	writeJSON(w, http.StatusCreated, res)
}

// SetDatabase installs an already open connection, replacing any other
func (h *Handler) SetDatabase(pg *analysis.PostgresSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentDB = pg
}

func (h *Handler) database() *analysis.PostgresSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentDB
}
