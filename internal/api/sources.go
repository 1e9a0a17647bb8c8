package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/project-euler/queryassist/internal/analysis"
)

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListSources(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UploadSource imports a multipart "file" field. An optional "name" field
// overrides the display name.
func (h *Handler) UploadSource(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := h.readUpload(w, r)
	if err != nil {
		h.Metrics.observeImport(formatLabel(fileName), "error")
		h.writeError(w, r, err)
		return
	}

	res, err := h.Importer.ImportBytes(r.Context(), r.FormValue("name"), fileName, data)
	if err != nil {
		h.Metrics.observeImport(formatLabel(fileName), "error")
		h.writeError(w, r, err)
		return
	}
	h.Metrics.observeImport(string(res.Format), "ok")
	writeJSON(w, http.StatusCreated, res)
}

// ReplaceSource re-imports a file over an existing source id
func (h *Handler) ReplaceSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	fileName, data, err := h.readUpload(w, r)
	if err != nil {
		h.Metrics.observeImport(formatLabel(fileName), "error")
		h.writeError(w, r, err)
		return
	}

	res, err := h.Importer.ReplaceBytes(r.Context(), sourceID, fileName, data)
	if err != nil {
		h.Metrics.observeImport(formatLabel(fileName), "error")
		h.writeError(w, r, err)
		return
	}
	h.Metrics.observeImport(string(res.Format), "ok")
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if err := h.Store.Delete(sourceID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "source deleted", "source", sourceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.Store.GetSchema(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// GetProfile reports per-column quality metrics for a source
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	schema, err := h.Store.GetSchema(r.Context(), sourceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.Store.GetAllRows(r.Context(), sourceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.Profile(schema, rows))
}

// GetRows pages through a source with limit and offset query parameters
func (h *Handler) GetRows(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	rows, err := h.Store.GetAllRows(r.Context(), sourceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	offset := min(getIntParam(r, "offset", 0), len(rows))
	limit := getIntParam(r, "limit", 100)
	end := min(offset+limit, len(rows))

	writeJSON(w, http.StatusOK, RowsResponse{
		SourceID: sourceID,
		Total:    len(rows),
		Offset:   offset,
		Rows:     rows[offset:end],
	})
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := h.Config.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, errors.Mark(errors.Wrap(err, "parse upload"), errPayloadLarge)
		}
		return "", nil, errors.Mark(errors.Wrap(err, "parse upload"), errBadRequest)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.Mark(errors.Wrap(err, "no file uploaded"), errBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return header.Filename, nil, errors.Wrap(err, "read upload")
	}
	return filepath.Base(header.Filename), data, nil
}

func formatLabel(fileName string) string {
	format, err := analysis.FormatFromFileName(fileName)
	if err != nil {
		return "unknown"
	}
	return string(format)
}
