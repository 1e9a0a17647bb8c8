package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"

	"github.com/project-euler/queryassist/internal/analysis"
	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/service"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/stats"
)

var (
	errNoDatabase   = errors.New("no database connection")
	errBadRequest   = errors.New("bad request")
	errPayloadLarge = errors.New("upload too large")
)

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// PlanRequest carries a plan and, optionally, the sources to run it against.
// No source ids means every imported source.
type PlanRequest struct {
	Plan      models.QueryPlan `json:"plan"`
	SourceIDs []string         `json:"sourceIds,omitempty"`
}

type MapRequest struct {
	SourceID   string             `json:"sourceId"`
	Conditions []models.Condition `json:"conditions"`
}

type FunctionMatchRequest struct {
	Prompt   string   `json:"prompt"`
	Entities []string `json:"entities,omitempty"`
}

type FunctionMatchResponse struct {
	Match *functions.Match `json:"match"`
}

// StatisticRequest applies an operation either to a stored source or to rows
// sent inline
type StatisticRequest struct {
	SourceID string       `json:"sourceId,omitempty"`
	Rows     []models.Row `json:"rows,omitempty"`
	Field    string       `json:"field"`
	Op       string       `json:"op"`
}

type StatisticResponse struct {
	Op    string     `json:"op"`
	Field string     `json:"field"`
	Value null.Float `json:"value"`
}

type TranslatorRequest struct {
	Type     string         `json:"type"`
	Names    map[string]int `json:"names"`
	Synonyms []string       `json:"synonyms,omitempty"`
}

// ConnectRequest overrides the configured database settings field by field
type ConnectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	Schema   string `json:"schema"`
}

type ImportTableRequest struct {
	Table string `json:"table"`
	Name  string `json:"name,omitempty"`
}

type RowsResponse struct {
	SourceID string       `json:"sourceId"`
	Total    int          `json:"total"`
	Offset   int          `json:"offset"`
	Rows     []models.Row `json:"rows"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid JSON"), errBadRequest)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidPlan):
		return http.StatusUnprocessableEntity
	case errors.Is(err, state.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, errPayloadLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, errNoDatabase),
		errors.Is(err, analysis.ErrEmptyDataset),
		errors.Is(err, analysis.ErrUnsupportedFormat),
		errors.Is(err, analysis.ErrUnknownTable),
		errors.Is(err, stats.ErrUnknownOp):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func getIntParam(r *http.Request, name string, defaultVal int) int {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultVal
	}
	return val
}
