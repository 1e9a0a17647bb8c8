package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/config"
)

func writeDataset(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeDataset(t, dir, "loans.csv", "Portfolio,Branch_Number,Principal\nP1,4,7500\nP2,2,3000\n"),
		writeDataset(t, dir, "branches.csv", "Branch_Number,Branch_Name\n2,Riverside\n4,Lakeside\n"),
		writeDataset(t, dir, "checking_accounts.json", `[{"Portfolio": "P1", "Balance": 1000}]`),
	}

	a, err := New(config.Default(), nil)
	require.NoError(t, err)
	require.NoError(t, a.LoadFiles(context.Background(), paths))

	list, err := a.Store.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Loans", list[0].Name)
	assert.Equal(t, "Branches", list[1].Name)
	assert.Equal(t, "Checking Accounts", list[2].Name)

	code, ok := a.Pipeline.Translators().Lookup("branch", "Lakeside")
	require.True(t, ok, "lookup tables register while loading")
	assert.Equal(t, 4, code)

	ans, err := a.Pipeline.Ask(context.Background(), "show loans at Lakeside")
	require.NoError(t, err)
	require.Len(t, ans.Result.Rows, 1)
	assert.Equal(t, "P1", ans.Result.Rows[0]["Portfolio"])
}

func TestLoadFilesErrors(t *testing.T) {
	dir := t.TempDir()
	a, err := New(config.Default(), nil)
	require.NoError(t, err)

	err = a.LoadFiles(context.Background(), []string{filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.csv")

	bad := writeDataset(t, dir, "notes.pdf", "x")
	err = a.LoadFiles(context.Background(), []string{bad})
	require.Error(t, err)
	assert.Equal(t, 0, a.Store.Len())
}

func TestNewWithoutConceptCache(t *testing.T) {
	cfg := config.Default()
	cfg.Parser.ConceptCacheSize = 0
	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Pipeline)
}

func TestRouter(t *testing.T) {
	a, err := New(config.Default(), nil)
	require.NoError(t, err)
	router := a.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "running"))

	req := httptest.NewRequest(http.MethodOptions, "/api/sources", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
