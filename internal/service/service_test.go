package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/testutil"
)

var errBoom = errors.New("boom")

// failingStore wraps a store and fails row reads for the sources in failRows
// and schema reads with the error listed in failSchema
type failingStore struct {
	Store
	failRows   map[string]bool
	failSchema map[string]error
}

func (f *failingStore) GetSchema(ctx context.Context, id string) (*models.Schema, error) {
	if err := f.failSchema[id]; err != nil {
		return nil, err
	}
	return f.Store.GetSchema(ctx, id)
}

func (f *failingStore) GetAllRows(ctx context.Context, id string) ([]models.Row, error) {
	if f.failRows[id] {
		return nil, errBoom
	}
	return f.Store.GetAllRows(ctx, id)
}

type engineFixture struct {
	engine  *QueryEngine
	mapper  *ConceptMapper
	sources testutil.Sources
	listing []models.SourceMeta
}

func newEngineFixture(t *testing.T, wrap func(Store) Store) engineFixture {
	t.Helper()
	st, sources := testutil.NewStore()
	var store Store = st
	if wrap != nil {
		store = wrap(st)
	}

	mapper := NewConceptMapper(store, nil)
	fns := functions.NewRegistry(mapper, nil)
	fns.Register(functions.FinancialLibrary, functions.Financial(testutil.Clock)...)

	engine := NewQueryEngine(store, mapper, NewValidator(mapper, nil), fns, nil)
	engine.SetClock(testutil.Clock)

	listing, err := store.ListSources(context.Background())
	require.NoError(t, err)
	return engineFixture{engine: engine, mapper: mapper, sources: sources, listing: listing}
}

func column(rows []models.Row, field string) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r[field])
	}
	return out
}
