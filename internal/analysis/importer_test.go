package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/translator"
)

const loansCSV = `Portfolio,Branch_Number,Principal,Rate
P1,4,"$7,500.00",6%
P2,4,"$3,000.00",5%
P3,2,"$12,000.00",4.5%
`

const branchesCSV = `Branch_Number,Branch_Name
1,Downtown
2,Riverside
4,Lakeside
`

func newTestImporter() (*Importer, *state.Store, *translator.Registry) {
	store := state.NewStore()
	reg := translator.NewRegistry()
	return NewImporter(store, reg, nil, nil), store, reg
}

func TestImporter_ImportBytes(t *testing.T) {
	ctx := context.Background()
	im, store, reg := newTestImporter()

	res, err := im.ImportBytes(ctx, "", "loans.csv", []byte(loansCSV))
	require.NoError(t, err)
	assert.Equal(t, "Loans", res.Source.Name)
	assert.Equal(t, 3, res.Source.RowCount)
	assert.Equal(t, FormatCSV, res.Format)
	assert.Nil(t, res.Translator)
	assert.Empty(t, reg.Types())

	schema, err := store.GetSchema(ctx, res.Source.SourceID)
	require.NoError(t, err)
	principal, ok := schema.Field("Principal")
	require.True(t, ok)
	assert.Equal(t, models.TypeCurrency, principal.DataType)

	named, err := im.ImportBytes(ctx, "  Q1 Loans ", "loans.csv", []byte(loansCSV))
	require.NoError(t, err)
	assert.Equal(t, "Q1 Loans", named.Source.Name)
	assert.NotEqual(t, res.Source.SourceID, named.Source.SourceID)
}

func TestImporter_RegistersTranslator(t *testing.T) {
	im, _, reg := newTestImporter()

	res, err := im.ImportBytes(context.Background(), "", "branches.csv", []byte(branchesCSV))
	require.NoError(t, err)
	require.NotNil(t, res.Translator)
	assert.Equal(t, "branch", res.Translator.Type)

	code, ok := reg.Lookup("branch", "lakeside")
	require.True(t, ok)
	assert.Equal(t, 4, code)
	_, ok = reg.Lookup("office", "Downtown")
	assert.True(t, ok, "synonyms resolve to the type")
}

func TestImporter_ReplaceBytes(t *testing.T) {
	ctx := context.Background()
	im, store, _ := newTestImporter()

	first, err := im.ImportBytes(ctx, "", "loans.csv", []byte(loansCSV))
	require.NoError(t, err)

	res, err := im.ReplaceBytes(ctx, first.Source.SourceID, "loans.json", []byte(`[{"Portfolio": "P9", "Principal": 100}]`))
	require.NoError(t, err)
	assert.Equal(t, first.Source.SourceID, res.Source.SourceID)
	assert.Equal(t, FormatJSON, res.Format)

	rows, err := store.GetAllRows(ctx, first.Source.SourceID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P9", rows[0]["Portfolio"])

	_, err = im.ReplaceBytes(ctx, "missing", "loans.csv", []byte(loansCSV))
	assert.True(t, errors.Is(err, state.ErrSourceNotFound))
}

func TestImporter_ImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checking_accounts.csv")
	require.NoError(t, os.WriteFile(path, []byte("Portfolio,Balance\nP1,500\n"), 0o600))

	im, _, _ := newTestImporter()
	res, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Checking Accounts", res.Source.Name)
	assert.Equal(t, "checking_accounts.csv", res.Source.OriginalFileName)

	_, err = im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestImporter_Errors(t *testing.T) {
	im, store, _ := newTestImporter()

	_, err := im.ImportBytes(context.Background(), "", "loans.pdf", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = im.ImportBytes(ctx, "", "loans.csv", []byte(loansCSV))
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, 0, store.Len(), "failed imports store nothing")
}
