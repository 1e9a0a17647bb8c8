package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/nlp"
	"github.com/project-euler/queryassist/internal/stats"
	"github.com/project-euler/queryassist/internal/testutil"
	"github.com/project-euler/queryassist/internal/vocab"
)

func newTestPipeline(t *testing.T) (*Pipeline, testutil.Sources) {
	t.Helper()
	store, sources := testutil.NewStore()

	fns := functions.NewRegistry(nil, nil)
	fns.Register(functions.FinancialLibrary, functions.Financial(testutil.Clock)...)
	cache, err := nlp.NewConceptCache(64)
	require.NoError(t, err)

	p := NewPipeline(store, PipelineOptions{
		Translators: testutil.Translators(),
		Functions:   fns,
		Concepts:    cache,
	})
	p.SetClock(testutil.Clock)
	return p, sources
}

func TestAsk_Scenarios(t *testing.T) {
	p, sources := newTestPipeline(t)
	ctx := context.Background()

	t.Run("simple filter", func(t *testing.T) {
		ans, err := p.Ask(ctx, "show loans over $5,000 in branch 4")
		require.NoError(t, err)
		assert.True(t, ans.Validation.IsValid)
		assert.Equal(t, sources.Loans.SourceID, ans.Result.UsedSource.ValueOrZero())
		assert.Equal(t, []any{"P1", "P4"}, column(ans.Result.Rows, "Portfolio"))
	})

	t.Run("between", func(t *testing.T) {
		ans, err := p.Ask(ctx, "find checking accounts with balance from $500 to $5,000")
		require.NoError(t, err)
		assert.Equal(t, sources.Checking.SourceID, ans.Result.UsedSource.ValueOrZero())
		assert.Equal(t, []any{"P1", "P2", "P5"}, column(ans.Result.Rows, "Portfolio"))
	})

	t.Run("multi-source join", func(t *testing.T) {
		ans, err := p.Ask(ctx, "find loans and checking accounts in branch number 4")
		require.NoError(t, err)
		res := ans.Result
		assert.Equal(t, []string{sources.Loans.SourceID, sources.Checking.SourceID}, res.UsedSources)
		assert.Equal(t, "Portfolio", res.UniqueID)
		assert.Equal(t, []any{"P1", "P2", "P4", "P5", "P7"}, column(res.Rows, "Portfolio"))
		assert.Equal(t, true, res.Rows[0][models.KeyIsAggregated])
	})

	t.Run("function call", func(t *testing.T) {
		ans, err := p.Ask(ctx, "calculate average principal")
		require.NoError(t, err)
		require.NotNil(t, ans.Plan.FunctionCall)
		assert.Equal(t, "averagePrincipal", ans.Result.FunctionColumn)
		for _, row := range ans.Result.Rows {
			assert.Contains(t, row, "averagePrincipal")
		}
	})

	t.Run("translated branch name", func(t *testing.T) {
		ans, err := p.Ask(ctx, "show loans at Lakeside")
		require.NoError(t, err)
		assert.Equal(t, []any{"P1", "P2", "P4"}, column(ans.Result.Rows, "Portfolio"))
		assert.Equal(t, "Branch_Number", ans.Plan.Conditions[0].Field)
	})

	t.Run("statistic", func(t *testing.T) {
		ans, err := p.Ask(ctx, "calculate the average of loan rates")
		require.NoError(t, err)
		require.NotNil(t, ans.Result.Statistic)
		assert.InDelta(t, 5.625, ans.Result.Statistic.Value.Float64, 1e-9)
	})

	t.Run("unrecognised prompt is refused", func(t *testing.T) {
		ans, err := p.Ask(ctx, "hello there")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPlan))
		require.NotNil(t, ans)
		assert.False(t, ans.Validation.IsValid)
		assert.Nil(t, ans.Result)
	})
}

func TestPipelinePassThroughs(t *testing.T) {
	p, sources := newTestPipeline(t)
	ctx := context.Background()

	plan := p.Parse("show loans over 5000")
	res, err := p.Validate(ctx, plan, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid, res.Issues)

	mapped, err := p.MapConcepts(ctx, sources.Loans.SourceID, plan.Conditions)
	require.NoError(t, err)
	assert.Equal(t, "Principal", mapped[0].Field)

	match := p.FindFunction("how much profit will this loan make", []string{vocab.EntityLoans})
	require.NotNil(t, match)
	assert.Equal(t, "loanProfit", match.FunctionName)
	assert.Nil(t, p.FindFunction("profit", []string{vocab.EntityChecking}))

	rows := []models.Row{{"v": "1"}, {"v": "3"}}
	got, err := p.ApplyStatistic(rows, "v", "sum")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Float64)

	_, err = p.ApplyStatistic(rows, "v", "harmonic")
	assert.True(t, errors.Is(err, stats.ErrUnknownOp))
}

func TestNewPipelineInstallsResolver(t *testing.T) {
	store, _ := testutil.NewStore()
	fns := functions.NewRegistry(nil, nil)
	fns.Register(functions.FinancialLibrary, functions.Financial(testutil.Clock)...)
	NewPipeline(store, PipelineOptions{Functions: fns})

	fn, ok := fns.Lookup(functions.FinancialLibrary, "loanProfit")
	require.True(t, ok)
	mapping := fns.ResolveParameters(fn, &models.Schema{Fields: []models.Field{
		{ID: "bal", Name: "Outstanding", DataType: models.TypeCurrency},
	}})
	assert.Equal(t, "bal", mapping["principal"], "principal reaches Outstanding through the concept mapper")
}

// countingStore counts schema reads
type countingStore struct {
	Store
	schemaReads int
}

func (c *countingStore) GetSchema(ctx context.Context, id string) (*models.Schema, error) {
	c.schemaReads++
	return c.Store.GetSchema(ctx, id)
}

func TestAsk_ValidatesOnce(t *testing.T) {
	st, _ := testutil.NewStore()
	store := &countingStore{Store: st}
	p := NewPipeline(store, PipelineOptions{Translators: testutil.Translators()})
	p.SetClock(testutil.Clock)
	ctx := context.Background()

	const prompt = "show loans over $5,000 in branch 4"
	_, err := p.Validate(ctx, p.Parse(prompt), nil)
	require.NoError(t, err)
	validationReads := store.schemaReads
	require.Positive(t, validationReads)

	store.schemaReads = 0
	ans, err := p.Ask(ctx, prompt)
	require.NoError(t, err)
	assert.Equal(t, []any{"P1", "P4"}, column(ans.Result.Rows, "Portfolio"))
	assert.Equal(t, validationReads+1, store.schemaReads, "one validation pass plus the engine's schema read")
}
