package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

func showPlan(entities []string, conds ...models.Condition) models.QueryPlan {
	if conds == nil {
		conds = []models.Condition{}
	}
	return models.QueryPlan{
		Intent:           "show",
		IntentConfidence: 0.95,
		TargetEntities:   entities,
		Conditions:       conds,
		LogicalOp:        models.LogicalAnd,
	}
}

func TestExecute_SimpleFilter(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans},
		models.NewNumberCondition("principal", models.OpGt, 5000),
		models.NewNumberCondition("branch", models.OpEq, 4),
	)

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)

	assert.Equal(t, fx.sources.Loans.SourceID, res.UsedSource.ValueOrZero())
	assert.Equal(t, []any{"P1", "P4"}, column(res.Rows, "Portfolio"))
	assert.Equal(t, "Principal", res.Plan.Conditions[0].Field)
	assert.Equal(t, "Branch_Number", res.Plan.Conditions[1].Field)
	assert.Empty(t, plan.Conditions[0].Field, "caller's plan is not resolved in place")
}

func TestExecute_BetweenIsInclusive(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityChecking}, models.NewRangeCondition("balance", 500, 5000))

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t, fx.sources.Checking.SourceID, res.UsedSource.ValueOrZero())
	assert.Equal(t, []any{"P1", "P2", "P5"}, column(res.Rows, "Portfolio"), "P7 holds a non-numeric balance")
}

func TestExecute_OrCombinesConditions(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans},
		models.NewNumberCondition("principal", models.OpGt, 10000),
		models.NewNumberCondition("principal", models.OpLt, 4000),
	)
	plan.LogicalOp = models.LogicalOr

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)
	assert.Equal(t, []any{"P2", "P3"}, column(res.Rows, "Portfolio"))
}

func TestExecute_DateConditions(t *testing.T) {
	fx := newEngineFixture(t, nil)
	ctx := context.Background()

	recent := showPlan([]string{vocab.EntityLoans}, models.NewRelativeCondition("opened", models.UnitMonth, 6))
	res, err := fx.engine.ExecuteQueryPlan(ctx, recent, fx.listing)
	require.NoError(t, err)
	assert.Equal(t, []any{"P3", "P4"}, column(res.Rows, "Portfolio"))

	boundary, ok := values.Date("2026-06-01")
	require.True(t, ok)
	before := showPlan([]string{vocab.EntityLoans}, models.NewDateCondition("maturity", models.OpBefore, boundary))
	res, err = fx.engine.ExecuteQueryPlan(ctx, before, fx.listing)
	require.NoError(t, err)
	assert.Equal(t, []any{"P2", "P4"}, column(res.Rows, "Portfolio"))
}

func TestExecute_UnresolvedConditionRejectsEveryRow(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans}, models.NewNumberCondition("zebra", models.OpGt, 1))

	// run directly: validation against sources refuses an unmapped concept
	res, err := fx.engine.executeSingle(context.Background(), plan, fx.listing)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestExecute_NoSourceForEntity(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityDeposits})

	res, err := fx.engine.executeSingle(context.Background(), plan, fx.listing)
	require.NoError(t, err)
	assert.False(t, res.UsedSource.Valid)
	assert.Empty(t, res.Rows)
}

func TestExecute_Statistic(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans})
	plan.StatisticalOp = "avg"
	plan.StatisticalField = "rate"

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)
	require.NotNil(t, res.Statistic)
	assert.Equal(t, vocab.StatMean, res.Statistic.Op)
	assert.Equal(t, "Rate", res.Statistic.Field)
	assert.InDelta(t, 5.625, res.Statistic.Value.Float64, 1e-9)
	assert.Len(t, res.Rows, 4)
}

func TestExecute_FunctionCall(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := models.QueryPlan{
		Intent:           "calculate",
		IntentConfidence: 0.95,
		TargetEntities:   []string{vocab.EntityLoans},
		Conditions:       []models.Condition{},
		LogicalOp:        models.LogicalAnd,
		FunctionCall:     &models.FunctionCall{Library: functions.FinancialLibrary, Function: "averagePrincipal"},
	}

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)
	assert.Equal(t, "averagePrincipal", res.FunctionColumn)
	require.Len(t, res.Rows, 4)
	for _, row := range res.Rows {
		principal, ok := values.Number(row["Principal"])
		require.True(t, ok)
		avg, ok := row["averagePrincipal"].(float64)
		require.True(t, ok, "row %v has no derived value", row["Portfolio"])
		assert.Greater(t, avg, 0.0)
		assert.LessOrEqual(t, avg, principal)
	}
}

func TestExecute_InvalidPlanIsRefused(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan(nil)

	_, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPlan))

	var planErr *PlanError
	require.True(t, errors.As(err, &planErr))
	assert.False(t, planErr.Validation.IsValid)
	assert.Contains(t, planErr.Error(), "no target entity")
}

func TestExecute_MultiSourceJoin(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans, vocab.EntityChecking}, models.NewNumberCondition("branch", models.OpEq, 4))

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)

	assert.False(t, res.UsedSource.Valid)
	assert.Equal(t, []string{fx.sources.Loans.SourceID, fx.sources.Checking.SourceID}, res.UsedSources)
	assert.Equal(t, "Portfolio", res.UniqueID)
	assert.Equal(t, []string{"Principal", "Balance"}, res.ValuationFields)
	assert.Equal(t, "Portfolio", res.Columns[0])
	assert.Equal(t, []any{"P1", "P2", "P4", "P5", "P7"}, column(res.Rows, "Portfolio"))

	p1 := res.Rows[0]
	assert.Equal(t, true, p1[models.KeyIsAggregated])
	assert.Equal(t, 7500.0, p1["Principal"])
	assert.Equal(t, 1000.0, p1["Balance"])
	assert.Len(t, p1[models.KeySubRows], 2)
	assert.Equal(t, []string{fx.sources.Loans.SourceID, fx.sources.Checking.SourceID}, p1[models.KeySourceIDs])

	p4 := res.Rows[2]
	assert.Equal(t, false, p4[models.KeyIsAggregated])
	assert.Equal(t, 0.0, p4["Balance"])
	assert.Equal(t, 0.0, res.Rows[4]["Balance"], "non-numeric balances sum as zero")
}

func TestExecute_MultiSourceSumInvariant(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans, vocab.EntityChecking}, models.NewNumberCondition("branch", models.OpEq, 4))

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)

	for _, field := range res.ValuationFields {
		grouped, members := 0.0, 0.0
		for _, row := range res.Rows {
			grouped += row[field].(float64)
			for _, sub := range row[models.KeySubRows].([]models.Row) {
				members += values.NumberOrZero(sub[field])
			}
		}
		assert.InDelta(t, members, grouped, 1e-9, field)
	}
	assert.InDelta(t, 16500.0, res.Rows[0]["Principal"].(float64)+res.Rows[1]["Principal"].(float64)+res.Rows[2]["Principal"].(float64), 1e-9)
}

func TestExecute_MultiSourceFailClosed(t *testing.T) {
	fx := newEngineFixture(t, nil)
	plan := showPlan([]string{vocab.EntityLoans, vocab.EntityChecking}, models.NewNumberCondition("rate", models.OpGt, 5))

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	require.NoError(t, err)

	assert.Equal(t, []any{"P1", "P4"}, column(res.Rows, "Portfolio"))
	for _, row := range res.Rows {
		assert.Equal(t, []string{fx.sources.Loans.SourceID}, row[models.KeySourceIDs],
			"checking has no rate field and contributes nothing")
	}
}

func TestExecute_MultiSourceRowErrorAborts(t *testing.T) {
	fx := newEngineFixture(t, func(s Store) Store {
		return &failingStore{Store: s, failRows: map[string]bool{}}
	})
	checkingID := fx.sources.Checking.SourceID
	fx.engine.store.(*failingStore).failRows[checkingID] = true

	plan := showPlan([]string{vocab.EntityLoans, vocab.EntityChecking})
	res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	assert.Contains(t, err.Error(), checkingID)
}

func TestExecute_MultiSourceSchemaError(t *testing.T) {
	plan := showPlan([]string{vocab.EntityLoans, vocab.EntityChecking})

	t.Run("storage failure aborts", func(t *testing.T) {
		fx := newEngineFixture(t, func(s Store) Store {
			return &failingStore{Store: s, failSchema: map[string]error{}}
		})
		checkingID := fx.sources.Checking.SourceID
		fx.engine.store.(*failingStore).failSchema[checkingID] = errBoom

		res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
		assert.Nil(t, res, "no partial aggregation")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errBoom))
		assert.Contains(t, err.Error(), checkingID)
	})

	t.Run("vanished source is skipped", func(t *testing.T) {
		fx := newEngineFixture(t, func(s Store) Store {
			return &failingStore{Store: s, failSchema: map[string]error{}}
		})
		fx.engine.store.(*failingStore).failSchema[fx.sources.Checking.SourceID] =
			errors.Wrap(state.ErrSourceNotFound, "deleted")

		res, err := fx.engine.ExecuteQueryPlan(context.Background(), plan, fx.listing)
		require.NoError(t, err)
		assert.Equal(t, []string{fx.sources.Loans.SourceID}, res.UsedSources)
	})
}

func TestExecute_SingleSourceRowErrorGivesEmptyResult(t *testing.T) {
	fx := newEngineFixture(t, func(s Store) Store {
		return &failingStore{Store: s, failRows: map[string]bool{}}
	})
	fx.engine.store.(*failingStore).failRows[fx.sources.Loans.SourceID] = true

	res, err := fx.engine.ExecuteQueryPlan(context.Background(), showPlan([]string{vocab.EntityLoans}), fx.listing)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, fx.sources.Loans.SourceID, res.UsedSource.ValueOrZero())
}

func TestExecute_CanceledBetweenSources(t *testing.T) {
	fx := newEngineFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.engine.executeMulti(ctx, showPlan([]string{vocab.EntityLoans, vocab.EntityChecking}), fx.listing)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetermineUniqueID(t *testing.T) {
	idByName := &models.Schema{Fields: []models.Field{
		{ID: "acct", Name: "Account_ID", DataType: models.TypeString},
		{ID: "bal", Name: "Balance", DataType: models.TypeCurrency},
	}}
	noID := &models.Schema{Fields: []models.Field{{ID: "bal", Name: "Balance", DataType: models.TypeCurrency}}}
	candidate := &models.Schema{Fields: []models.Field{{ID: "Ref", Name: "Ref", RoleGuess: models.RoleCandidateID}}}

	assert.Equal(t, "acct", determineUniqueID([]plannedSource{{schema: idByName}}))
	assert.Equal(t, DefaultUniqueID, determineUniqueID([]plannedSource{{schema: noID}}))
	assert.Equal(t, "Ref", determineUniqueID([]plannedSource{{schema: idByName}, {schema: candidate}}),
		"a candidate id anywhere wins over a known name")
}

func TestValuationScore(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"Principal", 6},
		{"Current_Balance", 6},
		{"OutstandingAmt", 4},
		{"Avg_Bal", 4},
		{"Amount", 3},
		{"Market Value", 2},
		{"Rate", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuationScore(tt.name))
		})
	}
}

func TestGroupRowsDropsRowsWithoutKey(t *testing.T) {
	rows := []models.Row{
		{"id": "A", "amt": "10", models.KeySourceID: "s1"},
		{"id": "", "amt": "99", models.KeySourceID: "s1"},
		{"amt": "99", models.KeySourceID: "s2"},
		{"id": "A", "amt": "$5", "note": "x", models.KeySourceID: "s2"},
	}
	out := groupRows(rows, "id", []string{"amt"}, []string{"id", "amt", "note"})

	require.Len(t, out, 1)
	assert.Equal(t, 15.0, out[0]["amt"])
	assert.Equal(t, "x", out[0]["note"])
	assert.Equal(t, []string{"s1", "s2"}, out[0][models.KeySourceIDs])
}
