package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/testutil"
)

func TestMapConceptsForSchema(t *testing.T) {
	mapper := NewConceptMapper(nil, nil)

	translated := models.NewNumberCondition("branches", models.OpEq, 4)
	translated.Translated = true
	translated.TranslationSource = "branches"

	tests := []struct {
		name   string
		schema *models.Schema
		cond   models.Condition
		want   string
	}{
		{"exact base noun", testutil.LoanSchema(), models.NewNumberCondition("principal", models.OpGt, 1), "Principal"},
		{"adjunct stripped on the field side", testutil.LoanSchema(), models.NewNumberCondition("branch", models.OpEq, 4), "Branch_Number"},
		{"adjunct stripped on the concept side", testutil.LoanSchema(), models.NewNumberCondition("branch number", models.OpEq, 4), "Branch_Number"},
		{"same group synonym", testutil.CheckingSchema(), models.NewNumberCondition("principal", models.OpGt, 1), "Balance"},
		{"same group on loans", testutil.LoanSchema(), models.NewNumberCondition("balance", models.OpGt, 1), "Principal"},
		{"date concept", testutil.LoanSchema(), models.NewDateCondition("opened", models.OpAfter, testutil.Now), "Open_Date"},
		{"maturity", testutil.LoanSchema(), models.NewDateCondition("matured", models.OpBefore, testutil.Now), "Maturity_Date"},
		{"translated through its group", testutil.LoanSchema(), translated, "Branch_Number"},
		{"no match", testutil.LoanSchema(), models.NewNumberCondition("zebra", models.OpGt, 1), ""},
		{"rate missing from checking", testutil.CheckingSchema(), models.NewNumberCondition("rate", models.OpGt, 1), ""},
		{"string equality matches any type", testutil.BranchSchema(), models.NewStringCondition("name", "Lakeside"), "Branch_Name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapper.MapConceptsForSchema(tt.schema, []models.Condition{tt.cond})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Field)
		})
	}
}

func TestMapConceptsForSchema_KeepsOrderAndInput(t *testing.T) {
	mapper := NewConceptMapper(nil, nil)
	in := []models.Condition{
		models.NewNumberCondition("zebra", models.OpGt, 1),
		models.NewNumberCondition("rate", models.OpGt, 5),
	}
	out := mapper.MapConceptsForSchema(testutil.LoanSchema(), in)

	require.Len(t, out, 2)
	assert.False(t, out[0].Resolved())
	assert.Equal(t, "Rate", out[1].Field)
	assert.Empty(t, in[1].Field, "input conditions are not modified")
}

func TestMapConceptsForSchema_SkipsFunctionConditions(t *testing.T) {
	mapper := NewConceptMapper(nil, nil)
	c := models.NewNumberCondition("principal", models.OpGt, 1)
	c.Function = "averagePrincipal"

	out := mapper.MapConceptsForSchema(testutil.LoanSchema(), []models.Condition{c})
	assert.False(t, out[0].Resolved())
}

func TestMapConceptsToFields(t *testing.T) {
	store, sources := testutil.NewStore()
	mapper := NewConceptMapper(store, nil)
	ctx := context.Background()
	conds := []models.Condition{models.NewNumberCondition("principal", models.OpGt, 1)}

	out, err := mapper.MapConceptsToFields(ctx, sources.Loans.SourceID, conds)
	require.NoError(t, err)
	assert.Equal(t, "Principal", out[0].Field)

	out, err = mapper.MapConceptsToFields(ctx, "missing", conds)
	require.NoError(t, err, "unknown sources leave conditions unresolved")
	require.Len(t, out, 1)
	assert.False(t, out[0].Resolved())
}

func TestMapConceptsToFields_CanceledContext(t *testing.T) {
	store, sources := testutil.NewStore()
	mapper := NewConceptMapper(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mapper.MapConceptsToFields(ctx, sources.Loans.SourceID, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveField(t *testing.T) {
	mapper := NewConceptMapper(nil, nil)

	field, ok := mapper.ResolveField(testutil.LoanSchema(), "payment", models.ValueNumber)
	assert.True(t, ok)
	assert.Equal(t, "Payment", field)

	_, ok = mapper.ResolveField(testutil.LoanSchema(), "  ", models.ValueNumber)
	assert.False(t, ok)
	_, ok = mapper.ResolveField(nil, "payment", models.ValueNumber)
	assert.False(t, ok)
}
