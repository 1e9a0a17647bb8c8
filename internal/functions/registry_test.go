package functions

import (
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/models"
)

type stubResolver map[string]string

func (s stubResolver) ResolveField(_ *models.Schema, concept string, _ models.ValueType) (string, bool) {
	id, ok := s[concept]
	return id, ok
}

func newFinancialRegistry(resolver ConceptResolver) *Registry {
	r := NewRegistry(resolver, nil)
	r.Register(FinancialLibrary, Financial(func() time.Time { return fixedNow })...)
	return r
}

func loanSchema() *models.Schema {
	return &models.Schema{Fields: []models.Field{
		{ID: "Portfolio", Name: "Portfolio", DataType: models.TypeString, RoleGuess: models.RoleCandidateID},
		{ID: "Principal", Name: "Principal", DataType: models.TypeCurrency},
		{ID: "Rate", Name: "Rate", DataType: models.TypePercentage},
		{ID: "Maturity", Name: "Maturity", DataType: models.TypeDate},
	}}
}

func TestResolveParameters_AveragePrincipal(t *testing.T) {
	r := newFinancialRegistry(nil)
	fn, ok := r.Lookup(FinancialLibrary, "averagePrincipal")
	require.True(t, ok)

	got := r.ResolveParameters(fn, loanSchema())
	assert.Equal(t, map[string]string{
		"principal":    "Principal",
		"rate":         "Rate",
		"maturityDate": "Maturity",
	}, got)
}

func TestResolveParameters_FallbackOrder(t *testing.T) {
	schema := &models.Schema{Fields: []models.Field{
		{ID: "amt", Name: "Outstanding Amount", DataType: models.TypeCurrency},
		{ID: "TermMonths", Name: "Term (Months)", DataType: models.TypeInteger},
		{ID: "payment", Name: "payment", DataType: models.TypeCurrency},
	}}
	r := newFinancialRegistry(stubResolver{"principal": "amt"})
	fn, _ := r.Lookup("", "averagePrincipal")

	got := r.ResolveParameters(fn, schema)
	assert.Equal(t, "amt", got["principal"], "concept fallback")
	assert.Equal(t, "TermMonths", got["termMonths"], "term alias")
	assert.Equal(t, "payment", got["payment"], "payment alias")
	_, mapped := got["rate"]
	assert.False(t, mapped)
}

func TestApplyToRows(t *testing.T) {
	r := newFinancialRegistry(nil)
	fn, _ := r.Lookup(FinancialLibrary, "loanProfit")

	rows := []models.Row{
		{"Portfolio": "P1", "Principal": "$10,000", "Rate": "5"},
		{"Portfolio": "P2", "Principal": "", "Rate": "5"},
	}
	out := r.ApplyToRows(fn, loanSchema(), rows)
	require.Len(t, out, 2)
	assert.Equal(t, 500.0, out[0]["loanProfit"])
	assert.Equal(t, 0.0, out[1]["loanProfit"])
	_, touched := rows[0]["loanProfit"]
	assert.False(t, touched, "input rows are not mutated")
}

func TestExecute_ContainsFailures(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("test",
		Function{Name: "boom", Impl: func(Args) (float64, error) { panic("bad input") }},
		Function{Name: "fails", Impl: func(Args) (float64, error) { return 0, errors.New("nope") }},
	)

	boom, _ := r.Lookup("test", "boom")
	assert.False(t, r.Execute(boom, NewArgs(nil)).Valid)

	fails, _ := r.Lookup("test", "fails")
	out := r.ApplyToRows(fails, &models.Schema{}, []models.Row{{"a": 1}})
	_, has := out[0]["fails"]
	assert.False(t, has, "failed rows carry no derived column")
}

func TestFindBestFunctionByPrompt(t *testing.T) {
	r := newFinancialRegistry(nil)

	tests := []struct {
		prompt   string
		entities []string
		want     string
	}{
		{"calculate average principal", nil, "averagePrincipal"},
		{"compute the loan profit", []string{"loans"}, "loanProfit"},
		{"estimate earnings on loans", nil, "loanProfit"},
		{"determine months until maturity", nil, "untilMaturity"},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			m := r.FindBestFunctionByPrompt(tt.prompt, tt.entities)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.FunctionName)
			assert.Equal(t, FinancialLibrary, m.Library)
			assert.Equal(t, "number", m.ReturnType)
		})
	}

	assert.Nil(t, r.FindBestFunctionByPrompt("hello there", nil))
	assert.Nil(t, r.FindBestFunctionByPrompt("calculate average principal", []string{"checking"}),
		"entity filter skips loan functions")
}

func TestKeywordIndexInvalidation(t *testing.T) {
	r := newFinancialRegistry(nil)
	assert.False(t, r.HasKeyword("churn"))

	r.Register("risk", Function{
		Name:        "churnScore",
		Description: "Likelihood a customer leaves",
		Keywords:    []string{"churn"},
		Impl:        func(Args) (float64, error) { return 1, nil },
	})
	assert.True(t, r.HasKeyword("churn"))
	assert.True(t, r.HasKeyword("likelihood"))

	found := false
	for _, kw := range r.Keywords() {
		if strings.Contains(kw, "churn") {
			found = true
		}
	}
	assert.True(t, found)
}
