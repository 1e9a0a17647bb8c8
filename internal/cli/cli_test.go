package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-euler/queryassist/internal/config"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/service"
)

const loansCSV = `Portfolio,Branch_Number,Principal,Rate
P1,4,"$7,500.00",6%
P2,4,"$3,000.00",5%
P3,2,"$12,000.00",4.5%
`

// setup moves into an empty directory holding loans.csv
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "loans.csv")
	require.NoError(t, os.WriteFile(path, []byte(loansCSV), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAsk_Table(t *testing.T) {
	path := setup(t)

	out, err := run(t, "--file", path, "ask", "show loans over $5,000 in branch 4")
	require.NoError(t, err)
	assert.Contains(t, out, "Source: Loans")
	assert.Contains(t, out, "Portfolio")
	assert.Contains(t, out, "Branch_Number")
	assert.NotContains(t, out, "PORTFOLIO", "headers keep the field id casing")
	assert.Contains(t, out, "P1")
	assert.NotContains(t, out, "P2")
	assert.Contains(t, out, "(1 rows)")
}

func TestAsk_Statistic(t *testing.T) {
	path := setup(t)

	out, err := run(t, "-f", path, "ask", "calculate", "the", "average", "of", "loan", "rates")
	require.NoError(t, err)
	assert.Contains(t, out, "of Rate: 5.1666")
}

func TestAsk_JSON(t *testing.T) {
	path := setup(t)

	out, err := run(t, "-f", path, "ask", "-o", "json", "show loans in branch 2")
	require.NoError(t, err)

	var ans service.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	require.NotNil(t, ans.Result)
	require.Len(t, ans.Result.Rows, 1)
	assert.Equal(t, "P3", ans.Result.Rows[0]["Portfolio"])
}

func TestAsk_Refused(t *testing.T) {
	path := setup(t)

	out, err := run(t, "-f", path, "ask", "hello there")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidPlan))
	assert.Contains(t, out, "could not be planned")
	assert.Contains(t, out, "no target entity")
}

func TestParse(t *testing.T) {
	setup(t)

	out, err := run(t, "parse", "show loans over 5000")
	require.NoError(t, err)

	var plan models.QueryPlan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, []string{"loans"}, plan.TargetEntities)
	require.Len(t, plan.Conditions, 1)
	assert.Equal(t, models.OpGt, plan.Conditions[0].Op)
}

func TestSourcesAndFunctions(t *testing.T) {
	path := setup(t)

	out, err := run(t, "-f", path, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "Loans")
	assert.Contains(t, out, "loans.csv")

	out, err = run(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "no sources loaded")

	out, err = run(t, "functions")
	require.NoError(t, err)
	assert.Contains(t, out, "averagePrincipal")
	assert.Contains(t, out, "loanProfit")
}

func TestConfigFileAndErrors(t *testing.T) {
	path := setup(t)
	require.NoError(t, os.WriteFile(config.DefaultFile, []byte("data:\n  files:\n    - "+path+"\n"), 0o600))

	out, err := run(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "Loans", "files listed in the config load too")

	_, err = run(t, "-f", filepath.Join(t.TempDir(), "missing.csv"), "sources")
	assert.Error(t, err)

	_, err = run(t, "--log-level", "loud", "sources")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	_, err = run(t, "ask")
	assert.Error(t, err, "a prompt is required")
}
