package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/stats"
	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

// DefaultUniqueID is the join key used when no source suggests one
const DefaultUniqueID = "Portfolio"

var uniqueIDCandidates = []string{"Portfolio", "Portfolio_ID", "ID", "Customer_ID", "Account_ID", "Reference"}

type valuationWeight struct {
	pattern string
	weight  int
}

var valuationWeights = []valuationWeight{
	{"principal", 5},
	{"balance", 5},
	{"outstanding", 3},
	{"average", 3},
	{"avg", 3},
	{"amount", 2},
	{"value", 1},
}

type plannedSource struct {
	meta   models.SourceMeta
	schema *models.Schema
}

func (e *QueryEngine) executeMulti(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) (*models.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	selected, err := e.selectSources(ctx, plan.TargetEntities, sources)
	if err != nil {
		return nil, err
	}

	if plan.UniqueID == "" {
		plan.UniqueID = determineUniqueID(selected)
	}
	if len(plan.ValuationFields) == 0 {
		plan.ValuationFields = determineValuationFields(selected, plan.UniqueID)
	}
	if len(plan.Columns) == 0 {
		plan.Columns = defaultColumns(selected, plan.UniqueID)
	}

	result := &models.ExecutionResult{
		Rows:            []models.Row{},
		UsedSources:     []string{},
		UniqueID:        plan.UniqueID,
		Columns:         plan.Columns,
		ValuationFields: plan.ValuationFields,
		Plan:            plan,
	}

	var tagged []models.Row
	for _, src := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.UsedSources = append(result.UsedSources, src.meta.SourceID)

		conds := e.mapper.MapConceptsForSchema(src.schema, plan.Conditions)
		if unresolved := firstUnresolved(conds); unresolved != "" {
			e.logger.Info("source excluded, condition not mapped",
				"source", src.meta.SourceID,
				"concept", unresolved,
			)
			continue
		}

		rows, err := e.store.GetAllRows(ctx, src.meta.SourceID)
		if err != nil {
			return nil, errors.Wrapf(err, "load rows of source %s", src.meta.SourceID)
		}
		for _, row := range filterRows(rows, conds, plan.LogicalOp, e.now()) {
			t := row.Clone()
			t[models.KeySourceID] = src.meta.SourceID
			tagged = append(tagged, t)
		}
	}

	result.Rows = groupRows(tagged, plan.UniqueID, plan.ValuationFields, plan.Columns)

	if plan.StatisticalOp != "" {
		result.Statistic = e.multiStatistic(selected, plan, result.Rows)
	}

	e.logger.Debug("multi-source query executed",
		"sources", result.UsedSources,
		"unique_id", plan.UniqueID,
		"groups", len(result.Rows),
	)
	return result, nil
}

// selectSources picks one source per entity. A source that vanished since it
// was listed is skipped; any other schema error aborts the query.
func (e *QueryEngine) selectSources(ctx context.Context, entities []string, sources []models.SourceMeta) ([]plannedSource, error) {
	var out []plannedSource
	seen := set.New[string](len(entities))
	for _, entity := range entities {
		meta, ok := pickSourceForEntity(entity, sources)
		if !ok {
			e.logger.Info("no source for entity", "entity", entity)
			continue
		}
		if !seen.Insert(meta.SourceID) {
			continue
		}
		schema, err := e.store.GetSchema(ctx, meta.SourceID)
		if errors.Is(err, state.ErrSourceNotFound) || (err == nil && schema == nil) {
			e.logger.Warn("schema unavailable", "source", meta.SourceID, "error", err)
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load schema of source %s", meta.SourceID)
		}
		out = append(out, plannedSource{meta: meta, schema: schema})
	}
	return out, nil
}

func (e *QueryEngine) multiStatistic(selected []plannedSource, plan models.QueryPlan, rows []models.Row) *models.StatisticResult {
	op, _ := stats.Canonical(plan.StatisticalOp)
	out := &models.StatisticResult{Op: op}
	for _, src := range selected {
		if field, ok := e.mapper.ResolveField(src.schema, plan.StatisticalField, models.ValueNumber); ok {
			out.Field = field
			out.Value = stats.ApplyStatisticalOperation(rows, field, op)
			break
		}
	}
	return out
}

func firstUnresolved(conds []models.Condition) string {
	for _, c := range conds {
		if c.Function == "" && !c.Resolved() {
			return c.Concept
		}
	}
	return ""
}

// determineUniqueID prefers a field flagged as a candidate id, then a known
// id column name, then the literal default
func determineUniqueID(selected []plannedSource) string {
	for _, src := range selected {
		for _, f := range src.schema.Fields {
			if f.RoleGuess == models.RoleCandidateID {
				return f.ID
			}
		}
	}
	for _, src := range selected {
		for _, f := range src.schema.Fields {
			for _, cand := range uniqueIDCandidates {
				if strings.EqualFold(fieldName(f), cand) || strings.EqualFold(f.ID, cand) {
					return f.ID
				}
			}
		}
	}
	return DefaultUniqueID
}

// determineValuationFields keeps the single best-weighted field of each
// source and unions the winners
func determineValuationFields(selected []plannedSource, uniqueID string) []string {
	var out []string
	for _, src := range selected {
		bestID, bestScore := "", 0
		for _, f := range src.schema.Fields {
			if f.ID == uniqueID || f.DataType == models.TypeDate {
				continue
			}
			if score := valuationScore(fieldName(f)); score > bestScore {
				bestID, bestScore = f.ID, score
			}
		}
		if bestID != "" && !contains(out, bestID) {
			out = append(out, bestID)
		}
	}
	return out
}

func valuationScore(name string) int {
	lower := strings.ToLower(name)
	words := vocab.Tokenize(name)
	best := 0
	for _, w := range valuationWeights {
		if !strings.Contains(lower, w.pattern) {
			continue
		}
		score := w.weight
		if contains(words, w.pattern) {
			score++
		}
		if score > best {
			best = score
		}
	}
	return best
}

func defaultColumns(selected []plannedSource, uniqueID string) []string {
	cols := []string{uniqueID}
	seen := set.From(cols)
	for _, src := range selected {
		for _, id := range src.schema.FieldIDs() {
			if seen.Insert(id) {
				cols = append(cols, id)
			}
		}
	}
	return cols
}

type rowGroup struct {
	members   []models.Row
	sourceIDs []string
}

// groupRows merges rows sharing a uniqueId value. Valuation fields are summed,
// other columns take the first non-empty value. Rows without an id are dropped.
func groupRows(rows []models.Row, uniqueID string, valuation, columns []string) []models.Row {
	var order []string
	groups := make(map[string]*rowGroup)

	for _, row := range rows {
		key := strings.TrimSpace(values.String(row[uniqueID]))
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &rowGroup{}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, row)
		if id, _ := row[models.KeySourceID].(string); id != "" && !contains(g.sourceIDs, id) {
			g.sourceIDs = append(g.sourceIDs, id)
		}
	}

	sums := set.From(valuation)
	out := make([]models.Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		merged := models.Row{}

		for _, col := range columns {
			if sums.Contains(col) {
				continue
			}
			for _, m := range g.members {
				if v, ok := m[col]; ok && !values.IsEmpty(v) {
					merged[col] = v
					break
				}
			}
		}
		for _, col := range valuation {
			total := 0.0
			for _, m := range g.members {
				total += values.NumberOrZero(m[col])
			}
			merged[col] = total
		}

		merged[models.KeyIsAggregated] = len(g.members) > 1
		merged[models.KeySubRows] = g.members
		merged[models.KeySourceIDs] = g.sourceIDs
		out = append(out, merged)
	}
	return out
}
