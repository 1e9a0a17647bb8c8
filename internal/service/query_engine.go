package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/stats"
)

// ErrInvalidPlan is returned when a plan fails validation and is not executed
var ErrInvalidPlan = errors.New("invalid query plan")

// PlanError carries the validation outcome of a refused plan
type PlanError struct {
	Validation models.ValidationResult
}

func (e *PlanError) Error() string {
	if len(e.Validation.Issues) == 0 {
		return ErrInvalidPlan.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidPlan.Error(), strings.Join(e.Validation.Issues, "; "))
}

func (e *PlanError) Unwrap() error { return ErrInvalidPlan }

// QueryEngine validates, resolves and runs query plans against the store
type QueryEngine struct {
	store     Store
	mapper    *ConceptMapper
	validator *Validator
	functions *functions.Registry
	logger    *slog.Logger
	now       func() time.Time
}

// NewQueryEngine wires the engine. fns may be nil when no function layer is
// available; plans calling functions then run without the derived column.
func NewQueryEngine(store Store, mapper *ConceptMapper, validator *Validator, fns *functions.Registry, logger *slog.Logger) *QueryEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryEngine{
		store:     store,
		mapper:    mapper,
		validator: validator,
		functions: fns,
		logger:    logger.With("component", "engine"),
		now:       time.Now,
	}
}

// SetClock replaces the clock relative date conditions are measured from
func (e *QueryEngine) SetClock(now func() time.Time) {
	e.now = now
}

// ExecuteQueryPlan validates the plan and runs it. sources may be nil, in
// which case the store's listing is used.
func (e *QueryEngine) ExecuteQueryPlan(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) (*models.ExecutionResult, error) {
	if sources == nil {
		listed, err := e.store.ListSources(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list sources")
		}
		sources = listed
	}

	validation := e.validator.ValidateQueryPlan(ctx, plan, sources)
	if !validation.IsValid {
		return nil, &PlanError{Validation: validation}
	}
	return e.executeValidated(ctx, plan, sources)
}

// executeValidated runs a plan the caller has already validated against sources
func (e *QueryEngine) executeValidated(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) (*models.ExecutionResult, error) {
	plan = plan.Clone()
	if plan.IsMultiSource() {
		return e.executeMulti(ctx, plan, sources)
	}
	return e.executeSingle(ctx, plan, sources)
}

func (e *QueryEngine) executeSingle(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) (*models.ExecutionResult, error) {
	result := &models.ExecutionResult{Rows: []models.Row{}, Plan: plan}
	if len(plan.TargetEntities) == 0 {
		return result, nil
	}

	src, ok := pickSourceForEntity(plan.TargetEntities[0], sources)
	if !ok {
		e.logger.Info("no source for entity", "entity", plan.TargetEntities[0])
		return result, nil
	}
	result.UsedSource = null.StringFrom(src.SourceID)

	schema, err := e.store.GetSchema(ctx, src.SourceID)
	if err != nil {
		e.logger.Warn("schema unavailable", "source", src.SourceID, "error", err)
		return result, nil
	}
	plan.Conditions = e.mapper.MapConceptsForSchema(schema, plan.Conditions)
	result.Plan = plan

	rows, err := e.store.GetAllRows(ctx, src.SourceID)
	if err != nil {
		e.logger.Warn("rows unavailable", "source", src.SourceID, "error", err)
		return result, nil
	}
	filtered := filterRows(rows, plan.Conditions, plan.LogicalOp, e.now())

	if plan.StatisticalOp != "" {
		result.Statistic = e.statistic(schema, plan, filtered)
	}
	if plan.FunctionCall != nil {
		filtered, result.FunctionColumn = e.applyFunction(schema, plan.FunctionCall, filtered)
	}
	result.Rows = filtered

	e.logger.Debug("single-source query executed",
		"source", src.SourceID,
		"rows", len(rows),
		"matched", len(filtered),
	)
	return result, nil
}

func (e *QueryEngine) statistic(schema *models.Schema, plan models.QueryPlan, rows []models.Row) *models.StatisticResult {
	op, ok := stats.Canonical(plan.StatisticalOp)
	if !ok {
		op = plan.StatisticalOp
	}
	out := &models.StatisticResult{Op: op}
	field, ok := e.mapper.ResolveField(schema, plan.StatisticalField, models.ValueNumber)
	if !ok {
		return out
	}
	out.Field = field
	out.Value = stats.ApplyStatisticalOperation(rows, field, op)
	return out
}

func (e *QueryEngine) applyFunction(schema *models.Schema, call *models.FunctionCall, rows []models.Row) ([]models.Row, string) {
	if e.functions == nil {
		return rows, ""
	}
	fn, ok := e.functions.Lookup(call.Library, call.Function)
	if !ok {
		e.logger.Warn("function not registered", "library", call.Library, "function", call.Function)
		return rows, ""
	}
	return e.functions.ApplyToRows(fn, schema, rows), fn.Name
}
