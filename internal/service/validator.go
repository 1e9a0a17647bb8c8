package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/stats"
	"github.com/project-euler/queryassist/internal/vocab"
)

// Confidence ceilings applied per failed check
const (
	capMissingIntent     = 0.5
	capNoEntities        = 0.3
	capUnknownEntity     = 0.2
	capUnknownStatOp     = 0.7
	capStatWithoutField  = 0.8
	capMalformedCond     = 0.7
	capStatAndFunction   = 0.6
	capWithSources       = 0.8
	capEntityWithoutData = 0.4
	capUnmappedCond      = 0.6
)

// Validator sanity-checks plans before they reach the engine
type Validator struct {
	mapper *ConceptMapper
	logger *slog.Logger
}

// NewValidator creates a validator. The mapper is only used when source
// metadata is passed in.
func NewValidator(mapper *ConceptMapper, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{mapper: mapper, logger: logger.With("component", "validator")}
}

type validation struct {
	issues     []string
	confidence float64
}

func (v *validation) fail(ceiling float64, format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
	v.lower(ceiling)
}

func (v *validation) lower(ceiling float64) {
	v.confidence = math.Min(v.confidence, ceiling)
}

// ValidateQueryPlan runs the structural checks and, when sources is not
// empty, checks that every entity has a source and every condition maps
// somewhere. Confidence only ever goes down.
func (v *Validator) ValidateQueryPlan(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) models.ValidationResult {
	res := &validation{issues: []string{}, confidence: 1.0}

	v.checkStructure(plan, res)
	if len(sources) > 0 {
		res.lower(capWithSources)
		v.checkSources(ctx, plan, sources, res)
	}

	ic := plan.IntentConfidence
	if ic <= 0 {
		ic = 1
	}
	confidence := res.confidence * (0.5 + 0.5*math.Min(ic, 1))

	out := models.ValidationResult{
		IsValid:    len(res.issues) == 0,
		Issues:     res.issues,
		Confidence: math.Round(confidence*1000) / 1000,
	}
	if !out.IsValid {
		v.logger.Debug("plan rejected", "issues", out.Issues, "confidence", out.Confidence)
	}
	return out
}

func (v *Validator) checkStructure(plan models.QueryPlan, res *validation) {
	if strings.TrimSpace(plan.Intent) == "" {
		res.fail(capMissingIntent, "missing intent")
	}

	if len(plan.TargetEntities) == 0 {
		res.fail(capNoEntities, "no target entity")
	}
	for _, e := range plan.TargetEntities {
		if !vocab.EntitySet.Contains(e) {
			res.fail(capUnknownEntity, "unknown entity %q", e)
		}
	}

	if plan.StatisticalOp != "" {
		if _, ok := stats.Canonical(plan.StatisticalOp); !ok {
			res.fail(capUnknownStatOp, "unknown statistical operation %q", plan.StatisticalOp)
		}
		if strings.TrimSpace(plan.StatisticalField) == "" {
			res.fail(capStatWithoutField, "statistical operation %q has no field", plan.StatisticalOp)
		}
		if plan.FunctionCall != nil {
			res.fail(capStatAndFunction, "statistical operation and function call are mutually exclusive")
		}
	}

	for i, c := range plan.Conditions {
		if err := c.Check(); err != nil {
			res.fail(capMalformedCond, "condition %d: %s", i+1, err.Error())
		}
	}
}

func (v *Validator) checkSources(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta, res *validation) {
	var candidates []models.SourceMeta
	for _, e := range plan.TargetEntities {
		src, ok := pickSourceForEntity(e, sources)
		if !ok {
			res.fail(capEntityWithoutData, "no source holds %s", e)
			continue
		}
		candidates = append(candidates, src)
	}
	if v.mapper == nil || len(candidates) == 0 {
		return
	}

	for _, c := range plan.Conditions {
		if c.Function != "" {
			continue
		}
		if !v.mapsSomewhere(ctx, c, candidates) {
			res.fail(capUnmappedCond, "%q does not match a field in any source", c.Concept)
		}
	}
}

func (v *Validator) mapsSomewhere(ctx context.Context, c models.Condition, candidates []models.SourceMeta) bool {
	for _, src := range candidates {
		mapped, err := v.mapper.MapConceptsToFields(ctx, src.SourceID, []models.Condition{c})
		if err != nil {
			v.logger.Debug("mapping failed during validation", "source", src.SourceID, "error", err)
			continue
		}
		if len(mapped) == 1 && mapped[0].Resolved() {
			return true
		}
	}
	return false
}
