package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/nlp"
	"github.com/project-euler/queryassist/internal/stats"
	"github.com/project-euler/queryassist/internal/translator"
)

// Pipeline wires parser, mapper, validator and engine over one store
type Pipeline struct {
	store       Store
	translators *translator.Registry
	functions   *functions.Registry
	parser      *nlp.Parser
	mapper      *ConceptMapper
	validator   *Validator
	engine      *QueryEngine
	logger      *slog.Logger
}

// PipelineOptions are the collaborators of a pipeline. Nil registries are
// replaced by empty ones; a nil cache disables concept caching.
type PipelineOptions struct {
	Translators *translator.Registry
	Functions   *functions.Registry
	Concepts    *nlp.ConceptCache
	Logger      *slog.Logger
}

// Answer is the full outcome of one prompt
type Answer struct {
	Plan       models.QueryPlan        `json:"plan"`
	Validation models.ValidationResult `json:"validation"`
	Result     *models.ExecutionResult `json:"result,omitempty"`
}

// NewPipeline builds the pipeline and installs the concept mapper as the
// function registry's parameter fallback
func NewPipeline(store Store, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	translators := opts.Translators
	if translators == nil {
		translators = translator.NewRegistry()
	}
	fns := opts.Functions
	if fns == nil {
		fns = functions.NewRegistry(nil, logger)
	}

	mapper := NewConceptMapper(store, logger)
	fns.SetResolver(mapper)
	validator := NewValidator(mapper, logger)

	return &Pipeline{
		store:       store,
		translators: translators,
		functions:   fns,
		parser:      nlp.NewParser(translators, fns, opts.Concepts, logger),
		mapper:      mapper,
		validator:   validator,
		engine:      NewQueryEngine(store, mapper, validator, fns, logger),
		logger:      logger.With("component", "pipeline"),
	}
}

// SetClock fixes the time relative date conditions are measured from
func (p *Pipeline) SetClock(now func() time.Time) {
	p.engine.SetClock(now)
}

// Translators exposes the registry imports register into
func (p *Pipeline) Translators() *translator.Registry { return p.translators }

// Functions exposes the function registry
func (p *Pipeline) Functions() *functions.Registry { return p.functions }

// Parse turns a prompt into a plan
func (p *Pipeline) Parse(prompt string) models.QueryPlan {
	return p.parser.Parse(prompt)
}

// Validate checks a plan against the given sources, or the store's listing
// when sources is nil
func (p *Pipeline) Validate(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) (models.ValidationResult, error) {
	if sources == nil {
		listed, err := p.store.ListSources(ctx)
		if err != nil {
			return models.ValidationResult{}, errors.Wrap(err, "list sources")
		}
		sources = listed
	}
	return p.validator.ValidateQueryPlan(ctx, plan, sources), nil
}

// Execute validates and runs a plan
func (p *Pipeline) Execute(ctx context.Context, plan models.QueryPlan, sources []models.SourceMeta) (*models.ExecutionResult, error) {
	return p.engine.ExecuteQueryPlan(ctx, plan, sources)
}

// Ask parses, validates and executes a prompt. An invalid plan is returned
// with its validation and a PlanError.
func (p *Pipeline) Ask(ctx context.Context, prompt string) (*Answer, error) {
	plan := p.parser.Parse(prompt)
	sources, err := p.store.ListSources(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list sources")
	}

	answer := &Answer{Plan: plan}
	answer.Validation = p.validator.ValidateQueryPlan(ctx, plan, sources)
	if !answer.Validation.IsValid {
		return answer, &PlanError{Validation: answer.Validation}
	}

	result, err := p.engine.executeValidated(ctx, plan, sources)
	if err != nil {
		return answer, err
	}
	answer.Result = result
	answer.Plan = result.Plan

	p.logger.Info("prompt answered",
		"prompt", prompt,
		"entities", plan.TargetEntities,
		"rows", len(result.Rows),
		"confidence", answer.Validation.Confidence,
	)
	return answer, nil
}

// MapConcepts resolves conditions against one source
func (p *Pipeline) MapConcepts(ctx context.Context, sourceID string, conds []models.Condition) ([]models.Condition, error) {
	return p.mapper.MapConceptsToFields(ctx, sourceID, conds)
}

// FindFunction returns the best matching function for a prompt, or nil
func (p *Pipeline) FindFunction(prompt string, entities []string) *functions.Match {
	return p.functions.FindBestFunctionByPrompt(prompt, entities)
}

// ApplyStatistic runs a statistical operation over rows. Unlike the engine it
// reports an unknown operation instead of returning null.
func (p *Pipeline) ApplyStatistic(rows []models.Row, field, op string) (null.Float, error) {
	if _, ok := stats.Canonical(op); !ok {
		return null.Float{}, errors.Wrapf(stats.ErrUnknownOp, "%q", op)
	}
	return stats.ApplyStatisticalOperation(rows, field, op), nil
}
