// Package nlp turns a free-text prompt into a structured query plan. All
// resolution is rule based; the parser never fails, it only finds less.
package nlp

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/translator"
	"github.com/project-euler/queryassist/internal/vocab"
)

// FunctionFinder is the slice of the function registry the parser consults
type FunctionFinder interface {
	Keywords() []string
	HasKeyword(term string) bool
	FindBestFunctionByPrompt(text string, targetEntities []string) *functions.Match
}

// Parser builds query plans from prompts
type Parser struct {
	translators *translator.Registry
	functions   FunctionFinder
	concepts    *ConceptCache
	logger      *slog.Logger
}

// NewParser wires the parser to its registries. Any of them may be nil: a nil
// translator registry skips name lookups, a nil finder skips function
// detection and a nil cache guesses every concept afresh.
func NewParser(translators *translator.Registry, finder FunctionFinder, cache *ConceptCache, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		translators: translators,
		functions:   finder,
		concepts:    cache,
		logger:      logger.With("component", "parser"),
	}
}

// Parse builds a plan from the prompt. Empty or unrecognisable input gives a
// "show" plan with no entities and no conditions.
func (p *Parser) Parse(text string) models.QueryPlan {
	plan := models.QueryPlan{
		Raw:              text,
		Intent:           IntentShow,
		IntentConfidence: confidenceDefault,
		TargetEntities:   []string{},
		Conditions:       []models.Condition{},
		LogicalOp:        models.LogicalAnd,
	}

	prompt := normalize(text)
	if prompt == "" {
		return plan
	}

	plan.StatisticalOp, plan.StatisticalField = detectStatistical(prompt)
	plan.Intent, plan.IntentConfidence = classifyIntent(prompt)

	ex := p.extractConditions(prompt)
	plan.Conditions = ex.conditions
	plan.LogicalOp = ex.logicalOp

	plan.TargetEntities = extractEntities(prompt, ex.masked)
	if len(plan.TargetEntities) == 0 && ex.hasBranch {
		plan.TargetEntities = []string{vocab.EntityBranches}
	}

	if plan.StatisticalOp == "" {
		if m := p.detectFunction(prompt, plan.TargetEntities); m != nil {
			plan.FunctionCall = &models.FunctionCall{Library: m.Library, Function: m.FunctionName}
			if len(plan.TargetEntities) == 0 && len(m.Entities) > 0 {
				plan.TargetEntities = []string{m.Entities[0]}
			}
		}
	}

	p.logger.Debug("prompt parsed",
		"intent", plan.Intent,
		"entities", plan.TargetEntities,
		"conditions", len(plan.Conditions),
		"logical_op", plan.LogicalOp,
		"stat_op", plan.StatisticalOp,
	)
	return plan
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases, strips diacritics and collapses whitespace
func normalize(text string) string {
	folded, _, err := transform.String(foldDiacritics, text)
	if err != nil {
		folded = text
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
