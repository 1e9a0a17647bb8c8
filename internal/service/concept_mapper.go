package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/state"
	"github.com/project-euler/queryassist/internal/vocab"
)

// ConceptMapper resolves condition concepts onto the fields of one source
type ConceptMapper struct {
	store  Store
	logger *slog.Logger
}

// NewConceptMapper creates a mapper reading schemas from the store
func NewConceptMapper(store Store, logger *slog.Logger) *ConceptMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConceptMapper{store: store, logger: logger.With("component", "mapper")}
}

// MapConceptsToFields resolves the conditions against one source. The result
// has the same order; a condition that cannot be resolved comes back without a
// field. An unknown source leaves every condition unresolved.
func (m *ConceptMapper) MapConceptsToFields(ctx context.Context, sourceID string, conds []models.Condition) ([]models.Condition, error) {
	schema, err := m.store.GetSchema(ctx, sourceID)
	if err != nil {
		if errors.Is(err, state.ErrSourceNotFound) {
			m.logger.Debug("source not found, conditions left unresolved", "source", sourceID)
			return append([]models.Condition(nil), conds...), nil
		}
		return append([]models.Condition(nil), conds...), errors.Wrapf(err, "load schema for source %s", sourceID)
	}
	return m.MapConceptsForSchema(schema, conds), nil
}

// MapConceptsForSchema is the pure core of MapConceptsToFields
func (m *ConceptMapper) MapConceptsForSchema(schema *models.Schema, conds []models.Condition) []models.Condition {
	out := make([]models.Condition, len(conds))
	for i, c := range conds {
		out[i] = c
		if schema == nil || c.Function != "" {
			continue
		}
		if field, ok := resolveCondition(schema, c); ok {
			out[i] = c.WithField(field)
		}
	}
	return out
}

// ResolveField maps a bare concept, as the function registry's parameter
// fallback and for statistical fields
func (m *ConceptMapper) ResolveField(schema *models.Schema, concept string, vt models.ValueType) (string, bool) {
	if schema == nil || strings.TrimSpace(concept) == "" {
		return "", false
	}
	return resolveCondition(schema, models.Condition{Concept: concept, Type: vt})
}

func resolveCondition(schema *models.Schema, c models.Condition) (string, bool) {
	if c.Translated {
		return resolveTranslated(schema, c.TranslationSource)
	}

	base := vocab.BaseNoun(c.Concept)
	for _, f := range schema.Fields {
		if strings.EqualFold(fieldName(f), base) && compatible(f.DataType, c.Type) {
			return f.ID, true
		}
	}

	if id, ok := bestScoringField(schema, c); ok {
		return id, true
	}

	concept := strings.TrimSpace(c.Concept)
	for _, f := range schema.Fields {
		if strings.EqualFold(f.Name, concept) || strings.EqualFold(f.ID, concept) {
			return f.ID, true
		}
	}
	return "", false
}

// resolveTranslated maps through the semantic group of the translator type:
// "branches" -> "branch" -> the branch/location/office family
func resolveTranslated(schema *models.Schema, source string) (string, bool) {
	var group []string
	for _, tok := range vocab.Tokenize(source) {
		if group = vocab.GroupContaining(vocab.Stem(tok)); group != nil {
			break
		}
	}
	if group == nil {
		return "", false
	}

	for _, f := range schema.Fields {
		name := strings.ToLower(fieldName(f))
		if vocab.InGroup(name, group) {
			return f.ID, true
		}
		for _, tok := range vocab.Tokenize(name) {
			if vocab.InGroup(tok, group) {
				return f.ID, true
			}
		}
	}
	return "", false
}

func bestScoringField(schema *models.Schema, c models.Condition) (string, bool) {
	conceptTokens := vocab.Tokenize(c.Concept)
	if len(conceptTokens) == 0 {
		return "", false
	}

	bestID, bestScore := "", 0
	for _, f := range schema.Fields {
		if !compatible(f.DataType, c.Type) {
			continue
		}
		score := semanticScore(conceptTokens, vocab.Tokenize(fieldName(f)))
		if score > bestScore {
			bestID, bestScore = f.ID, score
		}
	}
	return bestID, bestScore > 0
}

// semanticScore adds 3 for identical tokens sharing a group, 2 for related
// tokens of the same group and 1 for a plain substring overlap
func semanticScore(conceptTokens, fieldTokens []string) int {
	score := 0
	for _, ct := range conceptTokens {
		for _, ft := range fieldTokens {
			switch {
			case vocab.ShareGroup(ct, ft) && vocab.Stem(ct) == vocab.Stem(ft):
				score += 3
			case vocab.ShareGroup(ct, ft):
				score += 2
			case strings.Contains(ft, ct) || strings.Contains(ct, ft):
				score++
			}
		}
	}
	return score
}

// compatible checks a field's declared type against the condition's value type
func compatible(dt models.DataType, vt models.ValueType) bool {
	switch vt {
	case models.ValueNumber:
		return dt.IsNumeric()
	case models.ValueDate:
		return dt == models.TypeDate
	}
	return true
}

func fieldName(f models.Field) string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}
