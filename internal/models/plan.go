package models

import (
	"github.com/guregu/null/v5"
)

// LogicalOp combines the whole condition list of a plan
type LogicalOp string

const (
	LogicalAnd LogicalOp = "AND"
	LogicalOr  LogicalOp = "OR"
)

// FunctionCall names a registered function to run over the result rows
type FunctionCall struct {
	Library  string `json:"library"`
	Function string `json:"function"`
}

// QueryPlan is the structured form of a parsed prompt
type QueryPlan struct {
	Raw              string        `json:"raw"`
	Intent           string        `json:"intent"`
	IntentConfidence float64       `json:"intentConfidence"`
	TargetEntities   []string      `json:"targetEntities"`
	Conditions       []Condition   `json:"conditions"`
	LogicalOp        LogicalOp     `json:"logicalOp"`
	StatisticalOp    string        `json:"statisticalOp,omitempty"`
	StatisticalField string        `json:"statisticalField,omitempty"`
	FunctionCall     *FunctionCall `json:"functionCall,omitempty"`

	// Filled in when planned for multiple sources
	UniqueID        string   `json:"uniqueId,omitempty"`
	Columns         []string `json:"columns,omitempty"`
	ValuationFields []string `json:"valuationFields,omitempty"`
}

// Clone returns a deep copy so mappers and engines never alias the caller's slices
func (p QueryPlan) Clone() QueryPlan {
	out := p
	out.TargetEntities = append([]string(nil), p.TargetEntities...)
	out.Conditions = append([]Condition(nil), p.Conditions...)
	out.Columns = append([]string(nil), p.Columns...)
	out.ValuationFields = append([]string(nil), p.ValuationFields...)
	if p.FunctionCall != nil {
		fc := *p.FunctionCall
		out.FunctionCall = &fc
	}
	return out
}

// IsMultiSource applies the dispatch rule: several entities, or a pre-planned
// uniqueId + columns shape
func (p QueryPlan) IsMultiSource() bool {
	return len(p.TargetEntities) > 1 || (p.UniqueID != "" && len(p.Columns) > 0)
}

// ValidationResult is the outcome of checking a plan before execution
type ValidationResult struct {
	IsValid    bool     `json:"isValid"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// StatisticResult is a statistical operation applied to the filtered rows
type StatisticResult struct {
	Op    string     `json:"op"`
	Field string     `json:"field"`
	Value null.Float `json:"value"`
}

// ExecutionResult is what the engine hands to the renderer
type ExecutionResult struct {
	Rows            []Row            `json:"rows"`
	UsedSource      null.String      `json:"usedSource"`
	UsedSources     []string         `json:"usedSources,omitempty"`
	UniqueID        string           `json:"uniqueId,omitempty"`
	Columns         []string         `json:"columns,omitempty"`
	ValuationFields []string         `json:"valuationFields,omitempty"`
	Statistic       *StatisticResult `json:"statistic,omitempty"`
	FunctionColumn  string           `json:"functionColumn,omitempty"`
	Plan            QueryPlan        `json:"plan"`
}
