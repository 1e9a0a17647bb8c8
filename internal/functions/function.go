// Package functions holds named financial computations that a query plan can
// run over each result row, and the keyword index used to pick one from a prompt.
package functions

import (
	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
)

// ParamKind is the kind of value a parameter expects
type ParamKind string

const (
	KindNumber ParamKind = "number"
	KindDate   ParamKind = "date"
)

// ValueType maps the kind onto a condition value type for concept resolution
func (k ParamKind) ValueType() models.ValueType {
	if k == KindDate {
		return models.ValueDate
	}
	return models.ValueNumber
}

// Param is one declared, named parameter
type Param struct {
	Name string    `json:"name"`
	Kind ParamKind `json:"kind"`
}

// Impl computes a function from its positional arguments
type Impl func(Args) (float64, error)

// Function is a registered computation. Parameters are declared in order;
// their names drive field mapping.
type Function struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Entities    []string `json:"entities,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Parameters  []Param  `json:"parameters"`
	ReturnType  string   `json:"returnType"`
	Impl        Impl     `json:"-"`
}

// Match is the result of a prompt lookup
type Match struct {
	Library      string    `json:"library"`
	FunctionName string    `json:"functionName"`
	Function     *Function `json:"function"`
	Entities     []string  `json:"entities"`
	ReturnType   string    `json:"returnType"`
	Score        int       `json:"score"`
}

// Args are positional arguments addressed by parameter name. A nil value is a
// null argument.
type Args struct {
	params []Param
	vals   []any
}

// NewArgs pairs values with the declared parameters, in order
func NewArgs(params []Param, vals ...any) Args {
	padded := make([]any, len(params))
	copy(padded, vals)
	return Args{params: params, vals: padded}
}

// Len is the number of declared parameters
func (a Args) Len() int { return len(a.params) }

// At returns the raw positional value
func (a Args) At(i int) any {
	if i < 0 || i >= len(a.vals) {
		return nil
	}
	return a.vals[i]
}

func (a Args) lookup(name string) any {
	for i, p := range a.params {
		if p.Name == name {
			return a.vals[i]
		}
	}
	return nil
}

// Number reads a numeric argument; false for null or unparseable values
func (a Args) Number(name string) (float64, bool) {
	v := a.lookup(name)
	if values.IsEmpty(v) {
		return 0, false
	}
	return values.Number(v)
}

// Text reads an argument as text; false for null or blank values
func (a Args) Text(name string) (string, bool) {
	v := a.lookup(name)
	if values.IsEmpty(v) {
		return "", false
	}
	return values.String(v), true
}
