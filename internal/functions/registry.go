package functions

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/guregu/null/v5"
	"golang.org/x/sync/singleflight"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/vocab"
)

// ConceptResolver maps a free-text concept onto a schema field. The concept
// mapper satisfies it; it is the generic fallback for parameter mapping.
type ConceptResolver interface {
	ResolveField(schema *models.Schema, concept string, vt models.ValueType) (string, bool)
}

type entry struct {
	library string
	fn      *Function
}

// Registry holds functions grouped by library
type Registry struct {
	mu       sync.RWMutex
	entries  []entry
	resolver ConceptResolver
	logger   *slog.Logger

	index *keywordIndex
	build singleflight.Group
}

// NewRegistry creates an empty registry. resolver may be nil, in which case
// parameter mapping skips the concept fallback.
func NewRegistry(resolver ConceptResolver, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		resolver: resolver,
		logger:   logger.With("component", "functions"),
	}
}

// SetResolver installs the concept fallback after construction
func (r *Registry) SetResolver(resolver ConceptResolver) {
	r.mu.Lock()
	r.resolver = resolver
	r.mu.Unlock()
}

// Register adds functions to a library, replacing any with the same name, and
// drops the cached keyword index
func (r *Registry) Register(library string, fns ...Function) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range fns {
		fn := fns[i]
		replaced := false
		for j, e := range r.entries {
			if e.library == library && strings.EqualFold(e.fn.Name, fn.Name) {
				r.entries[j].fn = &fn
				replaced = true
				break
			}
		}
		if !replaced {
			r.entries = append(r.entries, entry{library: library, fn: &fn})
		}
	}
	r.index = nil
}

// InvalidateIndex forces the keyword index to be rebuilt on next use
func (r *Registry) InvalidateIndex() {
	r.mu.Lock()
	r.index = nil
	r.mu.Unlock()
}

// Lookup finds a function by library and name (case-insensitive). An empty
// library matches any.
func (r *Registry) Lookup(library, name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if (library == "" || e.library == library) && strings.EqualFold(e.fn.Name, name) {
			return e.fn, true
		}
	}
	return nil, false
}

// List returns every registered function in registration order
func (r *Registry) List() []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Match, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Match{
			Library:      e.library,
			FunctionName: e.fn.Name,
			Function:     e.fn,
			Entities:     e.fn.Entities,
			ReturnType:   e.fn.ReturnType,
		})
	}
	return out
}

// ResolveParameters maps each declared parameter to a field id of the schema.
// Known aliases are tried first, then the concept resolver, then plain name
// equality. Unmapped parameters are absent from the result.
func (r *Registry) ResolveParameters(fn *Function, schema *models.Schema) map[string]string {
	r.mu.RLock()
	resolver := r.resolver
	r.mu.RUnlock()

	out := make(map[string]string, len(fn.Parameters))
	if schema == nil {
		return out
	}
	for _, p := range fn.Parameters {
		if id, ok := aliasField(p.Name, schema); ok {
			out[p.Name] = id
			continue
		}
		if resolver != nil {
			concept := strings.Join(vocab.Tokenize(p.Name), " ")
			if id, ok := resolver.ResolveField(schema, concept, p.Kind.ValueType()); ok {
				out[p.Name] = id
				continue
			}
		}
		for _, f := range schema.Fields {
			if strings.EqualFold(f.Name, p.Name) || strings.EqualFold(f.ID, p.Name) {
				out[p.Name] = f.ID
				break
			}
		}
	}
	return out
}

// Execute runs the implementation, turning errors, panics and non-finite
// results into null
func (r *Registry) Execute(fn *Function, args Args) (result null.Float) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("function panicked", "function", fn.Name, "panic", fmt.Sprint(rec))
			result = null.Float{}
		}
	}()

	if fn.Impl == nil {
		return null.Float{}
	}
	v, err := fn.Impl(args)
	if err != nil {
		r.logger.Debug("function failed", "function", fn.Name, "error", err)
		return null.Float{}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// ApplyToRows evaluates the function on every row and appends the result
// under the function's name. Rows whose evaluation fails are left without it.
func (r *Registry) ApplyToRows(fn *Function, schema *models.Schema, rows []models.Row) []models.Row {
	mapping := r.ResolveParameters(fn, schema)
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		vals := make([]any, len(fn.Parameters))
		for i, p := range fn.Parameters {
			if field, ok := mapping[p.Name]; ok {
				vals[i] = row[field]
			}
		}
		derived := row.Clone()
		if res := r.Execute(fn, NewArgs(fn.Parameters, vals...)); res.Valid {
			derived[fn.Name] = res.Float64
		}
		out = append(out, derived)
	}
	return out
}

// aliasField applies the fixed alias table keyed on the parameter name
func aliasField(param string, schema *models.Schema) (string, bool) {
	p := strings.ToLower(param)

	var match func(name string) bool
	switch {
	case strings.HasPrefix(p, "principal"):
		match = func(n string) bool { return strings.Contains(n, "principal") }
	case strings.HasPrefix(p, "payment"):
		match = func(n string) bool { return strings.Contains(n, "payment") }
	case strings.HasPrefix(p, "rate"):
		match = func(n string) bool { return strings.Contains(n, "rate") }
	case strings.Contains(p, "maturity"):
		match = func(n string) bool { return strings.Contains(n, "maturity") }
	case strings.HasPrefix(p, "term"):
		match = isTermName
	default:
		return "", false
	}

	for _, f := range schema.Fields {
		if match(strings.ToLower(f.Name)) {
			return f.ID, true
		}
	}
	return "", false
}

func isTermName(name string) bool {
	compact := strings.Join(vocab.Tokenize(name), "")
	switch compact {
	case "term", "terms", "termmonths", "months", "loanterm", "termmos", "terminmonths", "termmo":
		return true
	}
	return false
}
