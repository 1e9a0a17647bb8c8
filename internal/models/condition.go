package models

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// Op is a condition operator
type Op string

const (
	OpEq      Op = "="
	OpGt      Op = ">"
	OpLt      Op = "<"
	OpGte     Op = ">="
	OpLte     Op = "<="
	OpBetween Op = "between"
	OpAfter   Op = "after"
	OpBefore  Op = "before"
)

// Valid reports whether the operator is known
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpGt, OpLt, OpGte, OpLte, OpBetween, OpAfter, OpBefore:
		return true
	}
	return false
}

// ValueType is the declared type of a condition value
type ValueType string

const (
	ValueNumber ValueType = "number"
	ValueDate   ValueType = "date"
	ValueString ValueType = "string"
)

// Valid reports whether the value type is known
func (v ValueType) Valid() bool {
	switch v {
	case ValueNumber, ValueDate, ValueString:
		return true
	}
	return false
}

// TimeUnit is the unit of a relative date offset
type TimeUnit string

const (
	UnitDay   TimeUnit = "day"
	UnitMonth TimeUnit = "month"
	UnitYear  TimeUnit = "year"
)

// Value is the payload of a condition. The concrete types below are the only
// implementations.
type Value interface {
	valueType() ValueType
}

// NumberValue is a single numeric operand
type NumberValue struct {
	Value float64
}

// RangeValue is an inclusive numeric range
type RangeValue struct {
	Min float64
	Max float64
}

// StringValue is a literal compared case-insensitively
type StringValue struct {
	Value string
}

// AbsoluteDate is a fixed date boundary
type AbsoluteDate struct {
	At time.Time
}

// RelativeTime is a boundary computed as now minus Amount units
type RelativeTime struct {
	Unit   TimeUnit
	Amount int
}

func (NumberValue) valueType() ValueType  { return ValueNumber }
func (RangeValue) valueType() ValueType   { return ValueNumber }
func (StringValue) valueType() ValueType  { return ValueString }
func (AbsoluteDate) valueType() ValueType { return ValueDate }
func (RelativeTime) valueType() ValueType { return ValueDate }

// Boundary returns the instant the offset points to, counted back from now
func (r RelativeTime) Boundary(now time.Time) time.Time {
	switch r.Unit {
	case UnitDay:
		return now.AddDate(0, 0, -r.Amount)
	case UnitMonth:
		return now.AddDate(0, -r.Amount, 0)
	case UnitYear:
		return now.AddDate(-r.Amount, 0, 0)
	}
	return now
}

// Condition is one filter clause of a query plan. It is resolved once Field is set.
type Condition struct {
	Concept string
	Op      Op
	Type    ValueType
	Value   Value

	Field string

	// Translated conditions came from a human name looked up in the translator
	// registry; TranslationSource is the translator type that produced the code.
	Translated        bool
	TranslationSource string

	// Function marks conditions whose fields are resolved by a function.
	Function string
}

// NewNumberCondition builds a comparison against a number
func NewNumberCondition(concept string, op Op, v float64) Condition {
	return Condition{Concept: concept, Op: op, Type: ValueNumber, Value: NumberValue{Value: v}}
}

// NewRangeCondition builds an inclusive between condition
func NewRangeCondition(concept string, min, max float64) Condition {
	if min > max {
		min, max = max, min
	}
	return Condition{Concept: concept, Op: OpBetween, Type: ValueNumber, Value: RangeValue{Min: min, Max: max}}
}

// NewStringCondition builds a case-insensitive equality
func NewStringCondition(concept, v string) Condition {
	return Condition{Concept: concept, Op: OpEq, Type: ValueString, Value: StringValue{Value: v}}
}

// NewDateCondition builds a before/after condition against a fixed date
func NewDateCondition(concept string, op Op, at time.Time) Condition {
	return Condition{Concept: concept, Op: op, Type: ValueDate, Value: AbsoluteDate{At: at}}
}

// NewRelativeCondition builds an "after now minus n units" condition
func NewRelativeCondition(concept string, unit TimeUnit, n int) Condition {
	return Condition{Concept: concept, Op: OpAfter, Type: ValueDate, Value: RelativeTime{Unit: unit, Amount: n}}
}

// Resolved reports whether the condition has been mapped onto a field
func (c Condition) Resolved() bool {
	return c.Field != ""
}

// WithField returns a copy resolved to the given field
func (c Condition) WithField(field string) Condition {
	c.Field = field
	return c
}

// Check verifies that the operator, declared type and payload agree
func (c Condition) Check() error {
	if c.Concept == "" && c.Function == "" {
		return errors.New("condition has no concept")
	}
	if !c.Op.Valid() {
		return errors.Newf("unknown operator %q", c.Op)
	}
	if c.Type != "" && !c.Type.Valid() {
		return errors.Newf("unknown value type %q", c.Type)
	}
	if c.Value == nil {
		return errors.Newf("condition %q has no value", c.Concept)
	}
	if c.Type != "" && c.Value.valueType() != c.Type {
		return errors.Newf("condition %q declares %s but carries a %s value", c.Concept, c.Type, c.Value.valueType())
	}

	switch v := c.Value.(type) {
	case NumberValue:
		switch c.Op {
		case OpEq, OpGt, OpLt, OpGte, OpLte:
			return nil
		}
	case RangeValue:
		if c.Op == OpBetween {
			return nil
		}
	case StringValue:
		if c.Op == OpEq {
			return nil
		}
	case AbsoluteDate:
		if c.Op == OpAfter || c.Op == OpBefore {
			return nil
		}
	case RelativeTime:
		if c.Op != OpAfter && c.Op != OpBefore {
			break
		}
		switch v.Unit {
		case UnitDay, UnitMonth, UnitYear:
			return nil
		}
		return errors.Newf("unknown time unit %q", v.Unit)
	}
	return errors.Newf("operator %q does not apply to a %s value", c.Op, c.Value.valueType())
}

type relativeJSON struct {
	Unit  TimeUnit `json:"unit"`
	Value int      `json:"value"`
}

type conditionJSON struct {
	Concept           string        `json:"concept"`
	Op                Op            `json:"op"`
	ValueType         ValueType     `json:"valueType,omitempty"`
	Value             any           `json:"value,omitempty"`
	ValueMin          *float64      `json:"valueMin,omitempty"`
	ValueMax          *float64      `json:"valueMax,omitempty"`
	AbsoluteDate      string        `json:"absoluteDate,omitempty"`
	RelativeTime      *relativeJSON `json:"relativeTime,omitempty"`
	Field             string        `json:"field,omitempty"`
	Translated        bool          `json:"translated,omitempty"`
	TranslationSource string        `json:"translationSource,omitempty"`
	Function          string        `json:"function,omitempty"`
}

// MarshalJSON flattens the payload into value/valueMin/valueMax/absoluteDate/relativeTime
func (c Condition) MarshalJSON() ([]byte, error) {
	out := conditionJSON{
		Concept:           c.Concept,
		Op:                c.Op,
		ValueType:         c.Type,
		Field:             c.Field,
		Translated:        c.Translated,
		TranslationSource: c.TranslationSource,
		Function:          c.Function,
	}
	switch v := c.Value.(type) {
	case NumberValue:
		out.Value = v.Value
	case RangeValue:
		min, max := v.Min, v.Max
		out.ValueMin, out.ValueMax = &min, &max
	case StringValue:
		out.Value = v.Value
	case AbsoluteDate:
		out.AbsoluteDate = v.At.Format("2006-01-02")
	case RelativeTime:
		out.RelativeTime = &relativeJSON{Unit: v.Unit, Value: v.Amount}
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the tagged payload from the flat form
func (c *Condition) UnmarshalJSON(data []byte) error {
	var in conditionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "decode condition")
	}
	*c = Condition{
		Concept:           in.Concept,
		Op:                in.Op,
		Type:              in.ValueType,
		Field:             in.Field,
		Translated:        in.Translated,
		TranslationSource: in.TranslationSource,
		Function:          in.Function,
	}

	switch {
	case in.RelativeTime != nil:
		c.Value = RelativeTime{Unit: in.RelativeTime.Unit, Amount: in.RelativeTime.Value}
	case in.AbsoluteDate != "":
		at, err := time.Parse("2006-01-02", in.AbsoluteDate)
		if err != nil {
			at, err = time.Parse(time.RFC3339, in.AbsoluteDate)
		}
		if err != nil {
			return errors.Wrapf(err, "condition %q: absoluteDate", in.Concept)
		}
		c.Value = AbsoluteDate{At: at}
	case in.ValueMin != nil || in.ValueMax != nil:
		if in.ValueMin == nil || in.ValueMax == nil {
			return errors.Newf("condition %q: between needs valueMin and valueMax", in.Concept)
		}
		c.Value = RangeValue{Min: *in.ValueMin, Max: *in.ValueMax}
	default:
		switch v := in.Value.(type) {
		case float64:
			c.Value = NumberValue{Value: v}
		case string:
			c.Value = StringValue{Value: v}
		}
	}

	if c.Type == "" && c.Value != nil {
		c.Type = c.Value.valueType()
	}
	return nil
}
