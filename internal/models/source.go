package models

import "time"

// DataType is the inferred type of a column
type DataType string

const (
	TypeString     DataType = "string"
	TypeInteger    DataType = "integer"
	TypeCurrency   DataType = "currency"
	TypePercentage DataType = "percentage"
	TypeDate       DataType = "date"
)

// IsNumeric reports whether values of this type compare as numbers
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeCurrency, TypePercentage:
		return true
	}
	return false
}

// Role marks columns that look like unique identifiers
type Role string

const (
	RoleCandidateID Role = "candidateId"
	RoleField       Role = "field"
)

// Field describes one column of an imported dataset
type Field struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DataType  DataType `json:"dataType"`
	RoleGuess Role     `json:"roleGuess"`
	Sample    []string `json:"sample,omitempty"`
}

// Schema is the ordered field list of a source. Order matters for tie-breaks.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the field with the given id
func (s *Schema) Field(id string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// FieldIDs returns the field ids in schema order
func (s *Schema) FieldIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		ids = append(ids, f.ID)
	}
	return ids
}

// SourceMeta is the listing entry of an imported dataset
type SourceMeta struct {
	SourceID         string    `json:"sourceId"`
	Name             string    `json:"name"`
	OriginalFileName string    `json:"originalFileName"`
	LastUpdated      time.Time `json:"lastUpdated"`
	RowCount         int       `json:"rowCount"`
}

// Row is a raw record keyed by field id
type Row map[string]any

// Keys carried by aggregated multi-source rows
const (
	KeySourceID     = "_sourceId"
	KeyIsAggregated = "_isAggregated"
	KeySubRows      = "_subRows"
	KeySourceIDs    = "_sourceIds"
)

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}
