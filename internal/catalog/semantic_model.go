package catalog

// SemanticModel extends a dataset with named dimensions, measures, and
// calculated fields. Names are case-sensitive and shared across the
// three namespaces; the compiler rejects duplicates at load time.
type SemanticModel struct {
	DatasetID        string            `json:"dataset_id" yaml:"dataset_id"`
	Dimensions       []Dimension       `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Measures         []Measure         `json:"measures,omitempty" yaml:"measures,omitempty"`
	CalculatedFields []CalculatedField `json:"calculated_fields,omitempty" yaml:"calculated_fields,omitempty"`
}

// Dimension maps a semantic name to one physical column.
type Dimension struct {
	Name           string    `json:"name" yaml:"name"`
	PhysicalColumn string    `json:"physical_column" yaml:"physical_column"`
	SourceTable    string    `json:"source_table,omitempty" yaml:"source_table,omitempty"`
	Type           FieldType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Measure is an aggregation expression. Body may be a bare column (which
// the compiler qualifies with SourceTable) or a full SQL expression.
type Measure struct {
	Name        string      `json:"name" yaml:"name"`
	Aggregation Aggregation `json:"aggregation" yaml:"aggregation"`
	Body        string      `json:"body" yaml:"body"`
	SourceTable string      `json:"source_table,omitempty" yaml:"source_table,omitempty"`
}

// CalculatedField is an expression over other fields using [name]
// bracket references.
type CalculatedField struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// Dimension returns the dimension with the given name.
func (m *SemanticModel) Dimension(name string) (Dimension, bool) {
	for _, d := range m.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Measure returns the measure with the given name.
func (m *SemanticModel) Measure(name string) (Measure, bool) {
	for _, ms := range m.Measures {
		if ms.Name == name {
			return ms, true
		}
	}
	return Measure{}, false
}

// CalculatedField returns the calculated field with the given name.
func (m *SemanticModel) CalculatedField(name string) (CalculatedField, bool) {
	for _, c := range m.CalculatedFields {
		if c.Name == name {
			return c, true
		}
	}
	return CalculatedField{}, false
}
