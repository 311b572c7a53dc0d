// Package catalog defines the read-only metadata the gateway compiles
// against: datasets with their fields and RLS policy, the entity
// relationship model used for join planning, and semantic models with
// measures and calculated fields.
//
// All catalog entities are value types fetched per request; the gateway
// never mutates them and nothing here survives a request except through
// the external catalog store.
package catalog

import (
	"context"
	"time"

	"github.com/semgate-labs/semgate/internal/errors"
)

// FieldKind classifies a dataset field.
type FieldKind string

const (
	KindDimension FieldKind = "dimension"
	KindMeasure   FieldKind = "measure"
	KindTime      FieldKind = "time"
)

// FieldType is the logical type of a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInt       FieldType = "int"
	TypeFloat     FieldType = "float"
	TypeDecimal   FieldType = "decimal"
	TypeBool      FieldType = "bool"
	TypeDate      FieldType = "date"
	TypeDatetime  FieldType = "datetime"
	TypeTimestamp FieldType = "timestamp"
)

// Aggregation is the aggregation tag carried by a measure.
type Aggregation string

const (
	AggSum           Aggregation = "SUM"
	AggCount         Aggregation = "COUNT"
	AggCountDistinct Aggregation = "COUNT_DISTINCT"
	AggAvg           Aggregation = "AVG"
	AggMin           Aggregation = "MIN"
	AggMax           Aggregation = "MAX"
	AggMedian        Aggregation = "MEDIAN"
	AggStddev        Aggregation = "STDDEV"
	AggVariance      Aggregation = "VARIANCE"
	AggFirst         Aggregation = "FIRST"
	AggLast          Aggregation = "LAST"
	AggNone          Aggregation = "NONE"
)

// Field is a single exposed column of a dataset.
type Field struct {
	Name           string    `json:"name" yaml:"name"`
	PhysicalColumn string    `json:"physical_column" yaml:"physical_column"`
	Kind           FieldKind `json:"kind" yaml:"kind"`
	Type           FieldType `json:"type" yaml:"type"`

	// SourceTable qualifies the physical column when the dataset spans
	// more than one table. Empty means the dataset base table.
	SourceTable string `json:"source_table,omitempty" yaml:"source_table,omitempty"`

	// Aggregation and Expression apply to measure fields only.
	Aggregation Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Expression  string      `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// RLSMode selects how the tenant predicate is formed.
type RLSMode string

const (
	RLSEquals RLSMode = "equals"
	RLSInList RLSMode = "in_list"
)

// RLSPolicy is the per-dataset row-level-security policy.
type RLSPolicy struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	Column           string  `json:"column,omitempty" yaml:"column,omitempty"`
	Mode             RLSMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowAdminBypass bool    `json:"allow_admin_bypass,omitempty" yaml:"allow_admin_bypass,omitempty"`
}

// Dataset is a named logical table with declared fields, an engine
// binding, and an RLS policy.
type Dataset struct {
	ID        string    `json:"id" yaml:"id"`
	SourceID  string    `json:"source_id" yaml:"source_id"`
	Engine    string    `json:"engine" yaml:"engine"`
	BaseTable string    `json:"base_table" yaml:"base_table"`
	Fields    []Field   `json:"fields" yaml:"fields"`
	RLS       RLSPolicy `json:"rls" yaml:"rls"`

	// AllowCrossJoins permits join plans that require a CROSS step.
	AllowCrossJoins bool `json:"allow_cross_joins,omitempty" yaml:"allow_cross_joins,omitempty"`

	// DefaultLimit is applied when a request carries no limit.
	DefaultLimit int `json:"default_limit,omitempty" yaml:"default_limit,omitempty"`

	// CacheTTL overrides the default result-cache TTL.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`

	// QueryTimeout bounds adapter execution for this dataset.
	QueryTimeout time.Duration `json:"query_timeout,omitempty" yaml:"query_timeout,omitempty"`
}

// FieldByName returns the field with the given name. Lookup is
// case-sensitive.
func (d *Dataset) FieldByName(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the dataset invariants.
func (d *Dataset) Validate() error {
	if d.ID == "" {
		return errors.NewConfig("dataset id is required")
	}
	if d.BaseTable == "" {
		return errors.NewConfig("dataset %s: base_table is required", d.ID)
	}
	if d.RLS.Enabled {
		if d.RLS.Column == "" {
			return errors.NewConfig("dataset %s: rls.column is required when rls is enabled", d.ID)
		}
		if _, ok := d.FieldByName(d.RLS.Column); !ok {
			return errors.NewConfig("dataset %s: rls.column %q does not name a field", d.ID, d.RLS.Column)
		}
	}
	for _, f := range d.Fields {
		if f.Kind == KindMeasure && f.Aggregation == "" {
			return errors.NewConfig("dataset %s: measure %q has no aggregation", d.ID, f.Name)
		}
	}
	return nil
}

// Catalog is the read-only dataset lookup collaborator.
type Catalog interface {
	// GetDataset returns the dataset with the given id.
	// Returns a DatasetNotFound error if it does not exist.
	GetDataset(ctx context.Context, id string) (*Dataset, error)

	// GetERD returns the entity relationship model for a source.
	// A nil model with nil error means no joins are declared.
	GetERD(ctx context.Context, sourceID string) (*ERDModel, error)

	// GetSemanticModel returns the semantic model for a dataset.
	// A nil model with nil error means the dataset fields stand alone.
	GetSemanticModel(ctx context.Context, datasetID string) (*SemanticModel, error)
}

// Source is a decrypted source configuration handed opaquely to adapters.
type Source struct {
	ID     string            `json:"id" yaml:"id"`
	Engine string            `json:"engine" yaml:"engine"`
	Config map[string]string `json:"config" yaml:"config"`
}

// SourceProvider is the source-config collaborator. Implementations must
// make repeated lookups cheap; the gateway calls it on every adapter
// construction.
type SourceProvider interface {
	GetSource(ctx context.Context, sourceID string) (*Source, error)
}
