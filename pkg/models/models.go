// Package models provides the shared data models for the semgate public
// API: the semantic query request, its filter tree, and the tabular
// result shape.
package models

import "time"

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpBetween    Operator = "between"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIsNull     Operator = "is_null"
	OpIsNotNull  Operator = "is_not_null"
)

// Filter is one node of a filter tree. Exactly one of And, Or, Not, or
// the leaf condition (Field+Op) may be set.
type Filter struct {
	And []*Filter `json:"and,omitempty" yaml:"and,omitempty"`
	Or  []*Filter `json:"or,omitempty" yaml:"or,omitempty"`
	Not *Filter   `json:"not,omitempty" yaml:"not,omitempty"`

	Field  string        `json:"field,omitempty" yaml:"field,omitempty"`
	Op     Operator      `json:"op,omitempty" yaml:"op,omitempty"`
	Value  interface{}   `json:"value,omitempty" yaml:"value,omitempty"`
	Values []interface{} `json:"values,omitempty" yaml:"values,omitempty"`
	From   interface{}   `json:"from,omitempty" yaml:"from,omitempty"`
	To     interface{}   `json:"to,omitempty" yaml:"to,omitempty"`
}

// IsLeaf reports whether the node is a field condition.
func (f *Filter) IsLeaf() bool {
	return f != nil && len(f.And) == 0 && len(f.Or) == 0 && f.Not == nil
}

// Depth returns the depth of the filter tree. A leaf has depth 1.
func (f *Filter) Depth() int {
	if f == nil {
		return 0
	}
	max := 0
	for _, c := range f.And {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	for _, c := range f.Or {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	if f.Not != nil {
		if d := f.Not.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// SortDirection orders an OrderBy entry.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// OrderBy names a projected alias or dimension plus a direction.
type OrderBy struct {
	Field     string        `json:"field" yaml:"field"`
	Direction SortDirection `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// IncrementalWindow restricts a query to a column range, used by
// incremental consumers.
type IncrementalWindow struct {
	Column string      `json:"column" yaml:"column"`
	From   interface{} `json:"from" yaml:"from"`
	To     interface{} `json:"to" yaml:"to"`
}

// QueryRequest is the declarative semantic query accepted by the gateway.
type QueryRequest struct {
	Dataset           string             `json:"dataset" yaml:"dataset"`
	Dimensions        []string           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Metrics           []string           `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Filters           *Filter            `json:"filters,omitempty" yaml:"filters,omitempty"`
	OrderBy           []OrderBy          `json:"order_by,omitempty" yaml:"order_by,omitempty"`
	Limit             int                `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset            int                `json:"offset,omitempty" yaml:"offset,omitempty"`
	IncrementalWindow *IncrementalWindow `json:"incremental_window,omitempty" yaml:"incremental_window,omitempty"`

	// NoCache bypasses both cache lookup and store for this request.
	NoCache bool `json:"no_cache,omitempty" yaml:"no_cache,omitempty"`
}

// RawQueryRequest submits engine-native SQL directly. The gateway still
// validates the statement and injects the tenant predicate.
type RawQueryRequest struct {
	Dataset string        `json:"dataset" yaml:"dataset"`
	SQL     string        `json:"sql" yaml:"sql"`
	Params  []interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	NoCache bool          `json:"no_cache,omitempty" yaml:"no_cache,omitempty"`
}

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Row is an insertion-order-preserving result row. Columns gives the
// order; Values is keyed by column name.
type Row map[string]interface{}

// QueryResult is the materialized tabular result of a query.
type QueryResult struct {
	Columns     []Column `json:"columns"`
	Rows        []Row    `json:"rows"`
	RowCount    int      `json:"row_count"`
	ExecutionMs int64    `json:"execution_ms"`
	CacheHit    bool     `json:"cache_hit"`
	Engine      string   `json:"engine"`
	Fingerprint string   `json:"fingerprint"`
}

// QueryResponse is the wire envelope returned to API callers.
type QueryResponse struct {
	RequestID string       `json:"request_id"`
	Result    *QueryResult `json:"result"`

	// RLS decision, copied into every response for external audit.
	RLSApplied  bool `json:"rls_applied"`
	RLSBypassed bool `json:"rls_bypassed"`

	Duration string `json:"duration"`
}

// ErrorResponse is the wire envelope for failures.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthStatus reports per-source adapter health.
type HealthStatus struct {
	Status  string            `json:"status"`
	Sources map[string]string `json:"sources,omitempty"`
	Time    time.Time         `json:"time"`
}
