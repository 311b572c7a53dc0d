// Package cache provides the shared result cache: deterministic query
// fingerprints, the distributed store behind them, and cross-instance
// single-flight so one fingerprint executes at most once at a time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/semgate-labs/semgate/internal/auth"
	"github.com/semgate-labs/semgate/pkg/models"
)

// fingerprintKey is the canonical form hashed into a fingerprint. Two
// requests that must not share results (different tenant, role, dataset,
// or source) always differ here; two requests with the same semantics
// always serialize identically.
type fingerprintKey struct {
	Tenant     string                    `json:"tenant"`
	Role       string                    `json:"role"`
	Dataset    string                    `json:"dataset"`
	SourceID   string                    `json:"source_id"`
	Engine     string                    `json:"engine"`
	Dimensions []string                  `json:"dimensions,omitempty"`
	Metrics    []string                  `json:"metrics,omitempty"`
	Filters    json.RawMessage           `json:"filters,omitempty"`
	OrderBy    []models.OrderBy          `json:"order_by,omitempty"`
	Limit      int                       `json:"limit,omitempty"`
	Offset     int                       `json:"offset,omitempty"`
	Window     *models.IncrementalWindow `json:"window,omitempty"`
}

// Fingerprint computes the cache key for a semantic query. The
// fingerprint covers everything that affects the result: caller
// identity, dataset binding, and the normalized query shape. Filter
// trees are canonicalized so AND/OR sibling order does not fragment the
// cache; order_by stays order-sensitive because it changes the result.
//
// grouped reports whether the compiled plan carries a GROUP BY. The
// caller decides this from the plan, not the raw request: a metric with
// no aggregation produces ungrouped output whose column order matters.
func Fingerprint(q *models.QueryRequest, tc auth.TenantContext, sourceID, engine string, limit, offset int, grouped bool) (string, error) {
	key := fingerprintKey{
		Tenant:   tc.Tenant,
		Role:     string(tc.Role),
		Dataset:  q.Dataset,
		SourceID: sourceID,
		Engine:   engine,
		Metrics:  sortedCopy(q.Metrics),
		OrderBy:  q.OrderBy,
		Limit:    limit,
		Offset:   offset,
		Window:   q.IncrementalWindow,
	}

	// Dimension order only matters when it orders ungrouped output
	// columns; grouped results are keyed by name.
	if grouped {
		key.Dimensions = sortedCopy(q.Dimensions)
	} else {
		key.Dimensions = q.Dimensions
	}

	if q.Filters != nil {
		canon, err := canonicalFilter(q.Filters)
		if err != nil {
			return "", err
		}
		key.Filters = canon
	}

	return hashJSON(key)
}

// FingerprintRaw computes the cache key for a raw SQL request. The SQL
// text is hashed as-is; no normalization is attempted.
func FingerprintRaw(q *models.RawQueryRequest, tc auth.TenantContext, sourceID, engine string) (string, error) {
	key := struct {
		Tenant   string        `json:"tenant"`
		Role     string        `json:"role"`
		Dataset  string        `json:"dataset"`
		SourceID string        `json:"source_id"`
		Engine   string        `json:"engine"`
		SQL      string        `json:"sql"`
		Params   []interface{} `json:"params,omitempty"`
	}{
		Tenant:   tc.Tenant,
		Role:     string(tc.Role),
		Dataset:  q.Dataset,
		SourceID: sourceID,
		Engine:   engine,
		SQL:      q.SQL,
		Params:   q.Params,
	}
	return hashJSON(key)
}

// canonicalFilter serializes a filter tree with AND/OR children sorted
// by their own serialization, so logically identical trees hash alike.
func canonicalFilter(f *models.Filter) (json.RawMessage, error) {
	if f == nil {
		return nil, nil
	}

	if f.IsLeaf() {
		return json.Marshal(struct {
			Field  string          `json:"field"`
			Op     models.Operator `json:"op"`
			Value  interface{}     `json:"value,omitempty"`
			Values []interface{}   `json:"values,omitempty"`
			From   interface{}     `json:"from,omitempty"`
			To     interface{}     `json:"to,omitempty"`
		}{f.Field, f.Op, f.Value, f.Values, f.From, f.To})
	}

	node := make(map[string]json.RawMessage, 1)
	if len(f.And) > 0 {
		children, err := canonicalChildren(f.And)
		if err != nil {
			return nil, err
		}
		node["and"] = children
	}
	if len(f.Or) > 0 {
		children, err := canonicalChildren(f.Or)
		if err != nil {
			return nil, err
		}
		node["or"] = children
	}
	if f.Not != nil {
		child, err := canonicalFilter(f.Not)
		if err != nil {
			return nil, err
		}
		node["not"] = child
	}
	return json.Marshal(node)
}

func canonicalChildren(children []*models.Filter) (json.RawMessage, error) {
	serialized := make([]string, 0, len(children))
	for _, c := range children {
		raw, err := canonicalFilter(c)
		if err != nil {
			return nil, err
		}
		serialized = append(serialized, string(raw))
	}
	sort.Strings(serialized)

	parts := make([]json.RawMessage, len(serialized))
	for i, s := range serialized {
		parts[i] = json.RawMessage(s)
	}
	return json.Marshal(parts)
}

func hashJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
