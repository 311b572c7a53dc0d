// Package semantic compiles declarative queries against a dataset's
// semantic model into engine-neutral plans. The compiler resolves names
// to physical columns, expands measures and calculated fields, plans
// joins over the declared entity relationships, and merges the tenant
// predicate into the filter tree.
package semantic

import (
	"sort"

	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/rls"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
	"github.com/semgate-labs/semgate/pkg/models"
)

// Compiler turns semantic query requests into compiled plans. The zero
// value compiles without a row cap.
type Compiler struct {
	// RowMax caps the effective limit of every compiled plan. Zero
	// disables the cap.
	RowMax int
}

// Input bundles the request with the catalog entities it compiles
// against. RLS carries the already-evaluated tenant predicate decision.
type Input struct {
	Query   *models.QueryRequest
	Dataset *catalog.Dataset
	ERD     *catalog.ERDModel
	Model   *catalog.SemanticModel
	RLS     rls.Result
}

// Compile resolves, plans, and assembles one request. Compilation is
// deterministic: the same input always yields an identical plan,
// including join order.
func (c *Compiler) Compile(in Input) (*sqlbuilder.CompiledPlan, error) {
	q := in.Query
	if q == nil || in.Dataset == nil {
		return nil, errors.NewPlan("resolve", "query and dataset are required")
	}
	if len(q.Dimensions) == 0 && len(q.Metrics) == 0 {
		return nil, errors.NewValidation("query must request at least one dimension or metric")
	}

	r := &resolver{dataset: in.Dataset, model: in.Model}
	tables := map[string]bool{in.Dataset.BaseTable: true}

	plan := &sqlbuilder.CompiledPlan{BaseTable: in.Dataset.BaseTable}

	var dimExprs []sqlbuilder.Expr
	aliases := make(map[string]bool)
	for _, name := range q.Dimensions {
		f, err := r.resolveDimension(name)
		if err != nil {
			return nil, err
		}
		plan.Projections = append(plan.Projections, sqlbuilder.Projection{Alias: name, Expr: f.expr})
		dimExprs = append(dimExprs, f.expr)
		aliases[name] = true
		markTables(tables, f.tables)
	}

	hasMeasures := false
	for _, name := range q.Metrics {
		f, err := r.resolveMetric(name, nil)
		if err != nil {
			return nil, err
		}
		plan.Projections = append(plan.Projections, sqlbuilder.Projection{Alias: name, Expr: f.expr})
		aliases[name] = true
		hasMeasures = hasMeasures || f.measure
		markTables(tables, f.tables)
	}

	where, err := c.composeWhere(r, q, in.RLS, tables)
	if err != nil {
		return nil, err
	}
	plan.Where = where

	// Dimensions group the aggregation; a dimension-only query is a
	// plain projection with no GROUP BY.
	if hasMeasures {
		plan.GroupBy = dimExprs
	}

	for _, o := range q.OrderBy {
		entry := sqlbuilder.OrderByEntry{Desc: o.Direction == models.SortDesc}
		if aliases[o.Field] {
			entry.Alias = o.Field
		} else {
			f, err := r.resolveDimension(o.Field)
			if err != nil {
				return nil, errors.NewValidation(
					"order_by field %q is neither a projected field nor a dimension", o.Field)
			}
			entry.Expr = f.expr
			markTables(tables, f.tables)
		}
		plan.OrderBy = append(plan.OrderBy, entry)
	}

	plan.Joins, err = planJoins(in.ERD, in.Dataset.BaseTable, sortedKeys(tables), in.Dataset.AllowCrossJoins)
	if err != nil {
		return nil, err
	}

	plan.Limit = c.effectiveLimit(q.Limit, in.Dataset.DefaultLimit)
	if q.Offset > 0 {
		plan.Offset = q.Offset
	}

	return plan, nil
}

// composeWhere rewrites the client filter tree to physical columns and
// merges it with the tenant predicate and incremental window under an
// outer AND. The tenant predicate comes first and is never dropped.
func (c *Compiler) composeWhere(r *resolver, q *models.QueryRequest, decision rls.Result, tables map[string]bool) (*models.Filter, error) {
	var parts []*models.Filter

	if decision.Predicate != nil {
		parts = append(parts, decision.Predicate)
	}

	if q.Filters != nil {
		rewritten, err := c.rewriteFilter(r, q.Filters, tables)
		if err != nil {
			return nil, err
		}
		parts = append(parts, rewritten)
	}

	if w := q.IncrementalWindow; w != nil {
		f, err := r.resolveDimension(w.Column)
		if err != nil {
			return nil, errors.NewValidation("incremental_window.column %q is not a dimension", w.Column)
		}
		parts = append(parts, &models.Filter{
			Field: physicalFieldRef(f.expr),
			Op:    models.OpBetween,
			From:  w.From,
			To:    w.To,
		})
		markTables(tables, f.tables)
	}

	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return &models.Filter{And: parts}, nil
	}
}

// rewriteFilter maps every leaf's semantic field name to its physical
// reference. Filters reference dimensions only; a measure name in a
// filter is rejected rather than silently aggregated.
func (c *Compiler) rewriteFilter(r *resolver, f *models.Filter, tables map[string]bool) (*models.Filter, error) {
	if f == nil {
		return nil, nil
	}
	if !f.IsLeaf() {
		out := &models.Filter{}
		for _, child := range f.And {
			rw, err := c.rewriteFilter(r, child, tables)
			if err != nil {
				return nil, err
			}
			out.And = append(out.And, rw)
		}
		for _, child := range f.Or {
			rw, err := c.rewriteFilter(r, child, tables)
			if err != nil {
				return nil, err
			}
			out.Or = append(out.Or, rw)
		}
		if f.Not != nil {
			rw, err := c.rewriteFilter(r, f.Not, tables)
			if err != nil {
				return nil, err
			}
			out.Not = rw
		}
		return out, nil
	}

	if field, ok := r.dataset.FieldByName(f.Field); ok && field.Kind == catalog.KindMeasure {
		return nil, errors.NewValidation("filters cannot reference measure %q", f.Field)
	}
	if r.model != nil {
		if _, ok := r.model.Measure(f.Field); ok {
			return nil, errors.NewValidation("filters cannot reference measure %q", f.Field)
		}
	}

	resolved, err := r.resolveDimension(f.Field)
	if err != nil {
		return nil, err
	}
	markTables(tables, resolved.tables)

	out := *f
	out.Field = physicalFieldRef(resolved.expr)
	return &out, nil
}

// effectiveLimit applies the dataset default and the global row cap.
func (c *Compiler) effectiveLimit(requested, datasetDefault int) int {
	limit := requested
	if limit <= 0 {
		limit = datasetDefault
	}
	if c.RowMax > 0 && (limit <= 0 || limit > c.RowMax) {
		limit = c.RowMax
	}
	return limit
}

// physicalFieldRef flattens a column expression to the dotted reference
// the filter renderer expects.
func physicalFieldRef(e sqlbuilder.Expr) string {
	col, ok := e.(sqlbuilder.ColumnExpr)
	if !ok {
		return ""
	}
	if col.Table != "" {
		return col.Table + "." + col.Column
	}
	return col.Column
}

func markTables(set map[string]bool, tables []string) {
	for _, t := range tables {
		set[t] = true
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
