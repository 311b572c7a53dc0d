package semantic

import (
	"strings"

	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
)

// resolvedField is a name resolved to a renderable expression plus the
// physical tables it touches.
type resolvedField struct {
	name    string
	expr    sqlbuilder.Expr
	tables  []string
	measure bool
}

// resolver resolves semantic names against a dataset and its optional
// semantic model. Resolution is case-preserving and case-sensitive.
type resolver struct {
	dataset *catalog.Dataset
	model   *catalog.SemanticModel
}

// resolveDimension resolves a dimension name to a column expression.
func (r *resolver) resolveDimension(name string) (resolvedField, error) {
	if r.model != nil {
		if d, ok := r.model.Dimension(name); ok {
			return resolvedField{
				name:   name,
				expr:   sqlbuilder.ColumnExpr{Table: d.SourceTable, Column: physicalColumn(d.PhysicalColumn, name)},
				tables: tableSet(d.SourceTable, r.dataset.BaseTable),
			}, nil
		}
	}
	if f, ok := r.dataset.FieldByName(name); ok && f.Kind != catalog.KindMeasure {
		return resolvedField{
			name:   name,
			expr:   sqlbuilder.ColumnExpr{Table: f.SourceTable, Column: physicalColumn(f.PhysicalColumn, name)},
			tables: tableSet(f.SourceTable, r.dataset.BaseTable),
		}, nil
	}
	return resolvedField{}, errors.NewDimensionNotFound(r.dataset.ID, name)
}

// resolveMetric resolves a metric name to a measure or calculated-field
// expression.
func (r *resolver) resolveMetric(name string, visiting map[string]bool) (resolvedField, error) {
	if r.model != nil {
		if m, ok := r.model.Measure(name); ok {
			return r.buildMeasure(name, m.Aggregation, m.Body, m.SourceTable)
		}
		if c, ok := r.model.CalculatedField(name); ok {
			return r.expandCalculated(name, c.Expression, visiting)
		}
	}
	if f, ok := r.dataset.FieldByName(name); ok && f.Kind == catalog.KindMeasure {
		body := f.Expression
		if body == "" {
			body = physicalColumn(f.PhysicalColumn, name)
		}
		return r.buildMeasure(name, f.Aggregation, body, f.SourceTable)
	}
	return resolvedField{}, errors.NewMeasureNotFound(r.dataset.ID, name)
}

// buildMeasure renders a measure body under its aggregation tag. A bare
// column body is qualified with the measure's source table; a body that
// already names a table or contains parentheses is used as-is after
// validation.
func (r *resolver) buildMeasure(name string, agg catalog.Aggregation, body, sourceTable string) (resolvedField, error) {
	if body == "" {
		return resolvedField{}, errors.NewConfig("measure %q has an empty body", name)
	}

	var arg sqlbuilder.Expr
	if strings.ContainsAny(body, ".(") {
		if err := validateMeasureBody(name, body); err != nil {
			return resolvedField{}, err
		}
		arg = sqlbuilder.RawExpr{SQL: body}
	} else {
		arg = sqlbuilder.ColumnExpr{Table: sourceTable, Column: body}
	}

	expr, err := aggregate(agg, arg)
	if err != nil {
		return resolvedField{}, err
	}

	return resolvedField{
		name:    name,
		expr:    expr,
		tables:  tableSet(sourceTable, r.dataset.BaseTable),
		measure: agg != catalog.AggNone,
	}, nil
}

// aggregate wraps an argument in the aggregation named by the tag.
// COUNT_DISTINCT renders as COUNT(DISTINCT ...), never COUNT_DISTINCT(...).
func aggregate(agg catalog.Aggregation, arg sqlbuilder.Expr) (sqlbuilder.Expr, error) {
	switch agg {
	case catalog.AggNone:
		return arg, nil
	case catalog.AggCountDistinct:
		return sqlbuilder.AggExpr{Func: "COUNT", Distinct: true, Arg: arg}, nil
	case catalog.AggSum, catalog.AggCount, catalog.AggAvg, catalog.AggMin, catalog.AggMax,
		catalog.AggMedian, catalog.AggStddev, catalog.AggVariance, catalog.AggFirst, catalog.AggLast:
		return sqlbuilder.AggExpr{Func: string(agg), Arg: arg}, nil
	default:
		return nil, errors.NewConfig("unknown aggregation %q", agg)
	}
}

// validateMeasureBody rejects bodies that could smuggle statements or
// comments into the SELECT list.
func validateMeasureBody(name, body string) error {
	if strings.ContainsAny(body, ";") {
		return errors.NewConfig("measure %q body contains a statement separator", name)
	}
	for _, tok := range []string{"--", "/*", "#"} {
		if strings.Contains(body, tok) {
			return errors.NewConfig("measure %q body contains comment token %q", name, tok)
		}
	}
	depth := 0
	for _, c := range body {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return errors.NewConfig("measure %q body has unbalanced parentheses", name)
			}
		}
	}
	if depth != 0 {
		return errors.NewConfig("measure %q body has unbalanced parentheses", name)
	}
	return nil
}

// physicalColumn falls back to the semantic name when no physical column
// is declared.
func physicalColumn(physical, name string) string {
	if physical == "" {
		return name
	}
	return physical
}

// tableSet returns the table a field touches, defaulting to the dataset
// base table.
func tableSet(sourceTable, baseTable string) []string {
	if sourceTable == "" {
		return []string{baseTable}
	}
	return []string{sourceTable}
}
