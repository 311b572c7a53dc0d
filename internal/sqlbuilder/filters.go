package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/pkg/models"
)

// RenderFilter renders a filter tree to a SQL condition with canonical
// `?` placeholders, appending bound values to params in placeholder
// order. Leaf fields must already be physical column references; the
// semantic compiler rewrites them before the plan reaches the builder.
func RenderFilter(f *models.Filter, d Dialect, params *[]interface{}) (string, error) {
	if f == nil {
		return "", nil
	}

	switch {
	case len(f.And) > 0:
		return renderBoolean(f.And, "AND", d, params)
	case len(f.Or) > 0:
		return renderBoolean(f.Or, "OR", d, params)
	case f.Not != nil:
		inner, err := RenderFilter(f.Not, d, params)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	default:
		return renderLeaf(f, d, params)
	}
}

func renderBoolean(children []*models.Filter, op string, d Dialect, params *[]interface{}) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		sql, err := RenderFilter(c, d, params)
		if err != nil {
			return "", err
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", nil
}

func renderLeaf(f *models.Filter, d Dialect, params *[]interface{}) (string, error) {
	if f.Field == "" {
		return "", errors.NewBuild("filter leaf has no field")
	}

	col := renderFieldRef(f.Field, d)

	switch f.Op {
	case models.OpEq:
		*params = append(*params, f.Value)
		return col + " = ?", nil
	case models.OpNe:
		*params = append(*params, f.Value)
		return col + " != ?", nil
	case models.OpGt:
		*params = append(*params, f.Value)
		return col + " > ?", nil
	case models.OpGte:
		*params = append(*params, f.Value)
		return col + " >= ?", nil
	case models.OpLt:
		*params = append(*params, f.Value)
		return col + " < ?", nil
	case models.OpLte:
		*params = append(*params, f.Value)
		return col + " <= ?", nil
	case models.OpBetween:
		*params = append(*params, f.From, f.To)
		return col + " BETWEEN ? AND ?", nil
	case models.OpIn, models.OpNotIn:
		if len(f.Values) == 0 {
			return "", errors.NewBuild("filter %s on %q has no values", f.Op, f.Field)
		}
		holes := make([]string, len(f.Values))
		for i, v := range f.Values {
			holes[i] = "?"
			*params = append(*params, v)
		}
		kw := "IN"
		if f.Op == models.OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(holes, ", ")), nil
	case models.OpContains:
		*params = append(*params, "%"+toString(f.Value)+"%")
		return col + " LIKE ?", nil
	case models.OpStartsWith:
		*params = append(*params, toString(f.Value)+"%")
		return col + " LIKE ?", nil
	case models.OpEndsWith:
		*params = append(*params, "%"+toString(f.Value))
		return col + " LIKE ?", nil
	case models.OpIsNull:
		return col + " IS NULL", nil
	case models.OpIsNotNull:
		return col + " IS NOT NULL", nil
	default:
		return "", errors.NewBuild("unknown filter operator %q", f.Op)
	}
}

// renderFieldRef quotes a possibly table-qualified column reference.
func renderFieldRef(field string, d Dialect) string {
	if i := strings.LastIndex(field, "."); i > 0 {
		return QuoteQualified(d, field[:i], field[i+1:])
	}
	return QuoteIdent(d, field)
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
