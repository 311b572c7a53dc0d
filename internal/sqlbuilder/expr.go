package sqlbuilder

import (
	"fmt"
	"strings"
)

// Expr is a renderable SQL expression. Rendering is deferred until the
// target dialect is known so the same plan can be emitted for any engine.
type Expr interface {
	// Render returns the dialect-specific SQL for the expression.
	Render(d Dialect) string
}

// ColumnExpr references a physical column, optionally table-qualified.
type ColumnExpr struct {
	Table  string
	Column string
}

// Render implements Expr.
func (e ColumnExpr) Render(d Dialect) string {
	return QuoteQualified(d, e.Table, e.Column)
}

// AggExpr wraps an argument expression in an aggregation function.
// COUNT_DISTINCT is always rendered as COUNT(DISTINCT ...).
type AggExpr struct {
	Func     string
	Distinct bool
	Arg      Expr
}

// Render implements Expr.
func (e AggExpr) Render(d Dialect) string {
	if e.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", e.Func, e.Arg.Render(d))
	}
	return fmt.Sprintf("%s(%s)", e.Func, e.Arg.Render(d))
}

// RawExpr carries SQL written by the model author and used as-is.
type RawExpr struct {
	SQL string
}

// Render implements Expr.
func (e RawExpr) Render(d Dialect) string {
	return e.SQL
}

// TemplateExpr renders a format string whose %s slots are filled with
// sub-expressions. Calculated fields compile to this form so the
// referenced measures render per dialect.
type TemplateExpr struct {
	Format string
	Args   []Expr
}

// Render implements Expr.
func (e TemplateExpr) Render(d Dialect) string {
	rendered := make([]interface{}, len(e.Args))
	for i, a := range e.Args {
		rendered[i] = "(" + a.Render(d) + ")"
	}
	return fmt.Sprintf(e.Format, rendered...)
}

// EscapeTemplate escapes literal percent signs in author-written SQL so
// it is safe to use as a TemplateExpr format string.
func EscapeTemplate(sql string) string {
	return strings.ReplaceAll(sql, "%", "%%")
}
