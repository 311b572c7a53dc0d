package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/semgate-labs/semgate/internal/errors"
)

// Build renders a compiled plan to a single SQL statement with canonical
// `?` placeholders and its positional parameter vector. The statement
// carries no trailing semicolon; adapters rewrite placeholders to the
// engine-native form before execution.
func Build(plan *CompiledPlan, d Dialect) (string, []interface{}, error) {
	if plan == nil {
		return "", nil, errors.NewBuild("plan is nil")
	}
	if len(plan.Projections) == 0 {
		return "", nil, errors.NewBuild("plan has no projections")
	}
	if plan.BaseTable == "" {
		return "", nil, errors.NewBuild("plan has no base table")
	}

	var sb strings.Builder
	var params []interface{}

	sb.WriteString("SELECT ")
	for i, p := range plan.Projections {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Expr.Render(d))
		if p.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(QuoteIdent(d, p.Alias))
		}
	}

	sb.WriteString(" FROM ")
	sb.WriteString(plan.BaseTable)

	for _, j := range plan.Joins {
		switch strings.ToUpper(j.Join) {
		case "CROSS":
			sb.WriteString(" CROSS JOIN ")
			sb.WriteString(j.Table)
		case "INNER", "LEFT", "RIGHT", "FULL":
			if j.On == nil {
				return "", nil, errors.NewBuild("join to %s has no condition", j.Table)
			}
			fmt.Fprintf(&sb, " %s JOIN %s ON %s = %s",
				strings.ToUpper(j.Join),
				j.Table,
				QuoteQualified(d, j.On.LeftTable, j.On.LeftCol),
				QuoteQualified(d, j.On.RightTable, j.On.RightCol))
		default:
			return "", nil, errors.NewBuild("unknown join type %q", j.Join)
		}
	}

	if plan.Where != nil {
		cond, err := RenderFilter(plan.Where, d, &params)
		if err != nil {
			return "", nil, err
		}
		if cond != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(cond)
		}
	}

	if len(plan.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, g := range plan.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(g.Render(d))
		}
	}

	if len(plan.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range plan.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			if o.Alias != "" {
				sb.WriteString(QuoteIdent(d, o.Alias))
			} else if o.Expr != nil {
				sb.WriteString(o.Expr.Render(d))
			} else {
				return "", nil, errors.NewBuild("order by entry has neither alias nor expression")
			}
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	}

	if err := writeLimitOffset(&sb, plan, d); err != nil {
		return "", nil, err
	}

	return sb.String(), params, nil
}

// writeLimitOffset appends the pagination clause in the dialect's form.
func writeLimitOffset(sb *strings.Builder, plan *CompiledPlan, d Dialect) error {
	if plan.Limit <= 0 && plan.Offset <= 0 {
		return nil
	}

	if offsetFetchDialect(d) {
		// SQL Server and Oracle use OFFSET ... FETCH; OFFSET is
		// mandatory in that form even when zero.
		fmt.Fprintf(sb, " OFFSET %d ROWS", plan.Offset)
		if plan.Limit > 0 {
			fmt.Fprintf(sb, " FETCH NEXT %d ROWS ONLY", plan.Limit)
		}
		return nil
	}

	if plan.Limit > 0 {
		fmt.Fprintf(sb, " LIMIT %d", plan.Limit)
	}
	if plan.Offset > 0 {
		fmt.Fprintf(sb, " OFFSET %d", plan.Offset)
	}
	return nil
}
