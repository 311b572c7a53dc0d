package sqlbuilder

import "testing"

func TestAggExprRender(t *testing.T) {
	sum := AggExpr{Func: "SUM", Arg: ColumnExpr{Column: "amount"}}
	if got := sum.Render(DialectPostgres); got != `SUM("amount")` {
		t.Errorf("Render() = %s", got)
	}

	cd := AggExpr{Func: "COUNT", Distinct: true, Arg: ColumnExpr{Column: "user_id"}}
	if got := cd.Render(DialectPostgres); got != `COUNT(DISTINCT "user_id")` {
		t.Errorf("Render() = %s", got)
	}
	if got := cd.Render(DialectBigQuery); got != "COUNT(DISTINCT `user_id`)" {
		t.Errorf("Render() = %s", got)
	}
}

func TestTemplateExprRender(t *testing.T) {
	e := TemplateExpr{
		Format: "%s / NULLIF(%s, 0)",
		Args: []Expr{
			AggExpr{Func: "SUM", Arg: ColumnExpr{Column: "amount"}},
			AggExpr{Func: "COUNT", Arg: ColumnExpr{Column: "id"}},
		},
	}
	want := `(SUM("amount")) / NULLIF((COUNT("id")), 0)`
	if got := e.Render(DialectPostgres); got != want {
		t.Errorf("Render() = %s, want %s", got, want)
	}
}

func TestEscapeTemplate(t *testing.T) {
	e := TemplateExpr{
		Format: EscapeTemplate("100% of ") + "%s",
		Args:   []Expr{ColumnExpr{Column: "amount"}},
	}
	if got := e.Render(DialectPostgres); got != `100% of ("amount")` {
		t.Errorf("Render() = %s", got)
	}
}
