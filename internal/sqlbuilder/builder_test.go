package sqlbuilder

import (
	"reflect"
	"strings"
	"testing"

	"github.com/semgate-labs/semgate/pkg/models"
)

func salesPlan() *CompiledPlan {
	return &CompiledPlan{
		BaseTable: "orders",
		Projections: []Projection{
			{Alias: "city", Expr: ColumnExpr{Column: "city"}},
			{Alias: "Revenue", Expr: AggExpr{Func: "SUM", Arg: ColumnExpr{Column: "amount"}}},
		},
		Where: &models.Filter{
			And: []*models.Filter{
				{Field: "tenant_id", Op: models.OpEq, Value: "acme"},
				{Field: "status", Op: models.OpEq, Value: "shipped"},
			},
		},
		GroupBy: []Expr{ColumnExpr{Column: "city"}},
		OrderBy: []OrderByEntry{{Alias: "Revenue", Desc: true}},
		Limit:   100,
	}
}

func TestBuildGroupedQueryPostgres(t *testing.T) {
	sql, params, err := Build(salesPlan(), DialectPostgres)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want := `SELECT "city", SUM("amount") AS "Revenue" FROM orders` +
		` WHERE ("tenant_id" = ? AND "status" = ?)` +
		` GROUP BY "city" ORDER BY "Revenue" DESC LIMIT 100`
	if sql != want {
		t.Errorf("sql mismatch\n got: %s\nwant: %s", sql, want)
	}
	if !reflect.DeepEqual(params, []interface{}{"acme", "shipped"}) {
		t.Errorf("params = %v, want [acme shipped]", params)
	}
}

func TestBuildDialectQuoting(t *testing.T) {
	plan := salesPlan()

	cases := []struct {
		dialect Dialect
		city    string
	}{
		{DialectPostgres, `"city"`},
		{DialectSnowflake, `"city"`},
		{DialectBigQuery, "`city`"},
		{DialectMySQL, "`city`"},
		{DialectSQLServer, "[city]"},
	}
	for _, c := range cases {
		sql, params, err := Build(plan, c.dialect)
		if err != nil {
			t.Fatalf("Build(%s) error: %v", c.dialect, err)
		}
		if !strings.Contains(sql, "SELECT "+c.city) {
			t.Errorf("%s: expected projection %s, got %s", c.dialect, c.city, sql)
		}
		if len(params) != 2 {
			t.Errorf("%s: params = %v, want 2 entries", c.dialect, params)
		}
	}
}

func TestBuildSamePlanAnyDialectParams(t *testing.T) {
	// The same plan rendered for two engines binds identical parameter
	// vectors; only identifier quoting and pagination syntax differ.
	plan := salesPlan()
	_, pgParams, err := Build(plan, DialectPostgres)
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	_, bqParams, err := Build(plan, DialectBigQuery)
	if err != nil {
		t.Fatalf("bigquery: %v", err)
	}
	if !reflect.DeepEqual(pgParams, bqParams) {
		t.Errorf("param vectors diverged: %v vs %v", pgParams, bqParams)
	}
}

func TestBuildOffsetFetch(t *testing.T) {
	plan := &CompiledPlan{
		BaseTable:   "orders",
		Projections: []Projection{{Alias: "city", Expr: ColumnExpr{Column: "city"}}},
		Limit:       10,
		Offset:      20,
	}

	sql, _, err := Build(plan, DialectSQLServer)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !strings.HasSuffix(sql, "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY") {
		t.Errorf("sqlserver pagination wrong: %s", sql)
	}

	sql, _, err = Build(plan, DialectOracle)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !strings.HasSuffix(sql, "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY") {
		t.Errorf("oracle pagination wrong: %s", sql)
	}

	sql, _, err = Build(plan, DialectPostgres)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !strings.HasSuffix(sql, "LIMIT 10 OFFSET 20") {
		t.Errorf("postgres pagination wrong: %s", sql)
	}
}

func TestBuildJoins(t *testing.T) {
	plan := &CompiledPlan{
		BaseTable: "orders",
		Projections: []Projection{
			{Alias: "region", Expr: ColumnExpr{Table: "regions", Column: "name"}},
		},
		Joins: []JoinStep{
			{Join: "INNER", Table: "customers", On: &JoinCondition{
				LeftTable: "orders", LeftCol: "customer_id",
				RightTable: "customers", RightCol: "id",
			}},
			{Join: "LEFT", Table: "regions", On: &JoinCondition{
				LeftTable: "customers", LeftCol: "region_id",
				RightTable: "regions", RightCol: "id",
			}},
		},
	}

	sql, _, err := Build(plan, DialectPostgres)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	want := `SELECT regions."name" AS "region" FROM orders` +
		` INNER JOIN customers ON orders."customer_id" = customers."id"` +
		` LEFT JOIN regions ON customers."region_id" = regions."id"`
	if sql != want {
		t.Errorf("sql mismatch\n got: %s\nwant: %s", sql, want)
	}
}

func TestBuildJoinWithoutCondition(t *testing.T) {
	plan := &CompiledPlan{
		BaseTable:   "orders",
		Projections: []Projection{{Expr: ColumnExpr{Column: "id"}}},
		Joins:       []JoinStep{{Join: "INNER", Table: "customers"}},
	}
	if _, _, err := Build(plan, DialectPostgres); err == nil {
		t.Fatal("expected error for INNER join without condition")
	}
}

func TestBuildCrossJoin(t *testing.T) {
	plan := &CompiledPlan{
		BaseTable:   "orders",
		Projections: []Projection{{Expr: ColumnExpr{Column: "id"}}},
		Joins:       []JoinStep{{Join: "CROSS", Table: "calendar"}},
	}
	sql, _, err := Build(plan, DialectPostgres)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !strings.Contains(sql, "CROSS JOIN calendar") {
		t.Errorf("expected cross join, got %s", sql)
	}
}

func TestBuildRejectsEmptyPlans(t *testing.T) {
	if _, _, err := Build(nil, DialectPostgres); err == nil {
		t.Error("nil plan accepted")
	}
	if _, _, err := Build(&CompiledPlan{BaseTable: "t"}, DialectPostgres); err == nil {
		t.Error("plan without projections accepted")
	}
	if _, _, err := Build(&CompiledPlan{
		Projections: []Projection{{Expr: ColumnExpr{Column: "a"}}},
	}, DialectPostgres); err == nil {
		t.Error("plan without base table accepted")
	}
}

func TestQuoteIdentEscaping(t *testing.T) {
	if got := QuoteIdent(DialectPostgres, `we"ird`); got != `"we""ird"` {
		t.Errorf("postgres quoting = %s", got)
	}
	if got := QuoteIdent(DialectMySQL, "we`ird"); got != "`we``ird`" {
		t.Errorf("mysql quoting = %s", got)
	}
	if got := QuoteIdent(DialectSQLServer, "we]ird"); got != "[we]]ird]" {
		t.Errorf("sqlserver quoting = %s", got)
	}
}

func TestDialectFor(t *testing.T) {
	if d := DialectFor("clickhouse"); d != DialectClickHouse {
		t.Errorf("DialectFor(clickhouse) = %s", d)
	}
	if d := DialectFor("no-such-engine"); d != DialectPostgres {
		t.Errorf("unknown engine should fall back to postgres, got %s", d)
	}
}
