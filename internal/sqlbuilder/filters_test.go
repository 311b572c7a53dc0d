package sqlbuilder

import (
	"reflect"
	"testing"

	"github.com/semgate-labs/semgate/pkg/models"
)

func renderPG(t *testing.T, f *models.Filter) (string, []interface{}) {
	t.Helper()
	var params []interface{}
	sql, err := RenderFilter(f, DialectPostgres, &params)
	if err != nil {
		t.Fatalf("RenderFilter() error: %v", err)
	}
	return sql, params
}

func TestRenderFilterOperators(t *testing.T) {
	cases := []struct {
		name   string
		filter *models.Filter
		sql    string
		params []interface{}
	}{
		{
			"eq",
			&models.Filter{Field: "status", Op: models.OpEq, Value: "shipped"},
			`"status" = ?`,
			[]interface{}{"shipped"},
		},
		{
			"between",
			&models.Filter{Field: "amount", Op: models.OpBetween, From: 10, To: 20},
			`"amount" BETWEEN ? AND ?`,
			[]interface{}{10, 20},
		},
		{
			"in",
			&models.Filter{Field: "city", Op: models.OpIn, Values: []interface{}{"NYC", "SF"}},
			`"city" IN (?, ?)`,
			[]interface{}{"NYC", "SF"},
		},
		{
			"not_in",
			&models.Filter{Field: "city", Op: models.OpNotIn, Values: []interface{}{"LA"}},
			`"city" NOT IN (?)`,
			[]interface{}{"LA"},
		},
		{
			"contains",
			&models.Filter{Field: "name", Op: models.OpContains, Value: "corp"},
			`"name" LIKE ?`,
			[]interface{}{"%corp%"},
		},
		{
			"starts_with",
			&models.Filter{Field: "name", Op: models.OpStartsWith, Value: "A"},
			`"name" LIKE ?`,
			[]interface{}{"A%"},
		},
		{
			"is_null",
			&models.Filter{Field: "deleted_at", Op: models.OpIsNull},
			`"deleted_at" IS NULL`,
			nil,
		},
		{
			"qualified column",
			&models.Filter{Field: "orders.tenant_id", Op: models.OpEq, Value: "t1"},
			`orders."tenant_id" = ?`,
			[]interface{}{"t1"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sql, params := renderPG(t, c.filter)
			if sql != c.sql {
				t.Errorf("sql = %s, want %s", sql, c.sql)
			}
			if !reflect.DeepEqual(params, c.params) {
				t.Errorf("params = %v, want %v", params, c.params)
			}
		})
	}
}

func TestRenderFilterNesting(t *testing.T) {
	f := &models.Filter{
		And: []*models.Filter{
			{Field: "tenant_id", Op: models.OpEq, Value: "acme"},
			{Or: []*models.Filter{
				{Field: "status", Op: models.OpEq, Value: "open"},
				{Not: &models.Filter{Field: "priority", Op: models.OpLt, Value: 3}},
			}},
		},
	}

	sql, params := renderPG(t, f)
	want := `("tenant_id" = ? AND ("status" = ? OR NOT ("priority" < ?)))`
	if sql != want {
		t.Errorf("sql = %s, want %s", sql, want)
	}
	if !reflect.DeepEqual(params, []interface{}{"acme", "open", 3}) {
		t.Errorf("params = %v", params)
	}
}

func TestRenderFilterSingleChildUnwrapped(t *testing.T) {
	f := &models.Filter{And: []*models.Filter{
		{Field: "a", Op: models.OpEq, Value: 1},
	}}
	sql, _ := renderPG(t, f)
	if sql != `"a" = ?` {
		t.Errorf("single-child AND should not add parens: %s", sql)
	}
}

func TestRenderFilterErrors(t *testing.T) {
	var params []interface{}
	if _, err := RenderFilter(&models.Filter{Op: models.OpEq}, DialectPostgres, &params); err == nil {
		t.Error("leaf without field accepted")
	}
	if _, err := RenderFilter(&models.Filter{Field: "a", Op: "like"}, DialectPostgres, &params); err == nil {
		t.Error("unknown operator accepted")
	}
	if _, err := RenderFilter(&models.Filter{Field: "a", Op: models.OpIn}, DialectPostgres, &params); err == nil {
		t.Error("IN with no values accepted")
	}
}
