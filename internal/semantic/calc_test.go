package semantic

import (
	"testing"

	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
)

func testResolver(model *catalog.SemanticModel) *resolver {
	return &resolver{dataset: salesDataset(), model: model}
}

func TestSplitBracketRefs(t *testing.T) {
	segments, refs, err := splitBracketRefs("f", "[A] / NULLIF([B], 0)")
	if err != nil {
		t.Fatalf("splitBracketRefs() error: %v", err)
	}
	if len(refs) != 2 || refs[0] != "A" || refs[1] != "B" {
		t.Errorf("refs = %v", refs)
	}
	if len(segments) != 3 || segments[0] != "" || segments[1] != " / NULLIF(" || segments[2] != ", 0)" {
		t.Errorf("segments = %q", segments)
	}
}

func TestSplitBracketRefsErrors(t *testing.T) {
	cases := []string{
		"[A] + [B", // unterminated
		"A] + [B]", // unmatched close
		"[] + [A]", // empty reference
	}
	for _, expr := range cases {
		if _, _, err := splitBracketRefs("f", expr); err == nil {
			t.Errorf("splitBracketRefs(%q) accepted", expr)
		} else if !errors.Is(err, errors.KindConfig) {
			t.Errorf("splitBracketRefs(%q) kind = %s, want ConfigError", expr, errors.KindOf(err))
		}
	}
}

func TestExpandCalculatedNoRefs(t *testing.T) {
	r := testResolver(salesModel())
	_, err := r.expandCalculated("f", "1 + 1", nil)
	if !errors.Is(err, errors.KindConfig) {
		t.Errorf("kind = %s, want ConfigError", errors.KindOf(err))
	}
}

func TestExpandCalculatedDimensionRef(t *testing.T) {
	// A bracket reference that names no measure falls back to dimensions.
	r := testResolver(salesModel())
	f, err := r.expandCalculated("f", "[Revenue] / [city]", nil)
	if err != nil {
		t.Fatalf("expandCalculated() error: %v", err)
	}
	got := f.expr.Render(sqlbuilder.DialectPostgres)
	if want := `(SUM("amount")) / ("city")`; got != want {
		t.Errorf("Render() = %s, want %s", got, want)
	}
	if !f.measure {
		t.Error("expression over a measure should be marked as a measure")
	}
}

func TestExpandCalculatedPercentLiteral(t *testing.T) {
	model := salesModel()
	model.CalculatedFields = append(model.CalculatedFields, catalog.CalculatedField{
		Name: "Pct", Expression: "[Revenue] * 100 / [Orders]",
	})
	r := testResolver(model)
	f, err := r.expandCalculated("Pct", "[Revenue] * 100 / [Orders]", nil)
	if err != nil {
		t.Fatalf("expandCalculated() error: %v", err)
	}
	got := f.expr.Render(sqlbuilder.DialectPostgres)
	if want := `(SUM("amount")) * 100 / (COUNT("id"))`; got != want {
		t.Errorf("Render() = %s, want %s", got, want)
	}
}

func TestBuildMeasureRawBodyValidation(t *testing.T) {
	r := testResolver(nil)
	cases := []string{
		"orders.amount; DROP TABLE orders",
		"(amount) -- note",
		"price * (qty",
		"orders.a /* b */ + c",
	}
	for _, body := range cases {
		if _, err := r.buildMeasure("m", catalog.AggSum, body, ""); err == nil {
			t.Errorf("buildMeasure(%q) accepted", body)
		}
	}

	f, err := r.buildMeasure("m", catalog.AggSum, "price * quantity + (tax)", "")
	if err != nil {
		t.Fatalf("buildMeasure() error: %v", err)
	}
	if got := f.expr.Render(sqlbuilder.DialectPostgres); got != "SUM(price * quantity + (tax))" {
		t.Errorf("Render() = %s", got)
	}
}

func TestBuildMeasureQualifiesBareColumn(t *testing.T) {
	r := testResolver(nil)
	f, err := r.buildMeasure("m", catalog.AggAvg, "amount", "orders")
	if err != nil {
		t.Fatalf("buildMeasure() error: %v", err)
	}
	if got := f.expr.Render(sqlbuilder.DialectPostgres); got != `AVG(orders."amount")` {
		t.Errorf("Render() = %s", got)
	}
}

func TestAggregateNone(t *testing.T) {
	r := testResolver(nil)
	f, err := r.buildMeasure("m", catalog.AggNone, "amount", "")
	if err != nil {
		t.Fatalf("buildMeasure() error: %v", err)
	}
	if f.measure {
		t.Error("NONE aggregation should not mark the field as a measure")
	}
	if got := f.expr.Render(sqlbuilder.DialectPostgres); got != `"amount"` {
		t.Errorf("Render() = %s", got)
	}
}
