package semantic

import (
	"reflect"
	"testing"

	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
)

func edge(src, dst, srcCol, dstCol string, card catalog.Cardinality) catalog.JoinEdge {
	return catalog.JoinEdge{
		Source: catalog.TableRef{Table: src}, Target: catalog.TableRef{Table: dst},
		SourceCol: srcCol, TargetCol: dstCol,
		Cardinality: card, JoinType: catalog.JoinInner, Active: true,
	}
}

func TestPlanJoinsNoTargets(t *testing.T) {
	steps, err := planJoins(nil, "orders", []string{"orders"}, false)
	if err != nil {
		t.Fatalf("planJoins() error: %v", err)
	}
	if steps != nil {
		t.Errorf("steps = %v, want nil", steps)
	}
}

func TestPlanJoinsPrefersLowerCardinality(t *testing.T) {
	// Two 2-hop routes from orders to audits; the route through
	// customers carries an N:N edge and must lose to the N:1 route.
	erd := &catalog.ERDModel{Edges: []catalog.JoinEdge{
		edge("orders", "customers", "customer_id", "id", catalog.OneToOne),
		edge("customers", "audits", "id", "customer_id", catalog.ManyToMany),
		edge("orders", "batches", "batch_id", "id", catalog.ManyToOne),
		edge("batches", "audits", "audit_id", "id", catalog.ManyToOne),
	}}

	steps, err := planJoins(erd, "orders", []string{"audits", "orders"}, false)
	if err != nil {
		t.Fatalf("planJoins() error: %v", err)
	}

	want := []sqlbuilder.JoinStep{
		{Join: "INNER", Table: "batches", On: &sqlbuilder.JoinCondition{
			LeftTable: "orders", LeftCol: "batch_id",
			RightTable: "batches", RightCol: "id",
		}},
		{Join: "INNER", Table: "audits", On: &sqlbuilder.JoinCondition{
			LeftTable: "batches", LeftCol: "audit_id",
			RightTable: "audits", RightCol: "id",
		}},
	}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("steps = %+v, want %+v", steps, want)
	}
}

func TestPlanJoinsReversedEdge(t *testing.T) {
	// The edge is declared customers -> orders but walked the other way;
	// the ON condition keeps the already-joined side on the left.
	erd := &catalog.ERDModel{Edges: []catalog.JoinEdge{
		edge("customers", "orders", "id", "customer_id", catalog.OneToMany),
	}}

	steps, err := planJoins(erd, "orders", []string{"customers", "orders"}, false)
	if err != nil {
		t.Fatalf("planJoins() error: %v", err)
	}
	want := []sqlbuilder.JoinStep{
		{Join: "INNER", Table: "customers", On: &sqlbuilder.JoinCondition{
			LeftTable: "orders", LeftCol: "customer_id",
			RightTable: "customers", RightCol: "id",
		}},
	}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("steps = %+v, want %+v", steps, want)
	}
}

func TestPlanJoinsIgnoresInactiveEdges(t *testing.T) {
	e := edge("orders", "customers", "customer_id", "id", catalog.ManyToOne)
	e.Active = false
	erd := &catalog.ERDModel{Edges: []catalog.JoinEdge{e}}

	_, err := planJoins(erd, "orders", []string{"customers"}, false)
	if !errors.Is(err, errors.KindPlan) {
		t.Errorf("kind = %s, want PlanError", errors.KindOf(err))
	}
}

func TestPlanJoinsCrossPolicy(t *testing.T) {
	e := edge("orders", "calendar", "", "", catalog.ManyToMany)
	e.JoinType = catalog.JoinCross
	erd := &catalog.ERDModel{Edges: []catalog.JoinEdge{e}}

	_, err := planJoins(erd, "orders", []string{"calendar"}, false)
	if !errors.Is(err, errors.KindPlan) {
		t.Errorf("kind = %s, want PlanError", errors.KindOf(err))
	}

	steps, err := planJoins(erd, "orders", []string{"calendar"}, true)
	if err != nil {
		t.Fatalf("planJoins() error: %v", err)
	}
	want := []sqlbuilder.JoinStep{{Join: "CROSS", Table: "calendar"}}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("steps = %+v, want %+v", steps, want)
	}
}

func TestPlanJoinsSharedPrefix(t *testing.T) {
	// Two targets sharing the customers hop join it once.
	erd := salesERD()
	steps, err := planJoins(erd, "orders", []string{"customers", "regions"}, false)
	if err != nil {
		t.Fatalf("planJoins() error: %v", err)
	}
	if len(steps) != 2 || steps[0].Table != "customers" || steps[1].Table != "regions" {
		t.Errorf("steps = %+v", steps)
	}
}
