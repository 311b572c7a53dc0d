package sqlbuilder

import "github.com/semgate-labs/semgate/pkg/models"

// Projection is one SELECT-list entry of a compiled plan.
type Projection struct {
	Alias string
	Expr  Expr
}

// JoinStep is one ordered join of a compiled plan. On is empty for a
// CROSS join.
type JoinStep struct {
	Join  string // INNER, LEFT, RIGHT, FULL, CROSS
	Table string
	On    *JoinCondition
}

// JoinCondition equates one column of the already-joined tables with one
// column of the newly joined table.
type JoinCondition struct {
	LeftTable  string
	LeftCol    string
	RightTable string
	RightCol   string
}

// OrderByEntry orders the result by a projected alias or a physical
// column expression.
type OrderByEntry struct {
	// Alias names a projection; when set, Expr is ignored.
	Alias string
	Expr  Expr
	Desc  bool
}

// CompiledPlan is the structured query handed from the semantic compiler
// to the builder. The filter tree references physical columns only; the
// RLS predicate has already been merged in.
type CompiledPlan struct {
	Projections []Projection
	BaseTable   string
	Joins       []JoinStep
	Where       *models.Filter
	GroupBy     []Expr
	OrderBy     []OrderByEntry
	Limit       int
	Offset      int
}
