package semantic

import (
	"sort"
	"strings"

	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
)

// pathState is the best known route from the anchor to one table.
type pathState struct {
	dist    int
	maxCard int
	// key is the concatenated table names along the path, used as the
	// final deterministic tie-break.
	key    string
	parent string
	edge   catalog.JoinEdge
}

// planJoins produces the ordered join steps connecting every required
// table to the anchor. Paths are shortest-first; equal-length paths
// prefer the smaller maximum edge cardinality, then the
// lexicographically smaller table sequence, so the same inputs always
// plan the same joins.
func planJoins(erd *catalog.ERDModel, anchor string, required []string, allowCross bool) ([]sqlbuilder.JoinStep, error) {
	targets := make([]string, 0, len(required))
	for _, t := range required {
		if t != anchor {
			targets = append(targets, t)
		}
	}
	sort.Strings(targets)
	if len(targets) == 0 {
		return nil, nil
	}
	if erd == nil {
		return nil, errors.NewPlan("join", "tables %v require joins but the source declares none", targets)
	}

	best := map[string]pathState{anchor: {key: anchor}}
	frontier := []string{anchor}
	for len(frontier) > 0 {
		sort.Strings(frontier)
		var next []string
		for _, from := range frontier {
			cur := best[from]
			for _, e := range erd.ActiveEdgesFrom(from) {
				to := e.Target.String()
				if to == from {
					to = e.Source.String()
				}
				cand := pathState{
					dist:    cur.dist + 1,
					maxCard: cur.maxCard,
					key:     cur.key + "\x00" + to,
					parent:  from,
					edge:    e,
				}
				if r := e.Cardinality.Rank(); r > cand.maxCard {
					cand.maxCard = r
				}
				prev, seen := best[to]
				if !seen {
					best[to] = cand
					next = append(next, to)
					continue
				}
				if cand.dist == prev.dist && betterState(cand, prev) {
					best[to] = cand
				}
			}
		}
		frontier = next
	}

	var steps []sqlbuilder.JoinStep
	joined := map[string]bool{anchor: true}
	for _, target := range targets {
		if _, ok := best[target]; !ok {
			return nil, errors.NewPlan("join", "table %s is not reachable from %s in the declared joins", target, anchor)
		}
		chain := pathTo(best, target)
		for _, table := range chain {
			if joined[table] {
				continue
			}
			step, err := joinStep(best[table], table, allowCross)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
			joined[table] = true
		}
	}
	return steps, nil
}

// betterState prefers a smaller maximum cardinality, then a smaller
// path key.
func betterState(a, b pathState) bool {
	if a.maxCard != b.maxCard {
		return a.maxCard < b.maxCard
	}
	return a.key < b.key
}

// pathTo walks parent links back to the anchor and returns the tables
// from the first joined table to the target, anchor excluded.
func pathTo(best map[string]pathState, target string) []string {
	var rev []string
	for t := target; best[t].parent != ""; t = best[t].parent {
		rev = append(rev, t)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// joinStep materializes one edge traversal into a join step. The edge
// may be walked against its declared direction; the ON condition keeps
// the already-joined side on the left.
func joinStep(st pathState, table string, allowCross bool) (sqlbuilder.JoinStep, error) {
	e := st.edge
	if e.JoinType == catalog.JoinCross {
		if !allowCross {
			return sqlbuilder.JoinStep{}, errors.NewPlan("join",
				"path to %s requires a cross join, which this dataset does not allow", table)
		}
		return sqlbuilder.JoinStep{Join: "CROSS", Table: table}, nil
	}

	jt := strings.ToUpper(string(e.JoinType))
	if jt == "" {
		jt = "INNER"
	}

	on := &sqlbuilder.JoinCondition{}
	if e.Source.String() == st.parent {
		on.LeftTable, on.LeftCol = st.parent, e.SourceCol
		on.RightTable, on.RightCol = table, e.TargetCol
	} else {
		on.LeftTable, on.LeftCol = st.parent, e.TargetCol
		on.RightTable, on.RightCol = table, e.SourceCol
	}
	return sqlbuilder.JoinStep{Join: jt, Table: table, On: on}, nil
}
