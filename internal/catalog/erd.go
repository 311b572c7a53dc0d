package catalog

// Cardinality classifies a join edge.
type Cardinality string

const (
	OneToOne   Cardinality = "1:1"
	OneToMany  Cardinality = "1:N"
	ManyToOne  Cardinality = "N:1"
	ManyToMany Cardinality = "N:N"
)

// rank orders cardinalities for join-path tie-breaking: 1:1 < 1:N < N:N.
func (c Cardinality) rank() int {
	switch c {
	case OneToOne:
		return 0
	case OneToMany, ManyToOne:
		return 1
	default:
		return 2
	}
}

// Rank exposes the tie-break ordering used by the join planner.
func (c Cardinality) Rank() int { return c.rank() }

// JoinType is the SQL join type of an edge.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
	JoinCross JoinType = "cross"
)

// TableRef identifies a physical table node in the ERD.
type TableRef struct {
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Table  string `json:"table" yaml:"table"`
}

// String renders the node as schema.table, or just the table name when
// no schema is declared.
func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

// JoinEdge is a directed join declaration between two tables.
type JoinEdge struct {
	Source      TableRef    `json:"source" yaml:"source"`
	Target      TableRef    `json:"target" yaml:"target"`
	SourceCol   string      `json:"source_col" yaml:"source_col"`
	TargetCol   string      `json:"target_col" yaml:"target_col"`
	Cardinality Cardinality `json:"cardinality" yaml:"cardinality"`
	JoinType    JoinType    `json:"join_type" yaml:"join_type"`
	Active      bool        `json:"active" yaml:"active"`
}

// ERDModel is the directed multigraph of declared joins. The graph may
// be disconnected; unreachable tables fail planning rather than produce
// a cartesian product.
type ERDModel struct {
	Edges []JoinEdge `json:"edges" yaml:"edges"`
}

// ActiveEdgesFrom returns the usable edges touching the given table, in
// declaration order. Edges are traversable in both directions.
func (m *ERDModel) ActiveEdgesFrom(table string) []JoinEdge {
	var out []JoinEdge
	for _, e := range m.Edges {
		if !e.Active {
			continue
		}
		if e.Source.String() == table || e.Target.String() == table {
			out = append(out, e)
		}
	}
	return out
}
