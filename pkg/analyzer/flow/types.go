package flow

// NodeKind classifies a control-flow graph node.
type NodeKind string

const (
	NodeSequential NodeKind = "sequential"
	NodeBranch     NodeKind = "branch"
	NodeLoopHeader NodeKind = "loop-header"
	NodeHandler    NodeKind = "exception-handler"
	NodeMerge      NodeKind = "merge"
	NodeReturn     NodeKind = "return"
)

// EdgeKind classifies a control-flow graph edge.
type EdgeKind string

const (
	EdgeSequential  EdgeKind = "sequential"
	EdgeBranchTrue  EdgeKind = "branch-true"
	EdgeBranchFalse EdgeKind = "branch-false"
	EdgeLoopBack    EdgeKind = "loop-back"
	EdgeException   EdgeKind = "exception"
)

// CFGNode is one statement (or synthetic join point) in a control flow
// graph. Nodes are index-based; edges reference node IDs.
type CFGNode struct {
	ID   int      `json:"id"`
	Kind NodeKind `json:"kind"`
	Line uint32   `json:"line"`
	Text string   `json:"text,omitempty"`
}

// CFGEdge is a directed control-flow edge between node IDs.
type CFGEdge struct {
	From int      `json:"from"`
	To   int      `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// ControlFlowGraph is a per-function CFG. Entry is the single node with
// in-degree zero; every loop construct contributes exactly one loop-back
// edge closing its cycle.
type ControlFlowGraph struct {
	Function string    `json:"function"`
	File     string    `json:"file"`
	Entry    int       `json:"entry"`
	Nodes    []CFGNode `json:"nodes"`
	Edges    []CFGEdge `json:"edges"`
}

// Successors returns adjacency lists for the graph. When exceptions is
// false, exception edges are excluded.
func (g *ControlFlowGraph) Successors(exceptions bool) [][]int {
	succ := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		if !exceptions && e.Kind == EdgeException {
			continue
		}
		succ[e.From] = append(succ[e.From], e.To)
	}
	return succ
}

// InDegrees returns the in-degree of every node.
func (g *ControlFlowGraph) InDegrees() []int {
	in := make([]int, len(g.Nodes))
	for _, e := range g.Edges {
		in[e.To]++
	}
	return in
}

// DefUseKind tags a data-flow node as a definition or a use site.
type DefUseKind string

const (
	DefSite DefUseKind = "def"
	UseSite DefUseKind = "use"
)

// DFGNode is a variable definition or use site.
type DFGNode struct {
	ID       int        `json:"id"`
	Variable string     `json:"variable"`
	Line     uint32     `json:"line"`
	Kind     DefUseKind `json:"kind"`
}

// DFGEdge is a "reaches" edge: the def at From reaches the use at To with
// no intervening redefinition on some path.
type DFGEdge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// DataFlowGraph is a per-function DFG.
type DataFlowGraph struct {
	Function string    `json:"function"`
	File     string    `json:"file"`
	Nodes    []DFGNode `json:"nodes"`
	Edges    []DFGEdge `json:"edges"`
}

// CallNode is a declared function or method in the analyzed scope.
type CallNode struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	File string `json:"file"`
	Line uint32 `json:"line"`
}

// CallEdge is a name-resolved call from one declared function to another.
type CallEdge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// UnresolvedCall is a call whose callee could not be resolved within the
// analyzed scope (external or dynamic). Recorded, never an edge.
type UnresolvedCall struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	File   string `json:"file"`
}

// CallGraph spans all analyzed files. Cycles are valid (recursion) and
// never reported as findings.
type CallGraph struct {
	Nodes      []CallNode       `json:"nodes"`
	Edges      []CallEdge       `json:"edges"`
	Unresolved []UnresolvedCall `json:"unresolved,omitempty"`
}

// FindingType identifies a flow analysis finding.
type FindingType string

const (
	FindingUnreachableCode FindingType = "unreachable_code"
	FindingInfiniteLoop    FindingType = "potential_infinite_loop"
	FindingUnusedVariable  FindingType = "unused_variable"
	FindingUseBeforeDefine FindingType = "use_before_definition"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one flow analysis result. Heuristic findings carry a
// confidence below 1.0 and are advisory, never certain.
type Finding struct {
	Type       FindingType `json:"type"`
	Severity   Severity    `json:"severity"`
	File       string      `json:"file"`
	Function   string      `json:"function"`
	Line       uint32      `json:"line"`
	Variable   string      `json:"variable,omitempty"`
	Message    string      `json:"message"`
	Confidence float64     `json:"confidence"`
}

// FunctionFlow groups the graphs built for one function.
type FunctionFlow struct {
	Function  string            `json:"function"`
	File      string            `json:"file"`
	StartLine uint32            `json:"start_line"`
	EndLine   uint32            `json:"end_line"`
	CFG       *ControlFlowGraph `json:"cfg"`
	DFG       *DataFlowGraph    `json:"dfg"`
}
