package flow

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// Resolver maps a callee name observed at a call site to a declared
// function in the analyzed scope. Stricter strategies (import-aware,
// receiver-typed) can be substituted without touching graph construction.
type Resolver interface {
	// Resolve returns the CallNode ID the callee name refers to, or
	// false when the call is external or dynamic.
	Resolve(callee string, callerFile string) (int, bool)
}

// ResolverFactory builds a Resolver over the declared function table.
type ResolverFactory func(nodes []CallNode) Resolver

// NewNameResolver is the default lexical resolver: it matches the last
// segment of the callee name against declared function names, preferring
// a declaration in the caller's own file.
func NewNameResolver(nodes []CallNode) Resolver {
	r := &nameResolver{nodes: nodes, byName: make(map[string][]int)}
	for _, n := range nodes {
		r.byName[n.Name] = append(r.byName[n.Name], n.ID)
	}
	return r
}

type nameResolver struct {
	nodes  []CallNode
	byName map[string][]int
}

func (r *nameResolver) Resolve(callee string, callerFile string) (int, bool) {
	name := lastNameSegment(callee)
	ids := r.byName[name]
	if len(ids) == 0 {
		return 0, false
	}
	for _, id := range ids {
		if r.nodes[id].File == callerFile {
			return id, true
		}
	}
	return ids[0], true
}

// lastNameSegment strips receiver/module qualifiers: obj.method -> method,
// Mod::fn -> fn.
func lastNameSegment(name string) string {
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

// declaredFunc is one function declaration plus the callee names its body
// contains, collected during the per-file phase.
type declaredFunc struct {
	name  string
	file  string
	line  uint32
	calls []string
}

// buildCallGraph assembles the cross-file call graph: one node per
// declaration, one edge per resolved call site. Recursion produces cycles,
// which are valid. Unresolved callees are recorded without edges.
func buildCallGraph(decls []declaredFunc, factory ResolverFactory) *CallGraph {
	sort.Slice(decls, func(i, j int) bool {
		if decls[i].file != decls[j].file {
			return decls[i].file < decls[j].file
		}
		if decls[i].line != decls[j].line {
			return decls[i].line < decls[j].line
		}
		return decls[i].name < decls[j].name
	})

	cg := &CallGraph{}
	for i, d := range decls {
		cg.Nodes = append(cg.Nodes, CallNode{ID: i, Name: d.name, File: d.file, Line: d.line})
	}

	resolver := factory(cg.Nodes)

	edgeSeen := make(map[[2]int]bool)
	unresolvedSeen := make(map[string]bool)
	for i, d := range decls {
		for _, callee := range d.calls {
			if target, ok := resolver.Resolve(callee, d.file); ok {
				key := [2]int{i, target}
				if !edgeSeen[key] {
					edgeSeen[key] = true
					cg.Edges = append(cg.Edges, CallEdge{From: i, To: target})
				}
				continue
			}
			key := d.file + ":" + d.name + ":" + callee
			if !unresolvedSeen[key] {
				unresolvedSeen[key] = true
				cg.Unresolved = append(cg.Unresolved, UnresolvedCall{
					Caller: d.name,
					Callee: callee,
					File:   d.file,
				})
			}
		}
	}

	sort.Slice(cg.Edges, func(i, j int) bool {
		if cg.Edges[i].From != cg.Edges[j].From {
			return cg.Edges[i].From < cg.Edges[j].From
		}
		return cg.Edges[i].To < cg.Edges[j].To
	})
	sort.Slice(cg.Unresolved, func(i, j int) bool {
		a, b := cg.Unresolved[i], cg.Unresolved[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Caller != b.Caller {
			return a.Caller < b.Caller
		}
		return a.Callee < b.Callee
	})

	return cg
}

// extractCallNames collects callee names from every call expression in a
// function body.
func extractCallNames(body *sitter.Node, source []byte) []string {
	if body == nil {
		return nil
	}

	var calls []string
	parser.Walk(body, source, func(node *sitter.Node, src []byte) bool {
		switch node.Type() {
		case "call_expression", "call", "method_invocation", "function_call", "method_call", "command":
			if fn := node.ChildByFieldName("function"); fn != nil {
				calls = append(calls, parser.GetNodeText(fn, src))
			} else if name := node.ChildByFieldName("name"); name != nil {
				calls = append(calls, parser.GetNodeText(name, src))
			} else if method := node.ChildByFieldName("method"); method != nil {
				calls = append(calls, parser.GetNodeText(method, src))
			}
		}
		return true
	})
	return calls
}
