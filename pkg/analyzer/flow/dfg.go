package flow

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// buildDFG derives the data flow graph for one function from its CFG:
// every variable write becomes a def node, every read a use node, and a
// def reaches a use when a forward CFG walk hits the use before any other
// def of the same variable. Function parameters are defs at the entry node.
func buildDFG(fn parser.FunctionNode, file string, res *cfgResult, source []byte, lang parser.Language) *DataFlowGraph {
	cfg := res.cfg
	n := len(cfg.Nodes)

	defsAt := make([][]string, n)
	usesAt := make([][]string, n)
	defsAt[cfg.Entry] = append(defsAt[cfg.Entry], fn.Parameters...)

	for id, stmt := range res.stmtAST {
		kind := cfg.Nodes[id].Kind
		switch kind {
		case NodeBranch, NodeLoopHeader:
			defsAt[id] = append(defsAt[id], headerDefs(stmt, source, lang)...)
			usesAt[id] = headerUses(stmt, source)
		default:
			defsAt[id] = append(defsAt[id], assignmentTargets(stmt, source, lang)...)
			usesAt[id] = statementUses(stmt, source)
		}
	}

	dfg := &DataFlowGraph{Function: fn.Name, File: file}

	// def/use node IDs keyed by (CFG node, variable)
	defIdx := make(map[int]map[string]int)
	useIdx := make(map[int]map[string]int)
	addNode := func(idx map[int]map[string]int, cfgID int, v string, kind DefUseKind) {
		if idx[cfgID] == nil {
			idx[cfgID] = make(map[string]int)
		}
		if _, ok := idx[cfgID][v]; ok {
			return
		}
		id := len(dfg.Nodes)
		dfg.Nodes = append(dfg.Nodes, DFGNode{
			ID:       id,
			Variable: v,
			Line:     cfg.Nodes[cfgID].Line,
			Kind:     kind,
		})
		idx[cfgID][v] = id
	}

	for id := 0; id < n; id++ {
		for _, v := range defsAt[id] {
			addNode(defIdx, id, v, DefSite)
		}
		for _, v := range usesAt[id] {
			addNode(useIdx, id, v, UseSite)
		}
	}

	defines := func(id int, v string) bool {
		_, ok := defIdx[id][v]
		return ok
	}

	succ := cfg.Successors(true)

	// reaching definitions: forward walk from each def, killed by any
	// redefinition of the same variable
	for cfgID, vars := range defIdx {
		for v, defNode := range vars {
			visited := roaring.New()
			queue := make([]int, 0, len(succ[cfgID]))
			for _, s := range succ[cfgID] {
				queue = append(queue, s)
			}
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				if visited.Contains(uint32(cur)) {
					continue
				}
				visited.Add(uint32(cur))

				if useNode, ok := useIdx[cur][v]; ok {
					dfg.Edges = append(dfg.Edges, DFGEdge{From: defNode, To: useNode})
				}
				if defines(cur, v) {
					continue // killed
				}
				queue = append(queue, succ[cur]...)
			}
		}
	}

	sort.Slice(dfg.Edges, func(i, j int) bool {
		if dfg.Edges[i].From != dfg.Edges[j].From {
			return dfg.Edges[i].From < dfg.Edges[j].From
		}
		return dfg.Edges[i].To < dfg.Edges[j].To
	})

	return dfg
}

// headerDefs returns variables written by a branch or loop header itself:
// loop targets (for x in xs) and scoped initializers (if x := f(); ...).
func headerDefs(stmt *sitter.Node, source []byte, lang parser.Language) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n *sitter.Node) {
		if n == nil {
			return
		}
		collectIdentifiers(n, source, func(name string) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		})
	}

	add(stmt.ChildByFieldName("left"))
	add(stmt.ChildByFieldName("pattern"))
	add(stmt.ChildByFieldName("name"))

	if init := stmt.ChildByFieldName("initializer"); init != nil {
		for _, v := range assignmentTargets(init, source, lang) {
			if !seen[v] {
				seen[v] = true
				names = append(names, v)
			}
		}
	}

	// Go range loops keep the targets inside a range_clause child
	for i := range int(stmt.NamedChildCount()) {
		child := stmt.NamedChild(i)
		if child.Type() == "range_clause" {
			add(child.ChildByFieldName("left"))
		}
	}

	return names
}

// headerUses returns identifiers read by a branch or loop header: the
// condition plus the iterated expression.
func headerUses(stmt *sitter.Node, source []byte) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n *sitter.Node) {
		if n == nil {
			return
		}
		collectIdentifiers(n, source, func(name string) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		})
	}

	add(stmt.ChildByFieldName("condition"))
	add(stmt.ChildByFieldName("right"))
	add(stmt.ChildByFieldName("value"))
	for i := range int(stmt.NamedChildCount()) {
		child := stmt.NamedChild(i)
		if child.Type() == "range_clause" {
			add(child.ChildByFieldName("right"))
		}
	}

	return names
}

// statementUses returns identifiers a simple statement reads. Bare targets
// of plain assignments are excluded by byte range, so `x = x + 1` still
// counts the right-hand x as a use.
func statementUses(stmt *sitter.Node, source []byte) []string {
	type span struct{ start, end uint32 }
	var skips []span

	parser.Walk(stmt, source, func(n *sitter.Node, src []byte) bool {
		switch n.Type() {
		case "assignment_statement", "short_var_declaration", "assignment",
			"assignment_expression":
			if left := n.ChildByFieldName("left"); left != nil && isBareTarget(left) {
				skips = append(skips, span{left.StartByte(), left.EndByte()})
			}
		case "var_spec", "let_declaration", "variable_declarator", "init_declarator":
			for _, field := range []string{"name", "pattern", "declarator"} {
				if t := n.ChildByFieldName(field); t != nil && isBareTarget(t) {
					skips = append(skips, span{t.StartByte(), t.EndByte()})
				}
			}
		}
		return true
	})

	skipped := func(n *sitter.Node) bool {
		for _, s := range skips {
			if n.StartByte() >= s.start && n.EndByte() <= s.end {
				return true
			}
		}
		return false
	}

	var names []string
	seen := make(map[string]bool)
	parser.Walk(stmt, source, func(n *sitter.Node, src []byte) bool {
		if n.Type() != "identifier" || skipped(n) {
			return true
		}
		if name := parser.GetNodeText(n, src); name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return true
	})
	return names
}

// isBareTarget reports whether an assignment target is plain identifiers
// only. Subscript or attribute targets (a[i] = v) read their components,
// so they stay counted as uses.
func isBareTarget(n *sitter.Node) bool {
	switch n.Type() {
	case "identifier":
		return true
	case "expression_list", "pattern_list", "tuple_pattern":
		for i := range int(n.NamedChildCount()) {
			if n.NamedChild(i).Type() != "identifier" {
				return false
			}
		}
		return true
	default:
		return false
	}
}
