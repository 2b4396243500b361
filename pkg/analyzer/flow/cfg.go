package flow

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// pending is a dangling edge waiting for its destination node.
type pending struct {
	from int
	kind EdgeKind
}

// loopInfo captures what the infinite-loop heuristic needs about one loop.
type loopInfo struct {
	header     int
	cond       *sitter.Node
	bodyStart  int
	bodyEnd    int
	hasBreak   bool
	collection bool
	repeats    bool
}

// loopFrame is the builder's per-loop context for break/continue routing.
type loopFrame struct {
	breaks    []pending
	continues []pending
	info      *loopInfo
}

type termKind int

const (
	termNone termKind = iota
	termReturn
	termJump
)

// cfgResult is everything the builder produces for one function: the graph
// itself plus the AST mapping and loop metadata the downstream analyses
// consume.
type cfgResult struct {
	cfg            *ControlFlowGraph
	stmtAST        map[int]*sitter.Node
	loops          []*loopInfo
	sevHint        map[int]Severity
	handlerEntries []int
}

type cfgBuilder struct {
	cfg      *ControlFlowGraph
	lang     parser.Language
	source   []byte
	stmtAST  map[int]*sitter.Node
	sevHint  map[int]Severity
	loops    []*loopInfo
	loopStk  []*loopFrame
	handlers [][]int
	entries  []int
}

// buildCFG constructs the control flow graph for one function by recursive
// descent over its statement list. A synthetic entry node guarantees the
// single in-degree-0 entry; synthetic merge nodes join branch arms and act
// as loop latches so each loop that can repeat closes with exactly one
// loop-back edge.
//
// Unexpected AST shapes surface as an error; the caller skips just this
// function.
func buildCFG(fn parser.FunctionNode, file string, source []byte, lang parser.Language) (res *cfgResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("cfg construction failed for %s: %v", fn.Name, r)
		}
	}()

	b := &cfgBuilder{
		cfg: &ControlFlowGraph{
			Function: fn.Name,
			File:     file,
		},
		lang:    lang,
		source:  source,
		stmtAST: make(map[int]*sitter.Node),
		sevHint: make(map[int]Severity),
	}

	entry := b.newNode(NodeSequential, fn.StartLine, "entry")
	b.cfg.Entry = entry

	stmts := blockStatements(fn.Body)
	b.buildStmts(stmts, []pending{{entry, EdgeSequential}})

	return &cfgResult{
		cfg:            b.cfg,
		stmtAST:        b.stmtAST,
		loops:          b.loops,
		sevHint:        b.sevHint,
		handlerEntries: b.entries,
	}, nil
}

func (b *cfgBuilder) newNode(kind NodeKind, line uint32, text string) int {
	id := len(b.cfg.Nodes)
	b.cfg.Nodes = append(b.cfg.Nodes, CFGNode{ID: id, Kind: kind, Line: line, Text: text})
	return id
}

func (b *cfgBuilder) edge(from, to int, kind EdgeKind) {
	b.cfg.Edges = append(b.cfg.Edges, CFGEdge{From: from, To: to, Kind: kind})
}

func (b *cfgBuilder) connect(incoming []pending, to int) {
	for _, p := range incoming {
		b.edge(p.from, to, p.kind)
	}
}

// newStmtNode creates a node for a real statement, recording its AST node
// and wiring exception edges to any active handlers.
func (b *cfgBuilder) newStmtNode(kind NodeKind, stmt *sitter.Node) int {
	id := b.newNode(kind, stmt.StartPoint().Row+1, stmt.Type())
	b.stmtAST[id] = stmt
	if len(b.handlers) > 0 {
		for _, h := range b.handlers[len(b.handlers)-1] {
			b.edge(id, h, EdgeException)
		}
	}
	return id
}

func (b *cfgBuilder) topLoop() *loopFrame {
	if len(b.loopStk) == 0 {
		return nil
	}
	return b.loopStk[len(b.loopStk)-1]
}

func (b *cfgBuilder) buildStmts(stmts []*sitter.Node, incoming []pending) []pending {
	cur := incoming
	afterReturn := false
	for _, s := range stmts {
		primary, out, term := b.buildStmt(s, cur)
		if len(cur) == 0 && primary >= 0 {
			sev := SeverityWarning
			if afterReturn {
				sev = SeverityError
			}
			b.sevHint[primary] = sev
		}
		if term == termReturn {
			afterReturn = true
		}
		cur = out
	}
	return cur
}

// buildStmt builds the subgraph for one statement and returns its primary
// node ID, the dangling exits, and whether it terminates control flow.
func (b *cfgBuilder) buildStmt(stmt *sitter.Node, incoming []pending) (int, []pending, termKind) {
	// Rust nests control-flow expressions inside expression statements.
	if stmt.Type() == "expression_statement" && stmt.NamedChildCount() == 1 {
		inner := stmt.NamedChild(0)
		if isBranch(inner, b.lang) || isLoop(inner, b.lang) || isTry(inner, b.lang) {
			return b.buildStmt(inner, incoming)
		}
	}

	switch {
	case isBranch(stmt, b.lang):
		return b.buildBranch(stmt, incoming)

	case isLoop(stmt, b.lang):
		return b.buildLoop(stmt, incoming)

	case isTry(stmt, b.lang):
		return b.buildTry(stmt, incoming)

	case isReturn(stmt, b.lang) || isRaise(stmt, b.source, b.lang):
		id := b.newStmtNode(NodeReturn, stmt)
		b.connect(incoming, id)
		return id, nil, termReturn

	case isBreak(stmt, b.lang):
		id := b.newStmtNode(NodeSequential, stmt)
		b.connect(incoming, id)
		if l := b.topLoop(); l != nil {
			l.breaks = append(l.breaks, pending{id, EdgeSequential})
			l.info.hasBreak = true
		}
		return id, nil, termJump

	case isContinue(stmt, b.lang):
		id := b.newStmtNode(NodeSequential, stmt)
		b.connect(incoming, id)
		if l := b.topLoop(); l != nil {
			l.continues = append(l.continues, pending{id, EdgeSequential})
		}
		return id, nil, termJump

	default:
		id := b.newStmtNode(NodeSequential, stmt)
		b.connect(incoming, id)
		return id, []pending{{id, EdgeSequential}}, termNone
	}
}

// buildBranch forks true/false edges from a branch node and converges the
// surviving arms at a merge node.
func (b *cfgBuilder) buildBranch(stmt *sitter.Node, incoming []pending) (int, []pending, termKind) {
	_, cons, alt := branchArms(stmt)

	id := b.newStmtNode(NodeBranch, stmt)
	b.connect(incoming, id)

	trueExits := b.buildStmts(blockStatements(cons), []pending{{id, EdgeBranchTrue}})

	var falseExits []pending
	switch {
	case alt == nil:
		falseExits = []pending{{id, EdgeBranchFalse}}
	case isBranch(alt, b.lang):
		// else-if chain: the alternative is itself a branch
		_, out, _ := b.buildStmt(alt, []pending{{id, EdgeBranchFalse}})
		falseExits = out
	default:
		falseExits = b.buildStmts(blockStatements(alt), []pending{{id, EdgeBranchFalse}})
	}

	exits := append(trueExits, falseExits...)
	if len(exits) == 0 {
		// both arms terminate: whatever follows is dead on all paths
		return id, nil, termReturn
	}

	merge := b.newNode(NodeMerge, stmt.EndPoint().Row+1, "")
	b.connect(exits, merge)
	return id, []pending{{merge, EdgeSequential}}, termNone
}

// buildLoop creates a loop-header node and routes all body exits (normal
// fallthrough and continue statements) through a latch merge node, so the
// cycle closes with exactly one loop-back edge. A body that terminates on
// every path has no cycle to close: no latch, no loop-back edge.
func (b *cfgBuilder) buildLoop(stmt *sitter.Node, incoming []pending) (int, []pending, termKind) {
	cond, body := loopParts(stmt)

	header := b.newStmtNode(NodeLoopHeader, stmt)
	b.connect(incoming, header)

	info := &loopInfo{
		header:     header,
		cond:       cond,
		collection: isCollectionLoop(stmt, b.lang),
	}
	frame := &loopFrame{info: info}
	b.loopStk = append(b.loopStk, frame)

	info.bodyStart = len(b.cfg.Nodes)
	exits := b.buildStmts(blockStatements(body), []pending{{header, EdgeBranchTrue}})
	info.bodyEnd = len(b.cfg.Nodes)

	b.loopStk = b.loopStk[:len(b.loopStk)-1]
	b.loops = append(b.loops, info)

	if backExits := append(exits, frame.continues...); len(backExits) > 0 {
		latch := b.newNode(NodeMerge, stmt.EndPoint().Row+1, "")
		b.connect(backExits, latch)
		b.edge(latch, header, EdgeLoopBack)
		info.repeats = true
	}

	out := []pending{{header, EdgeBranchFalse}}
	out = append(out, frame.breaks...)
	return header, out, termNone
}

// buildTry builds the protected body with exception edges to each handler
// entry, then the handler bodies, then the finalizer over all exits.
func (b *cfgBuilder) buildTry(stmt *sitter.Node, incoming []pending) (int, []pending, termKind) {
	handlers := handlerClauses(stmt, b.lang)

	entries := make([]int, len(handlers))
	for i, h := range handlers {
		entries[i] = b.newNode(NodeHandler, h.StartPoint().Row+1, h.Type())
		b.entries = append(b.entries, entries[i])
	}

	b.handlers = append(b.handlers, entries)
	tryExits := b.buildStmts(tryStatements(stmt, b.lang), incoming)
	b.handlers = b.handlers[:len(b.handlers)-1]

	allExits := tryExits
	for i, h := range handlers {
		hExits := b.buildStmts(handlerStatements(h, b.lang), []pending{{entries[i], EdgeSequential}})
		allExits = append(allExits, hExits...)
	}

	if fin := finalizerStatements(stmt, b.lang); len(fin) > 0 {
		allExits = b.buildStmts(fin, allExits)
	}

	if len(allExits) == 0 {
		return -1, nil, termReturn
	}

	merge := b.newNode(NodeMerge, stmt.EndPoint().Row+1, "")
	b.connect(allExits, merge)
	return -1, []pending{{merge, EdgeSequential}}, termNone
}
