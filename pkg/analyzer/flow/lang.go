package flow

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// Statement classification per language. These sets drive the recursive
// descent CFG builder; anything not classified becomes a plain sequential
// statement.

func isBranch(node *sitter.Node, lang parser.Language) bool {
	switch lang {
	case parser.LangRust:
		return node.Type() == "if_expression"
	case parser.LangRuby:
		t := node.Type()
		return t == "if" || t == "unless" || t == "if_modifier" || t == "unless_modifier"
	default:
		return node.Type() == "if_statement"
	}
}

func isLoop(node *sitter.Node, lang parser.Language) bool {
	t := node.Type()
	switch lang {
	case parser.LangGo:
		return t == "for_statement"
	case parser.LangRust:
		return t == "for_expression" || t == "while_expression" || t == "loop_expression"
	case parser.LangPython:
		return t == "for_statement" || t == "while_statement"
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return t == "for_statement" || t == "while_statement" || t == "do_statement" ||
			t == "for_in_statement"
	case parser.LangJava:
		return t == "for_statement" || t == "while_statement" || t == "do_statement" ||
			t == "enhanced_for_statement"
	case parser.LangC, parser.LangCPP:
		return t == "for_statement" || t == "while_statement" || t == "do_statement"
	case parser.LangRuby:
		return t == "while" || t == "until" || t == "for"
	default:
		return false
	}
}

// isCollectionLoop reports whether the loop iterates a finite collection
// (for-each / range style). These never feed the infinite-loop heuristic.
func isCollectionLoop(node *sitter.Node, lang parser.Language) bool {
	t := node.Type()
	switch lang {
	case parser.LangGo:
		// for x := range xs has a range_clause child, no condition field
		for i := range int(node.NamedChildCount()) {
			if node.NamedChild(i).Type() == "range_clause" {
				return true
			}
		}
		return false
	case parser.LangRust:
		return t == "for_expression"
	case parser.LangPython:
		return t == "for_statement"
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return t == "for_in_statement"
	case parser.LangJava:
		return t == "enhanced_for_statement"
	case parser.LangRuby:
		return t == "for"
	default:
		return false
	}
}

func isReturn(node *sitter.Node, lang parser.Language) bool {
	t := node.Type()
	if lang == parser.LangRust {
		return t == "return_expression"
	}
	if lang == parser.LangRuby {
		return t == "return"
	}
	return t == "return_statement"
}

// isRaise reports whether the statement unconditionally raises/throws.
// Go panics and Ruby raises are ordinary calls, matched by callee name.
func isRaise(node *sitter.Node, source []byte, lang parser.Language) bool {
	t := node.Type()
	switch lang {
	case parser.LangPython:
		return t == "raise_statement"
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return t == "throw_statement"
	case parser.LangJava:
		return t == "throw_statement"
	case parser.LangCPP:
		return t == "throw_statement"
	case parser.LangGo:
		if t == "expression_statement" {
			text := parser.GetNodeText(node, source)
			return strings.HasPrefix(strings.TrimSpace(text), "panic(")
		}
		return false
	case parser.LangRuby:
		if t == "call" || t == "command" {
			text := parser.GetNodeText(node, source)
			return strings.HasPrefix(strings.TrimSpace(text), "raise")
		}
		return false
	default:
		return false
	}
}

func isTry(node *sitter.Node, lang parser.Language) bool {
	t := node.Type()
	switch lang {
	case parser.LangPython, parser.LangTypeScript, parser.LangJavaScript,
		parser.LangTSX, parser.LangJava, parser.LangCPP:
		return t == "try_statement"
	case parser.LangRuby:
		return t == "begin"
	default:
		return false
	}
}

// handlerClauses returns the exception handler nodes of a try construct.
func handlerClauses(node *sitter.Node, lang parser.Language) []*sitter.Node {
	var want string
	switch lang {
	case parser.LangPython:
		want = "except_clause"
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX, parser.LangJava:
		want = "catch_clause"
	case parser.LangCPP:
		want = "catch_clause"
	case parser.LangRuby:
		want = "rescue"
	default:
		return nil
	}

	var handlers []*sitter.Node
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		if child.Type() == want {
			handlers = append(handlers, child)
		}
	}
	return handlers
}

// tryStatements returns the statements of the protected body.
func tryStatements(node *sitter.Node, lang parser.Language) []*sitter.Node {
	if body := node.ChildByFieldName("body"); body != nil {
		return blockStatements(body)
	}
	// Ruby begin blocks keep statements as direct children alongside
	// rescue/ensure/else clauses.
	var stmts []*sitter.Node
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		switch child.Type() {
		case "rescue", "ensure", "else":
			continue
		}
		stmts = append(stmts, child)
	}
	return stmts
}

// handlerStatements returns the statements of one handler clause.
func handlerStatements(handler *sitter.Node, lang parser.Language) []*sitter.Node {
	if body := handler.ChildByFieldName("body"); body != nil {
		return blockStatements(body)
	}
	for i := range int(handler.NamedChildCount()) {
		child := handler.NamedChild(i)
		switch child.Type() {
		case "block", "statement_block", "compound_statement", "then":
			return blockStatements(child)
		}
	}
	return nil
}

// finalizerStatements returns the statements of a finally/ensure clause.
func finalizerStatements(node *sitter.Node, lang parser.Language) []*sitter.Node {
	if fin := node.ChildByFieldName("finalizer"); fin != nil {
		return finalizerBody(fin)
	}
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		switch child.Type() {
		case "finally_clause", "ensure":
			return finalizerBody(child)
		}
	}
	return nil
}

func finalizerBody(clause *sitter.Node) []*sitter.Node {
	for i := range int(clause.NamedChildCount()) {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "block", "statement_block", "compound_statement":
			return blockStatements(child)
		}
	}
	// Ruby ensure keeps statements as direct children
	var stmts []*sitter.Node
	for i := range int(clause.NamedChildCount()) {
		stmts = append(stmts, clause.NamedChild(i))
	}
	return stmts
}

func isBreak(node *sitter.Node, lang parser.Language) bool {
	t := node.Type()
	if lang == parser.LangRust {
		return t == "break_expression"
	}
	if lang == parser.LangRuby {
		return t == "break"
	}
	return t == "break_statement"
}

func isContinue(node *sitter.Node, lang parser.Language) bool {
	t := node.Type()
	if lang == parser.LangRust {
		return t == "continue_expression"
	}
	if lang == parser.LangRuby {
		return t == "next"
	}
	return t == "continue_statement"
}

// blockStatements returns the statement children of a block-like node.
// When the node is not a recognized block wrapper, it is treated as a
// single-statement body.
func blockStatements(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "block", "statement_block", "compound_statement", "body_statement",
		"then", "else", "do_block", "do":
		stmts := make([]*sitter.Node, 0, node.NamedChildCount())
		for i := range int(node.NamedChildCount()) {
			stmts = append(stmts, node.NamedChild(i))
		}
		return stmts
	default:
		return []*sitter.Node{node}
	}
}

// branchArms extracts (condition, consequence, alternative) from a branch
// node. Any of them may be nil.
func branchArms(node *sitter.Node) (cond, cons, alt *sitter.Node) {
	cond = node.ChildByFieldName("condition")
	cons = node.ChildByFieldName("consequence")
	if cons == nil {
		cons = node.ChildByFieldName("body")
	}
	alt = node.ChildByFieldName("alternative")
	if alt != nil {
		// if/else wrappers (else_clause, else) carry the real body as a child
		switch alt.Type() {
		case "else_clause", "else":
			if alt.NamedChildCount() > 0 {
				alt = alt.NamedChild(0)
			}
		}
	}
	return cond, cons, alt
}

// loopParts extracts (condition, body) from a loop node. Condition is nil
// for unconditional (`for {}`, `loop {}`) and collection loops.
func loopParts(node *sitter.Node) (cond, body *sitter.Node) {
	cond = node.ChildByFieldName("condition")
	body = node.ChildByFieldName("body")
	if body == nil {
		// Ruby while/until keep the body as the last named child
		if n := node.NamedChildCount(); n > 0 {
			last := node.NamedChild(int(n) - 1)
			if last != cond {
				body = last
			}
		}
	}
	return cond, body
}

// assignmentTargets returns the variable names written by a statement.
// Nested blocks are not descended into; the CFG builder visits them as
// separate nodes.
func assignmentTargets(node *sitter.Node, source []byte, lang parser.Language) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n *sitter.Node) {
		collectIdentifiers(n, source, func(name string) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		})
	}

	parser.Walk(node, source, func(n *sitter.Node, src []byte) bool {
		switch n.Type() {
		case "assignment_statement", "short_var_declaration", "assignment",
			"augmented_assignment", "assignment_expression",
			"augmented_assignment_expression", "operator_assignment",
			"compound_assignment_expr":
			if left := n.ChildByFieldName("left"); left != nil {
				add(left)
			}
		case "inc_statement", "dec_statement", "update_expression":
			if arg := n.ChildByFieldName("argument"); arg != nil {
				add(arg)
			} else if n.NamedChildCount() > 0 {
				add(n.NamedChild(0))
			}
		case "var_spec", "let_declaration", "variable_declarator", "init_declarator":
			if name := n.ChildByFieldName("name"); name != nil {
				add(name)
			} else if pat := n.ChildByFieldName("pattern"); pat != nil {
				add(pat)
			} else if decl := n.ChildByFieldName("declarator"); decl != nil {
				add(decl)
			}
		}
		return true
	})
	return names
}

// usedNames returns identifiers read by a node subtree.
func usedNames(node *sitter.Node, source []byte) []string {
	var names []string
	seen := make(map[string]bool)
	collectIdentifiers(node, source, func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	return names
}

func collectIdentifiers(node *sitter.Node, source []byte, emit func(string)) {
	parser.Walk(node, source, func(n *sitter.Node, src []byte) bool {
		if n.Type() == "identifier" {
			if name := parser.GetNodeText(n, src); name != "" {
				emit(name)
			}
		}
		return true
	})
}
