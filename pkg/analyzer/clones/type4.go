package clones

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/pkg/parser"
	"github.com/veldt-labs/codegraph/pkg/stats"
)

// Behavior vector dimensions. Two functions with proportionally similar
// counts across these dimensions behave alike regardless of how the code
// is arranged.
const (
	dimArithmetic = iota
	dimComparison
	dimLogical
	dimCalls
	dimAssignments
	dimBranches
	dimLoops
	dimReturns
	dimRaises
	dimIOCalls
	dimMapShape
	dimFilterShape
	dimReduceShape
	vectorDims
)

var branchNodeTypes = map[string]bool{
	"if_statement": true, "if_expression": true, "conditional_expression": true,
	"ternary_expression": true, "switch_statement": true, "match_expression": true,
	"expression_switch_statement": true, "case_statement": true,
	"if": true, "unless": true, "case": true,
}

var loopNodeTypes = map[string]bool{
	"for_statement": true, "while_statement": true, "for_expression": true,
	"while_expression": true, "loop_expression": true, "for_in_statement": true,
	"do_statement": true, "enhanced_for_statement": true,
	"while": true, "until": true, "for": true, "do_block": true,
}

var returnNodeTypes = map[string]bool{
	"return_statement": true, "return_expression": true, "return": true,
}

var raiseNodeTypes = map[string]bool{
	"raise_statement": true, "throw_statement": true, "throw_expression": true,
	"raise": true,
}

var assignNodeTypes = map[string]bool{
	"assignment": true, "assignment_statement": true, "assignment_expression": true,
	"short_var_declaration": true, "let_declaration": true,
	"augmented_assignment": true, "compound_assignment_expr": true,
	"operator_assignment": true, "update_expression": true,
}

var callNodeTypes = map[string]bool{
	"call_expression": true, "call": true, "method_invocation": true,
	"function_call": true, "method_call": true, "command": true,
}

var accumNodeTypes = map[string]bool{
	"augmented_assignment": true, "compound_assignment_expr": true,
	"operator_assignment": true, "update_expression": true,
}

var appendCallNames = map[string]bool{
	"append": true, "push": true, "push_back": true, "add": true,
	"insert": true, "extend": true, "concat": true,
}

var ioCallPrefixes = []string{
	"print", "log", "read", "write", "open", "fetch", "send",
	"exec", "put", "input", "scan", "query",
}

// behaviorVector profiles what a function does: the mix of operations,
// control categories, and collection-processing shapes in its body.
func behaviorVector(fn parser.FunctionNode, source []byte) []float64 {
	vec := make([]float64, vectorDims)
	root := fn.Body
	if root == nil {
		root = fn.Node
	}

	parser.Walk(root, source, func(n *sitter.Node, src []byte) bool {
		t := n.Type()
		switch {
		case branchNodeTypes[t]:
			vec[dimBranches]++
		case loopNodeTypes[t]:
			vec[dimLoops]++
			classifyLoopShape(n, src, vec)
		case returnNodeTypes[t]:
			vec[dimReturns]++
		case raiseNodeTypes[t]:
			vec[dimRaises]++
		case assignNodeTypes[t]:
			vec[dimAssignments]++
		case callNodeTypes[t]:
			vec[dimCalls]++
			name := strings.ToLower(lastSegment(calleeName(n, src)))
			if name == "panic" {
				vec[dimRaises]++
			}
			if isIOCall(name) {
				vec[dimIOCalls]++
			}
		case t == "comparison_operator":
			vec[dimComparison]++
		case t == "boolean_operator" || t == "not_operator":
			vec[dimLogical]++
		case t == "binary_expression" || t == "binary_operator":
			classifyOperator(n, src, vec)
		}
		return true
	})
	return vec
}

// classifyLoopShape looks inside a loop body for the three common
// comprehension shapes: building a collection, building it behind a
// condition, and folding into an accumulator.
func classifyLoopShape(loop *sitter.Node, source []byte, vec []float64) {
	hasAppend, hasGuard, hasAccum := false, false, false
	parser.Walk(loop, source, func(n *sitter.Node, src []byte) bool {
		t := n.Type()
		if branchNodeTypes[t] {
			hasGuard = true
		}
		if callNodeTypes[t] {
			if appendCallNames[strings.ToLower(lastSegment(calleeName(n, src)))] {
				hasAppend = true
			}
		}
		if accumNodeTypes[t] || isSelfReferentialAssign(n, src) {
			hasAccum = true
		}
		return true
	})

	switch {
	case hasAppend && hasGuard:
		vec[dimFilterShape]++
	case hasAppend:
		vec[dimMapShape]++
	}
	if hasAccum {
		vec[dimReduceShape]++
	}
}

// isSelfReferentialAssign reports whether a plain assignment folds a
// variable into itself, the accumulator pattern `x = x op e`.
func isSelfReferentialAssign(n *sitter.Node, source []byte) bool {
	switch n.Type() {
	case "assignment", "assignment_statement", "assignment_expression":
	default:
		return false
	}
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return false
	}
	target := parser.GetNodeText(left, source)
	found := false
	parser.Walk(right, source, func(c *sitter.Node, src []byte) bool {
		if c.Type() == "identifier" && parser.GetNodeText(c, src) == target {
			found = true
			return false
		}
		return true
	})
	return found
}

func classifyOperator(n *sitter.Node, source []byte, vec []float64) {
	op := parser.GetNodeText(n.ChildByFieldName("operator"), source)
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "===", "!==", "<=>":
		vec[dimComparison]++
	case "&&", "||", "and", "or":
		vec[dimLogical]++
	default:
		vec[dimArithmetic]++
	}
}

func calleeName(n *sitter.Node, source []byte) string {
	for _, field := range []string{"function", "name", "method"} {
		if c := n.ChildByFieldName(field); c != nil {
			return parser.GetNodeText(c, source)
		}
	}
	return ""
}

// lastSegment strips receiver and module qualifiers from a callee name.
func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

func isIOCall(name string) bool {
	for _, p := range ioCallPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// detectType4 compares behavior vectors across every qualifying pair,
// independent of structure or text. Records are advisory: cosine
// similarity of operation profiles suggests, but cannot prove,
// equivalent behavior.
func detectType4(prints []functionPrint, cfg Config) []CloneRecord {
	var records []CloneRecord
	for i := range prints {
		for j := i + 1; j < len(prints); j++ {
			a, b := prints[i], prints[j]
			if !meetsMinLines(a, b, cfg) {
				continue
			}
			cos := stats.Cosine(a.vector, b.vector)
			if cos >= cfg.Type4Similarity {
				records = append(records, pairRecord(Type4, a, b, cos))
			}
		}
	}
	return records
}
