package clones

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// functionPrint is everything the structural and semantic detectors need
// to compare one function without revisiting its AST.
type functionPrint struct {
	file      string
	name      string
	startLine uint32
	endLine   uint32
	labels    []string
	tokens    []string
	vector    []float64
	fineKey   uint64
	coarseKey uint64
}

func (p functionPrint) lineCount() int { return int(p.endLine-p.startLine) + 1 }

// elidedLabels are node types dropped from the structural fingerprint so
// renamed identifiers and changed literal values compare equal.
var elidedLabels = map[string]bool{
	"identifier": true, "field_identifier": true, "property_identifier": true,
	"type_identifier": true, "shorthand_property_identifier": true,
	"string": true, "string_literal": true, "raw_string_literal": true,
	"interpreted_string_literal": true, "rune_literal": true,
	"char_literal": true, "character": true, "string_content": true,
	"number": true, "integer": true, "float": true, "int_literal": true,
	"float_literal": true, "integer_literal": true, "number_literal": true,
	"true": true, "false": true, "none": true, "nil": true, "null": true,
	"boolean": true, "comment": true, "line_comment": true, "block_comment": true,
}

// newFunctionPrint fingerprints one function: structural labels for the
// renamed-clone check, normalized tokens for the modified-clone check, a
// behavior vector for the semantic check, and the two bucket keys that
// bound candidate pairing.
func newFunctionPrint(fn parser.FunctionNode, result *parser.ParseResult) functionPrint {
	p := functionPrint{
		file:      result.Path,
		name:      fn.Name,
		startLine: fn.StartLine,
		endLine:   fn.EndLine,
	}
	p.labels = structuralLabels(fn.Node, result.Source)
	p.tokens = normalizeTokens(tokenize(parser.GetNodeText(fn.Node, result.Source)))
	p.vector = behaviorVector(fn, result.Source)

	shape := strings.Join(topLevelShape(fn.Body), "|")
	p.coarseKey = xxhash.Sum64String(shape)
	p.fineKey = xxhash.Sum64String(shape + "#" + strconv.Itoa(len(p.labels)/8))
	return p
}

// structuralLabels flattens the named AST nodes of a function into a
// label sequence with identifiers and literals elided.
func structuralLabels(node *sitter.Node, source []byte) []string {
	var labels []string
	parser.Walk(node, source, func(n *sitter.Node, _ []byte) bool {
		if elidedLabels[n.Type()] {
			return false
		}
		if n.IsNamed() {
			labels = append(labels, n.Type())
		}
		return true
	})
	return labels
}

// topLevelShape is the sorted set of statement types directly under the
// function body. Functions that disagree here are not candidates for the
// structural detectors.
func topLevelShape(body *sitter.Node) []string {
	if body == nil {
		return nil
	}
	set := make(map[string]bool)
	for i := range int(body.NamedChildCount()) {
		set[body.NamedChild(i).Type()] = true
	}
	shape := make([]string, 0, len(set))
	for t := range set {
		shape = append(shape, t)
	}
	sort.Strings(shape)
	return shape
}

// detectType2 compares structural fingerprints inside fine buckets. A
// pair whose fingerprint ratio clears the Type-2 floor is a renamed
// clone; bucket mates that fall short are forwarded as Type-3
// candidates.
func detectType2(prints []functionPrint, cfg Config) ([]CloneRecord, [][2]int) {
	buckets := make(map[uint64][]int)
	for i, p := range prints {
		buckets[p.fineKey] = append(buckets[p.fineKey], i)
	}

	var records []CloneRecord
	var nearMisses [][2]int
	for i := range prints {
		for _, j := range buckets[prints[i].fineKey] {
			if j <= i {
				continue
			}
			a, b := prints[i], prints[j]
			if !meetsMinLines(a, b, cfg) || len(a.labels) == 0 || len(b.labels) == 0 {
				continue
			}
			ratio := lcsRatio(a.labels, b.labels)
			if ratio >= cfg.Type2Similarity {
				records = append(records, pairRecord(Type2, a, b, ratio))
			} else {
				nearMisses = append(nearMisses, [2]int{i, j})
			}
		}
	}
	return records, nearMisses
}

// lcsRatio is the longest common subsequence length over the longer
// input: 1.0 means the fingerprints are identical.
func lcsRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(prev[len(b)]) / float64(longer)
}
