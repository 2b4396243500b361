package flow

import (
	"context"
	"reflect"
	"testing"

	"github.com/veldt-labs/codegraph/pkg/source"
)

func analyzeSnippet(t *testing.T, files map[string]string, opts ...Option) *Result {
	t.Helper()

	contents := make(map[string][]byte, len(files))
	paths := make([]string, 0, len(files))
	for path, code := range files {
		contents[path] = []byte(code)
		paths = append(paths, path)
	}

	a := New(opts...)
	defer a.Close()

	result, err := a.Analyze(context.Background(), paths, source.NewMemory(contents))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return result
}

func findFunction(t *testing.T, result *Result, name string) FunctionFlow {
	t.Helper()
	for _, fn := range result.Functions {
		if fn.Function == name {
			return fn
		}
	}
	t.Fatalf("function %q not found in result", name)
	return FunctionFlow{}
}

func findingsOfType(result *Result, ft FindingType) []Finding {
	var out []Finding
	for _, f := range result.Findings {
		if f.Type == ft {
			out = append(out, f)
		}
	}
	return out
}

func TestCFGSingleEntry(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def classify(n):
    if n < 0:
        sign = -1
    else:
        sign = 1
    total = 0
    while n > 0:
        total = total + sign
        n = n - 1
    return total
`,
	})

	fn := findFunction(t, result, "classify")
	cfg := fn.CFG

	inDeg := cfg.InDegrees()
	var roots []int
	for id, d := range inDeg {
		if d == 0 {
			roots = append(roots, id)
		}
	}
	if len(roots) != 1 || roots[0] != cfg.Entry {
		t.Errorf("expected entry %d to be the only in-degree-0 node, got roots %v", cfg.Entry, roots)
	}

	// every node is reachable from entry
	succ := cfg.Successors(true)
	visited := make([]bool, len(cfg.Nodes))
	queue := []int{cfg.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		queue = append(queue, succ[cur]...)
	}
	for id, ok := range visited {
		if !ok {
			t.Errorf("node %d (%s, line %d) not reachable from entry", id, cfg.Nodes[id].Kind, cfg.Nodes[id].Line)
		}
	}
}

func TestLoopContributesExactlyOneBackEdge(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def drain(queue):
    handled = 0
    while queue:
        queue = queue[1:]
        handled = handled + 1
    for item in queue:
        handled = handled + 1
    return handled
`,
	})

	fn := findFunction(t, result, "drain")

	backEdges := 0
	loopHeaders := 0
	for _, e := range fn.CFG.Edges {
		if e.Kind == EdgeLoopBack {
			backEdges++
		}
	}
	for _, n := range fn.CFG.Nodes {
		if n.Kind == NodeLoopHeader {
			loopHeaders++
		}
	}

	if loopHeaders != 2 {
		t.Fatalf("expected 2 loop headers, got %d", loopHeaders)
	}
	if backEdges != loopHeaders {
		t.Errorf("expected exactly one back-edge per loop: %d loops, %d back-edges", loopHeaders, backEdges)
	}
}

func TestLoopBodyReturningOnAllPathsHasNoBackEdge(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def first(xs):
    while xs:
        return xs[0]
    return None
`,
	})

	fn := findFunction(t, result, "first")
	cfg := fn.CFG

	// the body never falls through, so there is no cycle to close
	for _, e := range cfg.Edges {
		if e.Kind == EdgeLoopBack {
			t.Errorf("unexpected loop-back edge %+v", e)
		}
	}

	inDeg := cfg.InDegrees()
	var roots []int
	for id, d := range inDeg {
		if d == 0 {
			roots = append(roots, id)
		}
	}
	if len(roots) != 1 || roots[0] != cfg.Entry {
		t.Errorf("expected entry %d to be the only in-degree-0 node, got roots %v", cfg.Entry, roots)
	}

	succ := cfg.Successors(true)
	visited := make([]bool, len(cfg.Nodes))
	queue := []int{cfg.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		queue = append(queue, succ[cur]...)
	}
	for id, ok := range visited {
		if !ok {
			t.Errorf("node %d (%s, line %d) not reachable from entry", id, cfg.Nodes[id].Kind, cfg.Nodes[id].Line)
		}
	}
}

func TestContinueStillClosesTheLoop(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def sum_evens(xs):
    total = 0
    for x in xs:
        if x % 2:
            continue
        total = total + x
    return total
`,
	})

	fn := findFunction(t, result, "sum_evens")

	backEdges := 0
	for _, e := range fn.CFG.Edges {
		if e.Kind == EdgeLoopBack {
			backEdges++
		}
	}
	if backEdges != 1 {
		t.Errorf("expected exactly one back-edge, got %d", backEdges)
	}
}

func TestUnreachableAfterReturn(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def bail(x):
    return x
    cleanup = x + 1
    return cleanup
`,
	})

	unreachable := findingsOfType(result, FindingUnreachableCode)
	if len(unreachable) == 0 {
		t.Fatal("expected unreachable code findings after return")
	}
	for _, f := range unreachable {
		if f.Severity != SeverityError {
			t.Errorf("code after unconditional return should be severity error, got %s (line %d)", f.Severity, f.Line)
		}
		if f.Line < 3 {
			t.Errorf("unreachable finding at line %d precedes the return", f.Line)
		}
	}
}

func TestReachableCodeHasNoUnreachableFindings(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def tally(items):
    total = 0
    for item in items:
        if item > 0:
            total = total + item
    return total
`,
	})

	if got := findingsOfType(result, FindingUnreachableCode); len(got) != 0 {
		t.Errorf("expected no unreachable findings, got %v", got)
	}
}

func TestInfiniteLoopHeuristic(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{
			name: "condition variable never reassigned",
			code: `def spin(flag):
    count = 0
    while flag:
        count = count + 1
`,
			want: 1,
		},
		{
			name: "condition variable reassigned in body",
			code: `def count_down(n):
    while n > 0:
        n = n - 1
`,
			want: 0,
		},
		{
			name: "break statement exempts the loop",
			code: `def poll():
    while True:
        if ready():
            break
`,
			want: 0,
		},
		{
			name: "unconditional loop without break",
			code: `def forever():
    while True:
        log("tick")
`,
			want: 1,
		},
		{
			name: "body returning on all paths cannot repeat",
			code: `def first(flag):
    while flag:
        return 1
`,
			want: 0,
		},
		{
			name: "collection loops always terminate",
			code: `def walk(xs):
    for x in xs:
        log(x)
`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyzeSnippet(t, map[string]string{"main.py": tt.code})
			got := findingsOfType(result, FindingInfiniteLoop)
			if len(got) != tt.want {
				t.Errorf("expected %d infinite-loop findings, got %d: %v", tt.want, len(got), got)
			}
			for _, f := range got {
				if f.Confidence >= 1.0 {
					t.Errorf("heuristic finding must be advisory, got confidence %v", f.Confidence)
				}
			}
		})
	}
}

func TestInfiniteLoopHeuristicDisabled(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def spin(flag):
    while flag:
        pass
`,
	}, WithInfiniteLoopHeuristic(false))

	if got := findingsOfType(result, FindingInfiniteLoop); len(got) != 0 {
		t.Errorf("heuristic disabled but got findings: %v", got)
	}
}

func TestUnusedVariable(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def compute(a):
    unused = a * 2
    result = a + 1
    return result
`,
	})

	unused := findingsOfType(result, FindingUnusedVariable)
	var names []string
	for _, f := range unused {
		names = append(names, f.Variable)
	}
	if !reflect.DeepEqual(names, []string{"unused"}) {
		t.Errorf("expected unused variable [unused], got %v", names)
	}
}

func TestUseBeforeDefinition(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def late(a):
    total = a + bonus
    bonus = 2
    return total + bonus
`,
	})

	findings := findingsOfType(result, FindingUseBeforeDefine)
	if len(findings) != 1 {
		t.Fatalf("expected 1 use-before-definition finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Variable != "bonus" {
		t.Errorf("expected variable bonus, got %q", findings[0].Variable)
	}
	if findings[0].Severity != SeverityError {
		t.Errorf("use before definition should be an error, got %s", findings[0].Severity)
	}
}

func TestDefReachesUseAcrossBranch(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"main.py": `def pick(cond):
    value = 1
    if cond:
        value = 2
    return value
`,
	})

	// both defs of value reach the return on some path: neither is unused
	if got := findingsOfType(result, FindingUnusedVariable); len(got) != 0 {
		t.Errorf("expected no unused findings, got %v", got)
	}
}

func TestCallGraphResolution(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"app.py": `def helper(x):
    return x + 1

def main(x):
    y = helper(x)
    return publish(y)
`,
	})

	cg := result.CallGraph
	if len(cg.Nodes) != 2 {
		t.Fatalf("expected 2 call graph nodes, got %d", len(cg.Nodes))
	}

	byName := make(map[string]int)
	for _, n := range cg.Nodes {
		byName[n.Name] = n.ID
	}

	found := false
	for _, e := range cg.Edges {
		if e.From == byName["main"] && e.To == byName["helper"] {
			found = true
		}
	}
	if !found {
		t.Error("expected call edge main -> helper")
	}

	if len(cg.Unresolved) != 1 || cg.Unresolved[0].Callee != "publish" {
		t.Errorf("expected publish recorded as unresolved, got %v", cg.Unresolved)
	}
}

func TestRecursionIsNotAFinding(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"app.py": `def fact(n):
    if n <= 1:
        return 1
    return n * fact(n - 1)
`,
	})

	byName := make(map[string]int)
	for _, n := range result.CallGraph.Nodes {
		byName[n.Name] = n.ID
	}
	selfEdge := false
	for _, e := range result.CallGraph.Edges {
		if e.From == byName["fact"] && e.To == byName["fact"] {
			selfEdge = true
		}
	}
	if !selfEdge {
		t.Error("expected recursive self edge for fact")
	}
}

func TestParseFailureIsolation(t *testing.T) {
	result := analyzeSnippet(t, map[string]string{
		"good.py": `def ok(x):
    return x
`,
		"bad.xyz": "not a supported language",
	})

	if len(result.Functions) != 1 {
		t.Fatalf("expected the good file to be analyzed, got %d functions", len(result.Functions))
	}
	foundDiag := false
	for _, d := range result.Diagnostics {
		if d.File == "bad.xyz" {
			foundDiag = true
		}
	}
	if !foundDiag {
		t.Error("expected a file-level diagnostic for bad.xyz")
	}
}

func TestDeterministicFindings(t *testing.T) {
	files := map[string]string{
		"a.py": `def one(x):
    dead = 1
    return x
`,
		"b.py": `def two(flag):
    while flag:
        pass
`,
	}

	first := analyzeSnippet(t, files)
	second := analyzeSnippet(t, files)

	if !reflect.DeepEqual(first.Findings, second.Findings) {
		t.Error("findings differ between identical runs")
	}
	if !reflect.DeepEqual(first.CallGraph, second.CallGraph) {
		t.Error("call graphs differ between identical runs")
	}
}
