package deps

import (
	"context"
	"reflect"
	"testing"

	"github.com/veldt-labs/codegraph/pkg/source"
)

func analyze(t *testing.T, files map[string]string, opts ...Option) *Result {
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

func moduleID(t *testing.T, result *Result, path string) int {
	t.Helper()
	for _, m := range result.Modules {
		if m.Path == path {
			return m.ID
		}
	}
	t.Fatalf("module %q not found", path)
	return -1
}

func metricFor(t *testing.T, result *Result, path string) ModuleMetric {
	t.Helper()
	id := moduleID(t, result, path)
	for _, m := range result.Metrics {
		if m.Module == id {
			return m
		}
	}
	t.Fatalf("no metric for module %q", path)
	return ModuleMetric{}
}

func TestCycleDetection(t *testing.T) {
	result := analyze(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import c\n",
		"c.py": "import a\n",
	})

	if len(result.Cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(result.Cycles), result.Cycles)
	}
	want := []int{
		moduleID(t, result, "a.py"),
		moduleID(t, result, "b.py"),
		moduleID(t, result, "c.py"),
	}
	if !reflect.DeepEqual(result.Cycles[0].Members, want) {
		t.Errorf("cycle members = %v, want %v", result.Cycles[0].Members, want)
	}

	// every member imports one module and is imported by one
	for _, path := range []string{"a.py", "b.py", "c.py"} {
		m := metricFor(t, result, path)
		if m.FanIn != 1 || m.FanOut != 1 {
			t.Errorf("%s: fan-in %d fan-out %d, want 1/1", path, m.FanIn, m.FanOut)
		}
		if m.Instability != 0.5 {
			t.Errorf("%s: instability %v, want 0.5", path, m.Instability)
		}
	}
}

func TestCycleMembersFollowImportEdges(t *testing.T) {
	// a -> c -> b -> a: the traversal must follow the edges from the
	// smallest member, not just list members in ascending order
	result := analyze(t, map[string]string{
		"a.py": "import c\n",
		"b.py": "import a\n",
		"c.py": "import b\n",
	})

	if len(result.Cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(result.Cycles), result.Cycles)
	}
	want := []int{
		moduleID(t, result, "a.py"),
		moduleID(t, result, "c.py"),
		moduleID(t, result, "b.py"),
	}
	if !reflect.DeepEqual(result.Cycles[0].Members, want) {
		t.Errorf("cycle traversal = %v, want %v", result.Cycles[0].Members, want)
	}
}

func TestEdgeRemovalBreaksCycle(t *testing.T) {
	result := analyze(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import c\n",
		"c.py": "x = 1\n",
	})

	if len(result.Cycles) != 0 {
		t.Errorf("expected no cycles, got %v", result.Cycles)
	}
}

func TestSelfImportIsACycle(t *testing.T) {
	result := analyze(t, map[string]string{
		"a.py": "import a\n",
	})

	if len(result.Cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %v", len(result.Cycles), result.Cycles)
	}
	if !reflect.DeepEqual(result.Cycles[0].Members, []int{moduleID(t, result, "a.py")}) {
		t.Errorf("self-import cycle = %v", result.Cycles[0].Members)
	}

	// a self-import is not coupling
	m := metricFor(t, result, "a.py")
	if m.FanIn != 0 || m.FanOut != 0 || m.Instability != 0 {
		t.Errorf("self-import leaked into metrics: %+v", m)
	}
}

func TestIsolatedModuleInstabilityIsZero(t *testing.T) {
	result := analyze(t, map[string]string{
		"lonely.py": "x = 1\n",
	})

	m := metricFor(t, result, "lonely.py")
	if m.Instability != 0 {
		t.Errorf("isolated module instability = %v, want 0", m.Instability)
	}
}

func TestGodModuleFinding(t *testing.T) {
	result := analyze(t, map[string]string{
		"hub.py": "import a\nimport b\nimport c\n",
		"a.py":   "x = 1\n",
		"b.py":   "x = 1\n",
		"c.py":   "x = 1\n",
	}, WithGodModuleFanOut(2))

	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %v", len(result.Findings), result.Findings)
	}
	f := result.Findings[0]
	if f.Type != FindingGodModule || f.Module != "hub.py" {
		t.Errorf("unexpected finding: %+v", f)
	}
	if f.Confidence >= 1.0 {
		t.Errorf("god-module finding must be advisory, got confidence %v", f.Confidence)
	}
}

func TestExternalImportsRecorded(t *testing.T) {
	result := analyze(t, map[string]string{
		"main.py":   "import os\nimport helper\n",
		"helper.py": "x = 1\n",
	})

	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %v", result.Edges)
	}
	e := result.Edges[0]
	if e.From != moduleID(t, result, "main.py") || e.To != moduleID(t, result, "helper.py") {
		t.Errorf("unexpected edge %+v", e)
	}

	if len(result.Externals) != 1 || result.Externals[0].Import != "os" {
		t.Errorf("expected os recorded as external, got %v", result.Externals)
	}
}

func TestRelativeImportResolution(t *testing.T) {
	result := analyze(t, map[string]string{
		"pkg/app.js":  "import { util } from './util';\n",
		"pkg/util.js": "export const util = 1;\n",
	})

	if len(result.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %v", result.Edges)
	}
	e := result.Edges[0]
	if e.From != moduleID(t, result, "pkg/app.js") || e.To != moduleID(t, result, "pkg/util.js") {
		t.Errorf("unexpected edge %+v", e)
	}
}

func TestParseFailureIsolation(t *testing.T) {
	result := analyze(t, map[string]string{
		"good.py": "import os\n",
		"bad.xyz": "not a supported language",
	})

	if len(result.Modules) != 1 || result.Modules[0].Path != "good.py" {
		t.Fatalf("expected only good.py in the graph, got %v", result.Modules)
	}
	found := false
	for _, d := range result.Diagnostics {
		if d.File == "bad.xyz" {
			found = true
		}
	}
	if !found {
		t.Error("expected a diagnostic for bad.xyz")
	}
}

func TestDeterministicGraph(t *testing.T) {
	files := map[string]string{
		"a.py": "import b\nimport sys\n",
		"b.py": "import c\n",
		"c.py": "import a\n",
	}

	first := analyze(t, files)
	second := analyze(t, files)

	if !reflect.DeepEqual(first, second) {
		t.Error("dependency results differ between identical runs")
	}
}
