package engine

import (
	"context"
	"testing"

	"github.com/veldt-labs/codegraph/pkg/config"
	"github.com/veldt-labs/codegraph/pkg/source"
)

func TestAnalyzeProducesAllSections(t *testing.T) {
	src := source.NewMemory(map[string][]byte{
		"app.py": []byte(`import util

def main(x):
    value = helper(x)
    return value

def helper(x):
    return x + 1
`),
		"util.py": []byte(`def fmt(x):
    return x
`),
	})

	e := New()
	report, err := e.Analyze(context.Background(), []string{"app.py", "util.py"}, src)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.Flow == nil || len(report.Flow.Functions) != 3 {
		t.Errorf("expected flow section with 3 functions, got %+v", report.Flow)
	}
	if report.Clones == nil {
		t.Error("expected clones section")
	}
	if report.Deps == nil || len(report.Deps.Modules) != 2 {
		t.Errorf("expected deps section with 2 modules, got %+v", report.Deps)
	}
	if report.Deps != nil && len(report.Deps.Edges) != 1 {
		t.Errorf("expected app.py -> util.py edge, got %v", report.Deps.Edges)
	}
}

func TestInvalidConfigFailsRun(t *testing.T) {
	cfg := config.Default()
	cfg.Clones.WindowSize = 0

	e := New(WithConfig(cfg))
	_, err := e.Analyze(context.Background(), nil, source.NewMemory(nil))
	if err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestCancelledContextStopsPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New()
	_, err := e.Analyze(ctx, []string{"a.py"}, source.NewMemory(map[string][]byte{
		"a.py": []byte("x = 1\n"),
	}))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
