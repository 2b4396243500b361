package clones

import (
	"context"
	"reflect"
	"testing"

	"github.com/veldt-labs/codegraph/pkg/source"
)

func detect(t *testing.T, files map[string]string, opts ...Option) *Result {
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

func clonesOfType(result *Result, ct CloneType) []CloneRecord {
	var out []CloneRecord
	for _, c := range result.Clones {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

const verbatimPair = `def first(values):
    total = 0
    count = 0
    for v in values:
        total = total + v
        count = count + 1
    return total

def second(values):
    total = 0
    count = 0
    for v in values:
        total = total + v
        count = count + 1
    return total
`

func TestType1VerbatimClone(t *testing.T) {
	result := detect(t, map[string]string{"main.py": verbatimPair}, WithMinLines(6, 6))

	if len(result.Clones) != 1 {
		t.Fatalf("expected exactly 1 record, got %d: %v", len(result.Clones), result.Clones)
	}
	c := result.Clones[0]
	if c.Type != Type1 {
		t.Errorf("verbatim copy should be Type 1, got %d", c.Type)
	}
	if c.Similarity != 1.0 {
		t.Errorf("Type 1 similarity must be 1.0, got %v", c.Similarity)
	}
	lenA := c.EndLineA - c.StartLineA
	lenB := c.EndLineB - c.StartLineB
	if lenA != lenB {
		t.Errorf("span lengths differ: %d vs %d", lenA, lenB)
	}
	if c.StartLineA >= c.StartLineB {
		t.Errorf("spans not canonically ordered: %d >= %d", c.StartLineA, c.StartLineB)
	}
}

func TestType1SingleEditBreaksMatch(t *testing.T) {
	edited := `def first(values):
    total = 0
    count = 0
    for v in values:
        total = total + v
        count = count + 1
    return total

def second(values):
    total = 0
    count = 0
    for v in values:
        total = total + v
        count = count + 2
    return total
`
	result := detect(t, map[string]string{"main.py": edited}, WithMinLines(6, 6))

	if got := clonesOfType(result, Type1); len(got) != 0 {
		t.Errorf("a one-character edit must break the exact match, got %v", got)
	}
}

func TestType1CrossFile(t *testing.T) {
	code := `def load(values):
    total = 0
    count = 0
    for v in values:
        total = total + v
        count = count + 1
    return total
`
	result := detect(t, map[string]string{"a.py": code, "b.py": code}, WithMinLines(6, 6))

	if len(result.Clones) != 1 {
		t.Fatalf("expected exactly 1 record, got %d: %v", len(result.Clones), result.Clones)
	}
	c := result.Clones[0]
	if c.Type != Type1 {
		t.Errorf("identical files should match as Type 1, got %d", c.Type)
	}
	if c.FileA != "a.py" || c.FileB != "b.py" {
		t.Errorf("files not canonically ordered: %s, %s", c.FileA, c.FileB)
	}
}

func TestType2RenameInvariance(t *testing.T) {
	result := detect(t, map[string]string{
		"main.py": `def alpha(a, b):
    total = a + b
    if total > 10:
        total = total - 1
    return total

def beta(x, y):
    result = x + y
    if result > 10:
        result = result - 1
    return result
`,
	}, WithMinLines(4, 4))

	if len(result.Clones) != 1 {
		t.Fatalf("expected exactly 1 record, got %d: %v", len(result.Clones), result.Clones)
	}
	c := result.Clones[0]
	if c.Type != Type2 {
		t.Errorf("consistently renamed copy should be Type 2, got %d", c.Type)
	}
	if c.Similarity != 1.0 {
		t.Errorf("rename-only copy should score 1.0, got %v", c.Similarity)
	}
}

func TestType3ModifiedClone(t *testing.T) {
	result := detect(t, map[string]string{
		"main.py": `def scan(items):
    total = 0
    for item in items:
        total = total + item
    return total

def scan_positive(items):
    total = 0
    count = 0
    for item in items:
        if item > 0:
            total = total + item
            count = count + 1
    return total / count
`,
	}, WithMinLines(5, 5))

	if len(result.Clones) != 1 {
		t.Fatalf("expected exactly 1 record, got %d: %v", len(result.Clones), result.Clones)
	}
	c := result.Clones[0]
	if c.Type != Type3 {
		t.Errorf("modified copy should be Type 3, got %d", c.Type)
	}
	if c.Similarity < 0.60 || c.Similarity >= 0.85 {
		t.Errorf("Type 3 similarity must sit in [0.60, 0.85), got %v", c.Similarity)
	}
}

const semanticPair = `def sum_for(items):
    total = 0
    for item in items:
        total = total + item
    return total

def sum_while(items):
    total = 0
    i = 0
    while i < len(items):
        total = total + items[i]
        i = i + 1
    return total
`

func TestType4SemanticClone(t *testing.T) {
	result := detect(t, map[string]string{"main.py": semanticPair}, WithMinLines(4, 4))

	if len(result.Clones) != 1 {
		t.Fatalf("expected exactly 1 record, got %d: %v", len(result.Clones), result.Clones)
	}
	c := result.Clones[0]
	if c.Type != Type4 {
		t.Errorf("behaviorally similar pair should be Type 4, got %d", c.Type)
	}
	if c.Similarity < 0.75 || c.Similarity > 1.0 {
		t.Errorf("Type 4 similarity out of range: %v", c.Similarity)
	}
}

func TestThresholdOverrides(t *testing.T) {
	files := map[string]string{"main.py": semanticPair}

	// the default floor reports the pair (TestType4SemanticClone); raising
	// it above the pair's score suppresses the record
	strict := detect(t, files, WithMinLines(4, 4), WithThresholds(0.85, 0.60, 0.95))
	if len(strict.Clones) != 0 {
		t.Errorf("raised behavior floor should suppress the pair, got %v", strict.Clones)
	}
}

func TestMinLinesGateSuppressesSmallClones(t *testing.T) {
	result := detect(t, map[string]string{
		"main.py": `def a(x):
    y = x + 1
    return y

def b(x):
    y = x + 1
    return y
`,
	})

	if len(result.Clones) != 0 {
		t.Errorf("functions below the span floor must not be reported, got %v", result.Clones)
	}
}

func TestDedupPrecedence(t *testing.T) {
	// a verbatim copy also matches structurally and behaviorally; it
	// must still surface exactly once, as Type 1
	result := detect(t, map[string]string{"main.py": verbatimPair}, WithMinLines(6, 6))

	if len(result.Clones) != 1 {
		t.Fatalf("expected 1 record after dedup, got %d: %v", len(result.Clones), result.Clones)
	}
	if result.Clones[0].Type != Type1 {
		t.Errorf("most specific type must win, got %d", result.Clones[0].Type)
	}
}

func TestParseFailureIsolation(t *testing.T) {
	result := detect(t, map[string]string{
		"good.py": `def ok(x):
    return x
`,
		"bad.xyz": "not a supported language",
	})

	found := false
	for _, d := range result.Diagnostics {
		if d.File == "bad.xyz" {
			found = true
		}
	}
	if !found {
		t.Error("expected a diagnostic for the unparseable file")
	}
}

func TestDeterministicRecords(t *testing.T) {
	files := map[string]string{
		"a.py": verbatimPair,
		"b.py": `def scan(items):
    total = 0
    for item in items:
        total = total + item
    return total
`,
	}

	first := detect(t, files, WithMinLines(5, 5))
	second := detect(t, files, WithMinLines(5, 5))

	if !reflect.DeepEqual(first.Clones, second.Clones) {
		t.Error("clone records differ between identical runs")
	}
}
