// Package deps builds the cross-file dependency graph from import
// statements and derives cycles, coupling metrics, and god-module
// findings from it.
package deps

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/veldt-labs/codegraph/internal/fileproc"
	"github.com/veldt-labs/codegraph/pkg/analyzer"
	"github.com/veldt-labs/codegraph/pkg/config"
	"github.com/veldt-labs/codegraph/pkg/parser"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// godModuleConfidence grades the fan-out heuristic: a wide module is
// usually, not always, a design problem.
const godModuleConfidence = 0.8

// Analyzer builds module dependency graphs for a file set.
type Analyzer struct {
	godModuleFanOut int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithConfig applies thresholds from the loaded configuration.
func WithConfig(c config.DepsConfig) Option {
	return func(a *Analyzer) {
		a.godModuleFanOut = c.GodModuleFanOut
	}
}

// WithGodModuleFanOut overrides the fan-out ceiling.
func WithGodModuleFanOut(n int) Option {
	return func(a *Analyzer) {
		a.godModuleFanOut = n
	}
}

// New creates a new dependency analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{godModuleFanOut: 10}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compile-time check that Analyzer implements SourceFileAnalyzer.
var _ analyzer.SourceFileAnalyzer[*Result] = (*Analyzer)(nil)

// ContentSource is an alias for analyzer.ContentSource.
type ContentSource = analyzer.ContentSource

// Result is the dependency analysis of a file set.
type Result struct {
	Modules     []Module              `json:"modules"`
	Edges       []Edge                `json:"edges"`
	Externals   []ExternalImport      `json:"externals,omitempty"`
	Cycles      []Cycle               `json:"cycles,omitempty"`
	Metrics     []ModuleMetric        `json:"metrics"`
	Findings    []Finding             `json:"findings,omitempty"`
	Diagnostics []analyzer.Diagnostic `json:"diagnostics,omitempty"`
}

// fileDeps is the per-file phase output: the import paths one file
// declares.
type fileDeps struct {
	path    string
	imports []string
}

// Analyze extracts imports from every file in parallel, then resolves
// them against the file set in a single-threaded reduction. Imports that
// resolve to an analyzed file become edges; the rest are recorded as
// externals. A file that fails to parse is skipped with a diagnostic.
func (a *Analyzer) Analyze(ctx context.Context, files []string, src ContentSource) (*Result, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}
	var onProgress fileproc.ProgressFunc
	if tracker != nil {
		onProgress = func(path string) { tracker.Tick(path) }
	}

	perFile, errs := fileproc.MapFilesWithProgress(ctx, files, func(psr *parser.Parser, path string) (fileDeps, error) {
		content, err := src.Read(path)
		if err != nil {
			return fileDeps{}, err
		}
		lang := parser.DetectLanguage(path)
		if lang == parser.LangUnknown {
			return fileDeps{}, fmt.Errorf("unsupported language")
		}
		result, err := psr.Parse(content, lang, path)
		if err != nil {
			return fileDeps{}, err
		}
		return fileDeps{path: path, imports: extractImports(result)}, nil
	}, onProgress)

	sort.Slice(perFile, func(i, j int) bool { return perFile[i].path < perFile[j].path })

	out := &Result{}
	for i, fd := range perFile {
		out.Modules = append(out.Modules, Module{ID: i, Path: fd.path})
	}

	idx := newModuleIndex(out.Modules)
	edgeSeen := make(map[[2]int]bool)
	extSeen := make(map[string]bool)
	for i, fd := range perFile {
		for _, imp := range fd.imports {
			if to, ok := idx.resolve(imp, fd.path); ok {
				key := [2]int{i, to}
				if !edgeSeen[key] {
					edgeSeen[key] = true
					out.Edges = append(out.Edges, Edge{From: i, To: to})
				}
				continue
			}
			key := fmt.Sprintf("%d:%s", i, imp)
			if !extSeen[key] {
				extSeen[key] = true
				out.Externals = append(out.Externals, ExternalImport{Module: i, Import: imp})
			}
		}
	}

	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].From != out.Edges[j].From {
			return out.Edges[i].From < out.Edges[j].From
		}
		return out.Edges[i].To < out.Edges[j].To
	})
	sort.Slice(out.Externals, func(i, j int) bool {
		if out.Externals[i].Module != out.Externals[j].Module {
			return out.Externals[i].Module < out.Externals[j].Module
		}
		return out.Externals[i].Import < out.Externals[j].Import
	})

	out.Cycles = detectCycles(len(out.Modules), out.Edges)
	out.Metrics = computeMetrics(len(out.Modules), out.Edges)
	out.Findings = a.godModuleFindings(out.Modules, out.Metrics)

	if errs != nil {
		for _, pe := range errs.Errors {
			if errors.Is(pe.Err, context.Canceled) || errors.Is(pe.Err, context.DeadlineExceeded) {
				continue
			}
			out.Diagnostics = append(out.Diagnostics, analyzer.Diagnostic{
				File:    pe.Path,
				Stage:   analyzer.StageParse,
				Message: pe.Err.Error(),
			})
		}
	}
	sort.Slice(out.Diagnostics, func(i, j int) bool {
		return out.Diagnostics[i].File < out.Diagnostics[j].File
	})

	return out, nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}

// detectCycles finds circular dependencies: Tarjan SCCs of size two or
// more, plus self-imports, which gonum's simple graphs cannot carry and
// are scanned separately.
func detectCycles(n int, edges []Edge) []Cycle {
	var cycles []Cycle

	g := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range edges {
		if e.From == e.To {
			cycles = append(cycles, Cycle{Members: []int{e.From}})
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(int64(e.From)), T: simple.Node(int64(e.To))})
	}

	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		in := make(map[int]bool, len(scc))
		start := int(scc[0].ID())
		for _, node := range scc {
			id := int(node.ID())
			in[id] = true
			if id < start {
				start = id
			}
		}
		cycles = append(cycles, Cycle{Members: traverseCycle(start, in, edges)})
	}

	sort.Slice(cycles, func(i, j int) bool {
		a, b := cycles[i].Members, cycles[j].Members
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return len(a) < len(b)
	})
	return cycles
}

// traverseCycle orders the members of one strongly connected component as
// a depth-first walk over its import edges, starting from the smallest
// module ID and taking the smallest unvisited successor first. An SCC can
// interleave many elementary cycles, so this fixes one deterministic
// traversal among them.
func traverseCycle(start int, members map[int]bool, edges []Edge) []int {
	succ := make(map[int][]int, len(members))
	for _, e := range edges {
		if e.From != e.To && members[e.From] && members[e.To] {
			succ[e.From] = append(succ[e.From], e.To)
		}
	}
	for _, s := range succ {
		sort.Ints(s)
	}

	order := make([]int, 0, len(members))
	visited := make(map[int]bool, len(members))
	var walk func(int)
	walk = func(id int) {
		visited[id] = true
		order = append(order, id)
		for _, next := range succ[id] {
			if !visited[next] {
				walk(next)
			}
		}
	}
	walk(start)
	return order
}

// computeMetrics derives fan-in, fan-out, and instability per module.
func computeMetrics(n int, edges []Edge) []ModuleMetric {
	fanIn := make([]int, n)
	fanOut := make([]int, n)
	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		fanOut[e.From]++
		fanIn[e.To]++
	}

	metrics := make([]ModuleMetric, n)
	for i := 0; i < n; i++ {
		m := ModuleMetric{Module: i, FanIn: fanIn[i], FanOut: fanOut[i]}
		if total := fanIn[i] + fanOut[i]; total > 0 {
			m.Instability = float64(fanOut[i]) / float64(total)
		}
		metrics[i] = m
	}
	return metrics
}

func (a *Analyzer) godModuleFindings(modules []Module, metrics []ModuleMetric) []Finding {
	var findings []Finding
	for _, m := range metrics {
		if m.FanOut <= a.godModuleFanOut {
			continue
		}
		findings = append(findings, Finding{
			Type:   FindingGodModule,
			Module: modules[m.Module].Path,
			Message: fmt.Sprintf("module depends on %d project modules (threshold %d)",
				m.FanOut, a.godModuleFanOut),
			Confidence: godModuleConfidence,
		})
	}
	return findings
}

// moduleIndex resolves import paths against the analyzed file set.
type moduleIndex struct {
	byStem map[string][]int
	stems  []string
}

// newModuleIndex indexes modules by their extension-stripped paths.
func newModuleIndex(modules []Module) *moduleIndex {
	idx := &moduleIndex{byStem: make(map[string][]int, len(modules))}
	for _, m := range modules {
		s := stem(m.Path)
		if len(idx.byStem[s]) == 0 {
			idx.stems = append(idx.stems, s)
		}
		idx.byStem[s] = append(idx.byStem[s], m.ID)
	}
	sort.Strings(idx.stems)
	return idx
}

// resolve maps an import path to an analyzed module: first by exact
// stem, then by path suffix, trying the raw form, the dot-separated form
// flattened to slashes, and relative imports joined against the
// importing file. Ties break to the lexicographically smallest path.
func (idx *moduleIndex) resolve(imp, fromFile string) (int, bool) {
	imp = strings.TrimSpace(imp)
	if imp == "" {
		return 0, false
	}

	keys := []string{imp}
	if strings.HasPrefix(imp, ".") && !strings.HasPrefix(imp, "./") && !strings.HasPrefix(imp, "../") {
		// python relative: .sibling, ..parent.mod
		trimmed := strings.TrimLeft(imp, ".")
		keys = append(keys, strings.ReplaceAll(trimmed, ".", "/"))
	} else if strings.Contains(imp, ".") && !strings.Contains(imp, "/") {
		keys = append(keys, strings.ReplaceAll(imp, ".", "/"))
	}
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		keys = append(keys, path.Join(path.Dir(fromFile), imp))
	}

	for _, key := range keys {
		key = stem(strings.TrimPrefix(key, "./"))
		if key == "" {
			continue
		}
		if ids := idx.byStem[key]; len(ids) > 0 {
			return ids[0], true
		}
		for _, s := range idx.stems {
			if strings.HasSuffix(s, "/"+key) {
				return idx.byStem[s][0], true
			}
		}
	}
	return 0, false
}

// stem strips the file extension from a path.
func stem(p string) string {
	if idx := strings.LastIndex(p, "."); idx > strings.LastIndex(p, "/") {
		return p[:idx]
	}
	return p
}

// extractImports collects import targets from one parsed file.
func extractImports(result *parser.ParseResult) []string {
	types := importNodeTypes(result.Language)
	if len(types) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var imports []string
	root := result.Tree.RootNode()
	parser.Walk(root, result.Source, func(node *sitter.Node, source []byte) bool {
		if !wanted[node.Type()] {
			return true
		}
		if imp := importPath(node, source, result.Language); imp != "" {
			imports = append(imports, imp)
		}
		return true
	})
	return imports
}

// importNodeTypes returns the AST node types carrying imports per
// language. Ruby requires are plain method calls.
func importNodeTypes(lang parser.Language) []string {
	switch lang {
	case parser.LangGo:
		return []string{"import_spec"}
	case parser.LangRust:
		return []string{"use_declaration"}
	case parser.LangPython:
		return []string{"import_statement", "import_from_statement"}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return []string{"import_statement"}
	case parser.LangJava:
		return []string{"import_declaration"}
	case parser.LangC, parser.LangCPP:
		return []string{"preproc_include"}
	case parser.LangRuby:
		return []string{"call", "command"}
	default:
		return nil
	}
}

// importPath pulls the import target out of one import node.
func importPath(node *sitter.Node, source []byte, lang parser.Language) string {
	switch lang {
	case parser.LangGo:
		return unquote(parser.GetNodeText(node.ChildByFieldName("path"), source))

	case parser.LangRust:
		if arg := node.ChildByFieldName("argument"); arg != nil {
			return strings.ReplaceAll(parser.GetNodeText(arg, source), "::", "/")
		}

	case parser.LangPython:
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			return parser.GetNodeText(mod, source)
		}
		if name := node.ChildByFieldName("name"); name != nil {
			return parser.GetNodeText(name, source)
		}

	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return unquote(parser.GetNodeText(node.ChildByFieldName("source"), source))

	case parser.LangJava:
		for i := range int(node.NamedChildCount()) {
			child := node.NamedChild(i)
			if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
				return strings.ReplaceAll(parser.GetNodeText(child, source), ".", "/")
			}
		}

	case parser.LangC, parser.LangCPP:
		return unquote(parser.GetNodeText(node.ChildByFieldName("path"), source))

	case parser.LangRuby:
		method := parser.GetNodeText(node.ChildByFieldName("method"), source)
		if method != "require" && method != "require_relative" && method != "load" {
			return ""
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := range int(args.NamedChildCount()) {
				child := args.NamedChild(i)
				if child.Type() == "string" {
					return unquote(parser.GetNodeText(child, source))
				}
			}
		}
	}
	return ""
}

// unquote strips one layer of quote or angle-bracket delimiters.
func unquote(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '\'' && s[len(s)-1] == '\'',
			s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '<' && s[len(s)-1] == '>':
			return s[1 : len(s)-1]
		}
	}
	return s
}
