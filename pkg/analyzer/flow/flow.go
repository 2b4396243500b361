// Package flow builds per-function control-flow, data-flow, and call
// graphs, and derives reachability, loop, and def-use findings from them.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/veldt-labs/codegraph/internal/fileproc"
	"github.com/veldt-labs/codegraph/pkg/analyzer"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// infiniteLoopConfidence grades the loop heuristic: it is unsound by
// design (no interprocedural or aliasing reasoning), so findings stay
// advisory.
const infiniteLoopConfidence = 0.6

// Analyzer builds flow graphs for every function in a set of files.
type Analyzer struct {
	resolver      ResolverFactory
	loopHeuristic bool
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithResolver substitutes the call resolution strategy.
func WithResolver(factory ResolverFactory) Option {
	return func(a *Analyzer) {
		a.resolver = factory
	}
}

// WithInfiniteLoopHeuristic toggles the advisory non-terminating-loop check.
func WithInfiniteLoopHeuristic(enabled bool) Option {
	return func(a *Analyzer) {
		a.loopHeuristic = enabled
	}
}

// New creates a new flow analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		resolver:      NewNameResolver,
		loopHeuristic: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compile-time check that Analyzer implements SourceFileAnalyzer.
var _ analyzer.SourceFileAnalyzer[*Result] = (*Analyzer)(nil)

// ContentSource is an alias for analyzer.ContentSource.
type ContentSource = analyzer.ContentSource

// Result is the full flow analysis of a file set.
type Result struct {
	Functions   []FunctionFlow        `json:"functions"`
	CallGraph   *CallGraph            `json:"call_graph"`
	Findings    []Finding             `json:"findings"`
	Diagnostics []analyzer.Diagnostic `json:"diagnostics,omitempty"`
}

// fileFlow holds the per-file phase output before the cross-file merge.
type fileFlow struct {
	path      string
	functions []FunctionFlow
	decls     []declaredFunc
	findings  []Finding
	diags     []analyzer.Diagnostic
}

// Analyze builds flow graphs for all functions in files. The per-file
// phase runs in parallel; the call graph is a single-threaded reduction
// over the collected declarations. A file that fails to parse is skipped
// with a diagnostic; the rest of the set still contributes.
func (a *Analyzer) Analyze(ctx context.Context, files []string, src ContentSource) (*Result, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	var onProgress fileproc.ProgressFunc
	if tracker != nil {
		onProgress = func(path string) { tracker.Tick(path) }
	}

	perFile, errs := fileproc.MapFilesWithProgress(ctx, files, func(psr *parser.Parser, path string) (fileFlow, error) {
		content, err := src.Read(path)
		if err != nil {
			return fileFlow{}, err
		}
		lang := parser.DetectLanguage(path)
		if lang == parser.LangUnknown {
			return fileFlow{}, fmt.Errorf("unsupported language")
		}
		result, err := psr.Parse(content, lang, path)
		if err != nil {
			return fileFlow{}, err
		}
		return a.analyzeFile(result), nil
	}, onProgress)

	sort.Slice(perFile, func(i, j int) bool { return perFile[i].path < perFile[j].path })

	out := &Result{}
	var decls []declaredFunc
	for _, ff := range perFile {
		out.Functions = append(out.Functions, ff.functions...)
		out.Findings = append(out.Findings, ff.findings...)
		out.Diagnostics = append(out.Diagnostics, ff.diags...)
		decls = append(decls, ff.decls...)
	}

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

	out.CallGraph = buildCallGraph(decls, a.resolver)
	sortFindings(out.Findings)
	sortDiagnostics(out.Diagnostics)

	return out, nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}

// analyzeFile builds graphs and findings for every function in one parsed
// file. A function whose AST defeats the builder is skipped with a
// diagnostic; the rest of the file proceeds.
func (a *Analyzer) analyzeFile(result *parser.ParseResult) fileFlow {
	ff := fileFlow{path: result.Path}

	for _, fn := range parser.GetFunctions(result) {
		res, err := buildCFG(fn, result.Path, result.Source, result.Language)
		if err != nil {
			ff.diags = append(ff.diags, analyzer.Diagnostic{
				File:     result.Path,
				Function: fn.Name,
				Stage:    analyzer.StageStructure,
				Message:  err.Error(),
			})
			continue
		}

		dfg := buildDFG(fn, result.Path, res, result.Source, result.Language)

		ff.functions = append(ff.functions, FunctionFlow{
			Function:  fn.Name,
			File:      result.Path,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			CFG:       res.cfg,
			DFG:       dfg,
		})

		ff.findings = append(ff.findings, unreachableFindings(fn.Name, res)...)
		if a.loopHeuristic {
			ff.findings = append(ff.findings, loopFindings(fn.Name, res, result.Source, result.Language)...)
		}
		ff.findings = append(ff.findings, defUseFindings(fn.Name, result.Path, dfg)...)

		ff.decls = append(ff.decls, declaredFunc{
			name:  fn.Name,
			file:  result.Path,
			line:  fn.StartLine,
			calls: extractCallNames(fn.Body, result.Source),
		})
	}

	return ff
}

// unreachableFindings reports statement nodes the entry cannot reach over
// non-exception edges. Handler entries seed the walk too: their bodies are
// reachable on exception paths only, which is not dead code. Severity is
// error when the dead region follows a return or raise on all paths.
func unreachableFindings(fnName string, res *cfgResult) []Finding {
	cfg := res.cfg
	succ := cfg.Successors(false)

	visited := roaring.New()
	queue := append([]int{cfg.Entry}, res.handlerEntries...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited.Contains(uint32(cur)) {
			continue
		}
		visited.Add(uint32(cur))
		queue = append(queue, succ[cur]...)
	}

	// propagate the error hint through the dead region
	sev := make(map[int]Severity, len(res.sevHint))
	for id, s := range res.sevHint {
		sev[id] = s
	}
	for id, s := range res.sevHint {
		if s != SeverityError || visited.Contains(uint32(id)) {
			continue
		}
		flood := []int{id}
		for len(flood) > 0 {
			cur := flood[0]
			flood = flood[1:]
			for _, next := range succ[cur] {
				if visited.Contains(uint32(next)) || sev[next] == SeverityError {
					continue
				}
				sev[next] = SeverityError
				flood = append(flood, next)
			}
		}
	}

	var findings []Finding
	for id := range cfg.Nodes {
		if visited.Contains(uint32(id)) {
			continue
		}
		if _, isStmt := res.stmtAST[id]; !isStmt {
			continue // synthetic merge/latch nodes are not code
		}
		severity := sev[id]
		if severity == "" {
			severity = SeverityWarning
		}
		findings = append(findings, Finding{
			Type:       FindingUnreachableCode,
			Severity:   severity,
			File:       cfg.File,
			Function:   fnName,
			Line:       cfg.Nodes[id].Line,
			Message:    "unreachable code",
			Confidence: 1.0,
		})
	}
	return findings
}

// loopFindings applies the infinite-loop heuristic: a loop whose condition
// references no variable assigned inside its body cannot locally
// terminate. Collection loops, loops containing break, and loops whose
// body never falls through (no cycle to repeat) are exempt.
func loopFindings(fnName string, res *cfgResult, source []byte, lang parser.Language) []Finding {
	var findings []Finding
	for _, li := range res.loops {
		if li.collection || li.hasBreak || !li.repeats {
			continue
		}

		assigned := make(map[string]bool)
		for id := li.bodyStart; id < li.bodyEnd; id++ {
			stmt, ok := res.stmtAST[id]
			if !ok {
				continue
			}
			for _, v := range assignmentTargets(stmt, source, lang) {
				assigned[v] = true
			}
		}

		suspicious := true
		message := "loop has no condition and no break statement; potential infinite loop"
		if li.cond != nil {
			message = "no variable in the loop condition is reassigned in the loop body; potential infinite loop"
			for _, v := range usedNames(li.cond, source) {
				if assigned[v] {
					suspicious = false
					break
				}
			}
		}
		if !suspicious {
			continue
		}

		cfg := res.cfg
		findings = append(findings, Finding{
			Type:       FindingInfiniteLoop,
			Severity:   SeverityWarning,
			File:       cfg.File,
			Function:   fnName,
			Line:       cfg.Nodes[li.header].Line,
			Message:    message,
			Confidence: infiniteLoopConfidence,
		})
	}
	return findings
}

// defUseFindings reports defs that reach no use and uses no def reaches.
// Use-before-definition only applies to variables defined somewhere in the
// function; names never defined locally are externals, not findings.
func defUseFindings(fnName, file string, dfg *DataFlowGraph) []Finding {
	outDeg := make([]int, len(dfg.Nodes))
	inDeg := make([]int, len(dfg.Nodes))
	for _, e := range dfg.Edges {
		outDeg[e.From]++
		inDeg[e.To]++
	}

	defined := make(map[string]bool)
	hasUse := make(map[string]bool)
	for _, n := range dfg.Nodes {
		switch n.Kind {
		case DefSite:
			defined[n.Variable] = true
		case UseSite:
			hasUse[n.Variable] = true
		}
	}

	var findings []Finding
	for _, n := range dfg.Nodes {
		if skipVariable(n.Variable) {
			continue
		}
		switch n.Kind {
		case DefSite:
			if outDeg[n.ID] > 0 {
				continue
			}
			msg := fmt.Sprintf("variable %q is defined but never used", n.Variable)
			if hasUse[n.Variable] {
				msg = fmt.Sprintf("value assigned to %q is never read", n.Variable)
			}
			findings = append(findings, Finding{
				Type:       FindingUnusedVariable,
				Severity:   SeverityInfo,
				File:       file,
				Function:   fnName,
				Line:       n.Line,
				Variable:   n.Variable,
				Message:    msg,
				Confidence: 1.0,
			})
		case UseSite:
			if inDeg[n.ID] > 0 || !defined[n.Variable] {
				continue
			}
			findings = append(findings, Finding{
				Type:       FindingUseBeforeDefine,
				Severity:   SeverityError,
				File:       file,
				Function:   fnName,
				Line:       n.Line,
				Variable:   n.Variable,
				Message:    fmt.Sprintf("variable %q may be used before it is defined", n.Variable),
				Confidence: 1.0,
			})
		}
	}
	return findings
}

// skipVariable filters conventional throwaway and receiver names.
func skipVariable(name string) bool {
	return name == "_" || name == "self" || name == "this"
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Variable < b.Variable
	})
}

func sortDiagnostics(diags []analyzer.Diagnostic) {
	sort.Slice(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		return a.Function < b.Function
	})
}
