// Package clones detects duplicated code across four similarity classes,
// from exact textual copies to behavioral look-alikes. Every detected
// pair is reported once, under the most specific class that matched.
package clones

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/veldt-labs/codegraph/internal/fileproc"
	"github.com/veldt-labs/codegraph/pkg/analyzer"
	"github.com/veldt-labs/codegraph/pkg/config"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

// Analyzer detects code clones across a file set.
type Analyzer struct {
	cfg Config
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithConfig applies thresholds from the loaded configuration.
func WithConfig(c config.CloneConfig) Option {
	return func(a *Analyzer) {
		a.cfg = Config{
			MinLinesSameFile:  c.MinLinesSameFile,
			MinLinesCrossFile: c.MinLinesCrossFile,
			WindowSize:        c.WindowSize,
			Type2Similarity:   c.Type2Similarity,
			Type3Similarity:   c.Type3Similarity,
			Type4Similarity:   c.Type4Similarity,
		}
	}
}

// WithMinLines overrides the per-scope span floors.
func WithMinLines(sameFile, crossFile int) Option {
	return func(a *Analyzer) {
		a.cfg.MinLinesSameFile = sameFile
		a.cfg.MinLinesCrossFile = crossFile
	}
}

// WithWindowSize overrides the exact-match sliding window length.
func WithWindowSize(lines int) Option {
	return func(a *Analyzer) {
		a.cfg.WindowSize = lines
	}
}

// WithThresholds overrides the three similarity floors.
func WithThresholds(type2, type3, type4 float64) Option {
	return func(a *Analyzer) {
		a.cfg.Type2Similarity = type2
		a.cfg.Type3Similarity = type3
		a.cfg.Type4Similarity = type4
	}
}

// New creates a new clone analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compile-time check that Analyzer implements SourceFileAnalyzer.
var _ analyzer.SourceFileAnalyzer[*Result] = (*Analyzer)(nil)

// ContentSource is an alias for analyzer.ContentSource.
type ContentSource = analyzer.ContentSource

// Result is the clone report for a file set.
type Result struct {
	Clones      []CloneRecord         `json:"clones"`
	Diagnostics []analyzer.Diagnostic `json:"diagnostics,omitempty"`
}

// fileClones is the per-file phase output: normalized lines for the
// exact detector and function fingerprints for the structural ones.
type fileClones struct {
	path      string
	lines     []normLine
	functions []functionPrint
}

// Analyze runs all four detectors over the file set. File preparation is
// parallel; the cross-file matching passes are a single-threaded
// reduction, so records come out in one canonical order for a given
// input set. A file that fails to parse is skipped with a diagnostic.
func (a *Analyzer) Analyze(ctx context.Context, files []string, src ContentSource) (*Result, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}
	var onProgress fileproc.ProgressFunc
	if tracker != nil {
		onProgress = func(path string) { tracker.Tick(path) }
	}

	perFile, errs := fileproc.MapFilesWithProgress(ctx, files, func(psr *parser.Parser, path string) (fileClones, error) {
		content, err := src.Read(path)
		if err != nil {
			return fileClones{}, err
		}
		lang := parser.DetectLanguage(path)
		if lang == parser.LangUnknown {
			return fileClones{}, fmt.Errorf("unsupported language")
		}
		result, err := psr.Parse(content, lang, path)
		if err != nil {
			return fileClones{}, err
		}

		fc := fileClones{path: path, lines: normalizeLines(content)}
		for _, fn := range parser.GetFunctions(result) {
			fc.functions = append(fc.functions, newFunctionPrint(fn, result))
		}
		return fc, nil
	}, onProgress)

	sort.Slice(perFile, func(i, j int) bool { return perFile[i].path < perFile[j].path })

	var prints []functionPrint
	for _, fc := range perFile {
		prints = append(prints, fc.functions...)
	}

	var records []CloneRecord
	records = append(records, detectType1(perFile, a.cfg)...)
	t2, nearMisses := detectType2(prints, a.cfg)
	records = append(records, t2...)
	records = append(records, detectType3(prints, nearMisses, a.cfg)...)
	records = append(records, detectType4(prints, a.cfg)...)

	out := &Result{Clones: dedupe(records)}

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

// minLines returns the span floor for a scope.
func (c Config) minLines(sameFile bool) int {
	if sameFile {
		return c.MinLinesSameFile
	}
	return c.MinLinesCrossFile
}

func meetsMinLines(a, b functionPrint, cfg Config) bool {
	floor := cfg.minLines(a.file == b.file)
	return a.lineCount() >= floor && b.lineCount() >= floor
}

// pairRecord builds a canonically oriented record for a function pair.
func pairRecord(t CloneType, a, b functionPrint, sim float64) CloneRecord {
	if b.file < a.file || (b.file == a.file && b.startLine < a.startLine) {
		a, b = b, a
	}
	return CloneRecord{
		Type:       t,
		FileA:      a.file,
		StartLineA: a.startLine,
		EndLineA:   a.endLine,
		FileB:      b.file,
		StartLineB: b.startLine,
		EndLineB:   b.endLine,
		Similarity: sim,
	}
}

// dedupe enforces reporting precedence: when detectors of different
// classes flag the same span pair, only the most specific record
// survives.
func dedupe(records []CloneRecord) []CloneRecord {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Type != records[j].Type {
			return records[i].Type < records[j].Type
		}
		return recordLess(records[i], records[j])
	})

	var kept []CloneRecord
	for _, r := range records {
		suppressed := false
		for _, k := range kept {
			if k.FileA == r.FileA && k.FileB == r.FileB &&
				spansOverlap(k.StartLineA, k.EndLineA, r.StartLineA, r.EndLineA) &&
				spansOverlap(k.StartLineB, k.EndLineB, r.StartLineB, r.EndLineB) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, r)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return recordLess(kept[i], kept[j]) })
	return kept
}

func recordLess(a, b CloneRecord) bool {
	if a.FileA != b.FileA {
		return a.FileA < b.FileA
	}
	if a.StartLineA != b.StartLineA {
		return a.StartLineA < b.StartLineA
	}
	if a.FileB != b.FileB {
		return a.FileB < b.FileB
	}
	if a.StartLineB != b.StartLineB {
		return a.StartLineB < b.StartLineB
	}
	return a.Type < b.Type
}

func spansOverlap(aStart, aEnd, bStart, bEnd uint32) bool {
	return aStart <= bEnd && bStart <= aEnd
}
