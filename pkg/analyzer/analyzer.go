// Package analyzer defines the shared contracts between the analysis
// engines: the file-analyzer interface, diagnostics for degraded results,
// and context-carried progress tracking.
package analyzer

import (
	"context"

	"github.com/veldt-labs/codegraph/pkg/source"
)

// ContentSource provides file content to analyzers. Re-exported so
// analyzer packages depend on one import.
type ContentSource = source.ContentSource

// SourceFileAnalyzer is the interface all analyzers implement: files are
// named by path, content comes from a ContentSource, and the context
// carries cancellation and optional progress tracking.
type SourceFileAnalyzer[T any] interface {
	Analyze(ctx context.Context, files []string, src ContentSource) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}

// Stage identifies where in the pipeline a diagnostic originated.
type Stage string

const (
	// StageParse covers file reading and AST construction. A parse
	// failure excludes the whole file from every analysis.
	StageParse Stage = "parse"
	// StageStructure covers per-function graph construction. A failure
	// here skips the function; the rest of the file still contributes.
	StageStructure Stage = "structure"
)

// Diagnostic records a non-fatal degradation: the unit named by File
// (and Function, when set) was skipped, everything else proceeded.
type Diagnostic struct {
	File     string `json:"file"`
	Function string `json:"function,omitempty"`
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
}
