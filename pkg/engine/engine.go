// Package engine runs the full analysis pipeline: flow graphs, clone
// detection, and dependency analysis over one file set, under one
// configuration.
package engine

import (
	"context"

	"github.com/veldt-labs/codegraph/pkg/analyzer"
	"github.com/veldt-labs/codegraph/pkg/analyzer/clones"
	"github.com/veldt-labs/codegraph/pkg/analyzer/deps"
	"github.com/veldt-labs/codegraph/pkg/analyzer/flow"
	"github.com/veldt-labs/codegraph/pkg/config"
)

// Engine coordinates the analyzers. Each analysis parallelizes its own
// per-file phase internally; the engine runs the stages in sequence so a
// cancelled context stops the pipeline between stages.
type Engine struct {
	cfg *config.Config
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithConfig substitutes the analysis configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// New creates an engine with default configuration.
func New(opts ...Option) *Engine {
	e := &Engine{cfg: config.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report is the combined output of one analysis run.
type Report struct {
	Flow   *flow.Result   `json:"flow,omitempty"`
	Clones *clones.Result `json:"clones,omitempty"`
	Deps   *deps.Result   `json:"deps,omitempty"`
}

// Analyze validates the configuration and runs all three analyses. A bad
// configuration fails the whole run before any file is touched;
// individual file failures surface as diagnostics inside each section.
func (e *Engine) Analyze(ctx context.Context, files []string, src analyzer.ContentSource) (*Report, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{}

	flowAnalyzer := flow.New(flow.WithInfiniteLoopHeuristic(e.cfg.Flow.InfiniteLoopHeuristic))
	defer flowAnalyzer.Close()
	flowResult, err := flowAnalyzer.Analyze(ctx, files, src)
	if err != nil {
		return nil, err
	}
	report.Flow = flowResult

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cloneAnalyzer := clones.New(clones.WithConfig(e.cfg.Clones))
	defer cloneAnalyzer.Close()
	cloneResult, err := cloneAnalyzer.Analyze(ctx, files, src)
	if err != nil {
		return nil, err
	}
	report.Clones = cloneResult

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	depAnalyzer := deps.New(deps.WithConfig(e.cfg.Deps))
	defer depAnalyzer.Close()
	depResult, err := depAnalyzer.Analyze(ctx, files, src)
	if err != nil {
		return nil, err
	}
	report.Deps = depResult

	return report, ctx.Err()
}
