package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/codegraph/pkg/engine"
	"github.com/veldt-labs/codegraph/pkg/source"
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "run flow, clone, and dependency analysis together",
		ArgsUsage: "[path ...]",
		Action:    runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	files, err := collectFiles(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("no source files found")
		return nil
	}

	// three analyzers each walk the file set once
	ctx, finish := withProgress(c, c.Context, "analyzing", len(files)*3)
	report, err := engine.New(engine.WithConfig(cfg)).Analyze(ctx, files, source.NewFilesystem())
	finish()
	if err != nil {
		return err
	}

	if jsonOutput(c) {
		return writeJSON(report)
	}

	fmt.Printf("analyzed %d files\n\n", len(files))
	if report.Flow != nil {
		printFlowSummary(report.Flow)
		printFlowFindings(report.Flow)
		printDiagnostics(report.Flow.Diagnostics)
	}
	if report.Clones != nil {
		printCloneRecords(report.Clones)
	}
	if report.Deps != nil {
		printDepsSummary(report.Deps)
		printDepsCycles(report.Deps)
		printDepsFindings(report.Deps)
	}
	return nil
}
