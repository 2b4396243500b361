package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/codegraph/pkg/analyzer/deps"
	"github.com/veldt-labs/codegraph/pkg/source"
)

func depsCommand() *cli.Command {
	return &cli.Command{
		Name:      "deps",
		Usage:     "build the module dependency graph and report cycles and coupling",
		ArgsUsage: "[path ...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "god-module-fan-out",
				Usage: "fan-out ceiling above which a module is flagged",
			},
		},
		Action: runDeps,
	}
}

func runDeps(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := []deps.Option{deps.WithConfig(cfg.Deps)}
	if n := c.Int("god-module-fan-out"); n > 0 {
		opts = append(opts, deps.WithGodModuleFanOut(n))
	}

	files, err := collectFiles(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("no source files found")
		return nil
	}

	a := deps.New(opts...)
	defer a.Close()

	ctx, finish := withProgress(c, c.Context, "deps", len(files))
	result, err := a.Analyze(ctx, files, source.NewFilesystem())
	finish()
	if err != nil {
		return err
	}

	if jsonOutput(c) {
		return writeJSON(result)
	}

	printDepsSummary(result)
	printDepsCycles(result)
	printDepsMetrics(result)
	printDepsFindings(result)
	printDiagnostics(result.Diagnostics)
	return nil
}

func printDepsSummary(result *deps.Result) {
	fmt.Printf("deps: %d modules, %d edges, %d external imports, %d cycles\n\n",
		len(result.Modules), len(result.Edges), len(result.Externals), len(result.Cycles))
}

func printDepsCycles(result *deps.Result) {
	rows := make([][]string, 0, len(result.Cycles))
	for i, cycle := range result.Cycles {
		paths := make([]string, len(cycle.Members))
		for j, id := range cycle.Members {
			paths[j] = result.Modules[id].Path
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(len(cycle.Members)),
			strings.Join(paths, ", "),
		})
	}
	renderTable("Import cycles", []string{"#", "Size", "Members"}, rows)
}

func printDepsMetrics(result *deps.Result) {
	rows := make([][]string, 0, len(result.Metrics))
	for _, m := range result.Metrics {
		rows = append(rows, []string{
			result.Modules[m.Module].Path,
			strconv.Itoa(m.FanIn),
			strconv.Itoa(m.FanOut),
			strconv.FormatFloat(m.Instability, 'f', 2, 64),
		})
	}
	renderTable("Coupling", []string{"Module", "Fan-in", "Fan-out", "Instability"}, rows)
}

func printDepsFindings(result *deps.Result) {
	for _, f := range result.Findings {
		color.Red("%s: %s (%s, confidence %.2f)", f.Module, f.Message, f.Type, f.Confidence)
	}
	if len(result.Findings) > 0 {
		fmt.Println()
	}
}
