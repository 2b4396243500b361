package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/codegraph/pkg/analyzer/flow"
	"github.com/veldt-labs/codegraph/pkg/source"
)

func flowCommand() *cli.Command {
	return &cli.Command{
		Name:      "flow",
		Usage:     "build per-function control/data flow graphs and report findings",
		ArgsUsage: "[path ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-loop-heuristic",
				Usage: "disable the advisory potential-infinite-loop check",
			},
		},
		Action: runFlow,
	}
}

func runFlow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	heuristic := cfg.Flow.InfiniteLoopHeuristic
	if c.Bool("no-loop-heuristic") {
		heuristic = false
	}

	files, err := collectFiles(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("no source files found")
		return nil
	}

	a := flow.New(flow.WithInfiniteLoopHeuristic(heuristic))
	defer a.Close()

	ctx, finish := withProgress(c, c.Context, "flow", len(files))
	result, err := a.Analyze(ctx, files, source.NewFilesystem())
	finish()
	if err != nil {
		return err
	}

	if jsonOutput(c) {
		return writeJSON(result)
	}

	printFlowSummary(result)
	printFlowFindings(result)
	printDiagnostics(result.Diagnostics)
	return nil
}

func printFlowSummary(result *flow.Result) {
	calls := 0
	if result.CallGraph != nil {
		calls = len(result.CallGraph.Edges)
	}
	fmt.Printf("flow: %d functions, %d call edges, %d findings\n\n",
		len(result.Functions), calls, len(result.Findings))
}

func printFlowFindings(result *flow.Result) {
	rows := make([][]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", f.File, f.Line),
			f.Function,
			string(f.Type),
			severityLabel(f.Severity),
			f.Message,
			strconv.FormatFloat(f.Confidence, 'f', 2, 64),
		})
	}
	renderTable("Flow findings", []string{"Location", "Function", "Type", "Severity", "Message", "Confidence"}, rows)
}

func severityLabel(s flow.Severity) string {
	switch s {
	case flow.SeverityError:
		return color.RedString(string(s))
	case flow.SeverityWarning:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
