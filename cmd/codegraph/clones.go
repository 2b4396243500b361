package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/codegraph/pkg/analyzer/clones"
	"github.com/veldt-labs/codegraph/pkg/source"
)

func clonesCommand() *cli.Command {
	return &cli.Command{
		Name:      "clones",
		Usage:     "detect duplicated and near-duplicated code",
		ArgsUsage: "[path ...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-lines",
				Usage: "minimum clone size in lines (applies to both same-file and cross-file)",
			},
			&cli.IntFlag{
				Name:  "window",
				Usage: "exact-match window size in normalized lines",
			},
			&cli.Float64Flag{
				Name:  "type2",
				Usage: "fingerprint similarity floor for renamed clones",
			},
			&cli.Float64Flag{
				Name:  "type3",
				Usage: "token similarity floor for modified clones",
			},
			&cli.Float64Flag{
				Name:  "type4",
				Usage: "behavior similarity floor for semantic clones",
			},
		},
		Action: runClones,
	}
}

func runClones(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := []clones.Option{clones.WithConfig(cfg.Clones)}
	if n := c.Int("min-lines"); n > 0 {
		opts = append(opts, clones.WithMinLines(n, n))
	}
	if w := c.Int("window"); w > 0 {
		opts = append(opts, clones.WithWindowSize(w))
	}
	t2, t3, t4 := cfg.Clones.Type2Similarity, cfg.Clones.Type3Similarity, cfg.Clones.Type4Similarity
	if c.IsSet("type2") {
		t2 = c.Float64("type2")
	}
	if c.IsSet("type3") {
		t3 = c.Float64("type3")
	}
	if c.IsSet("type4") {
		t4 = c.Float64("type4")
	}
	opts = append(opts, clones.WithThresholds(t2, t3, t4))

	files, err := collectFiles(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("no source files found")
		return nil
	}

	a := clones.New(opts...)
	defer a.Close()

	ctx, finish := withProgress(c, c.Context, "clones", len(files))
	result, err := a.Analyze(ctx, files, source.NewFilesystem())
	finish()
	if err != nil {
		return err
	}

	if jsonOutput(c) {
		return writeJSON(result)
	}

	if len(result.Clones) == 0 {
		color.Green("no clones found")
	}
	printCloneRecords(result)
	printDiagnostics(result.Diagnostics)
	return nil
}

func printCloneRecords(result *clones.Result) {
	rows := make([][]string, 0, len(result.Clones))
	for _, rec := range result.Clones {
		rows = append(rows, []string{
			cloneTypeLabel(rec.Type),
			fmt.Sprintf("%s:%d-%d", rec.FileA, rec.StartLineA, rec.EndLineA),
			fmt.Sprintf("%s:%d-%d", rec.FileB, rec.StartLineB, rec.EndLineB),
			strconv.FormatFloat(rec.Similarity, 'f', 2, 64),
		})
	}
	renderTable("Clones", []string{"Type", "Location A", "Location B", "Similarity"}, rows)
}

func cloneTypeLabel(t clones.CloneType) string {
	switch t {
	case clones.Type1:
		return "exact"
	case clones.Type2:
		return "renamed"
	case clones.Type3:
		return "modified"
	case clones.Type4:
		return "semantic"
	default:
		return fmt.Sprintf("type%d", t)
	}
}
