package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/veldt-labs/codegraph/pkg/analyzer"
	"github.com/veldt-labs/codegraph/pkg/config"
	"github.com/veldt-labs/codegraph/pkg/parser"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault(), nil
}

func jsonOutput(c *cli.Context) bool {
	return strings.EqualFold(c.String("format"), "json")
}

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
}

// collectFiles expands the command arguments into the supported source
// files beneath them. No arguments means the current directory. Hidden
// directories and common dependency/output directories are skipped.
func collectFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				name := d.Name()
				if path != arg && (skipDirs[name] || strings.HasPrefix(name, ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if parser.DetectLanguage(path) != parser.LangUnknown {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// withProgress attaches a progress-bar tracker to the context. The
// returned finish func clears the bar; call it before printing results.
func withProgress(c *cli.Context, ctx context.Context, label string, total int) (context.Context, func()) {
	if c.Bool("no-progress") || jsonOutput(c) {
		return ctx, func() {}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionClearOnFinish(),
	)
	tracker := analyzer.NewTracker(func(current, total int, path string) {
		bar.ChangeMax(total)
		_ = bar.Set(current)
	})
	return analyzer.WithTracker(ctx, tracker), func() { _ = bar.Finish() }
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(title string, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	if title != "" {
		color.New(color.Bold).Println(title)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
		}),
	)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return
		}
	}
	_ = table.Render()
	fmt.Println()
}

func printDiagnostics(diags []analyzer.Diagnostic) {
	for _, d := range diags {
		color.Yellow("skipped %s (%s): %s", d.File, d.Stage, d.Message)
	}
}
