package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "codegraph",
		Usage:   "static code intelligence: flow graphs, clone detection, dependency analysis",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a codegraph config file (TOML, YAML, or JSON)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "output format: table or json",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "disable the progress bar",
			},
		},
		Commands: []*cli.Command{
			analyzeCommand(),
			flowCommand(),
			clonesCommand(),
			depsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}
