package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/starford/onexport/internal"
	pkgconfig "github.com/starford/onexport/pkg/config"
)

var version = "dev"

type runner func(ctx context.Context, opts ...internal.Option) error

// action loads the config file named by --config, applies the command's
// source overrides and hands off to fn.
func action(fn runner) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
			internal.WithInput(cmd.String("input")),
			internal.WithPagesDir(cmd.String("pages")),
			internal.WithOutput(os.Stdout),
			internal.WithLogOutput(os.Stderr),
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Hierarchy XML file, overrides source.hierarchy",
			Sources: cli.EnvVars("ONEXPORT_INPUT"),
		},
		&cli.StringFlag{
			Name:    "pages",
			Usage:   "Directory of <page-id>.xml bodies, overrides source.pages_dir",
			Sources: cli.EnvVars("ONEXPORT_PAGES_DIR"),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "onexport",
		Usage:   "Export a notebook hierarchy as a static-site collection of sections and pages",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Export the hierarchy once and print the run report",
				Flags:  sourceFlags(),
				Action: action(internal.Export),
			},
			{
				Name:   "watch",
				Usage:  "Export, then re-export whenever the hierarchy file changes",
				Flags:  sourceFlags(),
				Action: action(internal.Watch),
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API, progress events and metrics",
				Flags:  sourceFlags(),
				Action: action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve export and catalogue tools over MCP stdio",
				Flags:  sourceFlags(),
				Action: action(internal.MCP),
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the catalogue from the exported tree on disk",
				Action: action(internal.Reindex),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
