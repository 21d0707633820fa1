package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/starford/storysync/internal"
	pkgconfig "github.com/starford/storysync/pkg/config"
	"github.com/urfave/cli/v3"
)

var version = "dev"

// loadConfig reads the optional config file, applies the environment overlay
// and the --dir flag, and validates the result.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("dir"); dir != "" {
		cfg.Stories.Dir = dir
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithOutput(os.Stdout),
		internal.WithVersion(version),
	}, nil
}

func runWith(fn func(context.Context, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, opts...)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithWatch(cmd.Bool("watch")))
	return internal.RunServe(ctx, opts...)
}

func history(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunHistory(ctx, int(cmd.Int("limit")), opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "storysync",
		Usage:   "Synchronize Markdown user stories with a GitHub project board",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Story directory (overrides stories.dir and BMAD_OUTPUT_DIR)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "push",
				Usage:  "Create or update board items from local stories and archive removed ones",
				Action: runWith(internal.RunPush),
			},
			{
				Name:   "pull",
				Usage:  "Write board items into local story files",
				Action: runWith(internal.RunPull),
			},
			{
				Name:   "watch",
				Usage:  "Push now and again whenever story files change",
				Action: runWith(internal.RunWatch),
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API with live sync events",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Also push whenever story files change",
					},
				},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runWith(internal.RunMCP),
			},
			{
				Name:  "history",
				Usage: "Show recent synchronization runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
				Action: history,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
