package main

import (
	"context"
	"fmt"
	"io"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/axanet/internal"
	"github.com/starford/axanet/internal/vcs"
	pkgconfig "github.com/starford/axanet/pkg/config"
)

var version = "dev"

// cliApp carries the process streams so commands can be run in tests.
type cliApp struct {
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	gitRunner vcs.Runner
}

func (a *cliApp) command() *cli.Command {
	return &cli.Command{
		Name:      "axanet",
		Usage:     "Manage client records stored as JSON files with an action history",
		Version:   version,
		Reader:    a.stdin,
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Data directory (overrides data.path)",
				Sources: cli.EnvVars("AXANET_DATA_DIR"),
			},
			&cli.BoolFlag{
				Name:  "git",
				Usage: "Commit the data directory after each change",
			},
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Push after committing (requires --git)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print machine-readable JSON",
			},
		},
		Commands: []*cli.Command{
			a.createCommand(),
			a.updateCommand(),
			a.consultCommand(),
			a.listCommand(),
			a.deleteCommand(),
			a.searchCommand(),
			a.statsCommand(),
			a.rebuildCommand(),
			a.watchCommand(),
			a.mcpCommand(),
		},
	}
}

// loadConfig reads the config file and applies the global flags.
func loadConfig(root *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := root.String("config")

	// An explicitly requested file must exist; the default one is optional.
	if root.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", errConfig, err)
		}
	} else if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	if dir := root.String("data-dir"); dir != "" {
		cfg.Data.Path = dir
	}
	if root.Bool("git") {
		cfg.Git.Enabled = true
	}
	if root.Bool("push") {
		if !cfg.Git.Enabled {
			return nil, fmt.Errorf("%w: --push requires --git", errConfig)
		}
		cfg.Git.Push = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return cfg, nil
}

// run executes the CLI and returns the exit status.
func (a *cliApp) run(ctx context.Context, args []string) int {
	err := a.command().Run(ctx, args)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func main() {
	app := &cliApp{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(app.run(context.Background(), os.Args))
}
