package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/axanet/internal"
	"github.com/starford/axanet/internal/manager"
	"github.com/starford/axanet/internal/mcpserver"
)

const defaultRecent = 5

// session is what a command action works with.
type session struct {
	app *internal.App
	out *output
}

// withApp loads the config, opens the application and hands it to fn.
func (a *cliApp) withApp(fn func(ctx context.Context, cmd *cli.Command, s *session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		root := cmd.Root()
		cfg, err := loadConfig(root)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithLogger(internal.NewLogger(cfg.App, a.stderr)),
		}
		if a.gitRunner != nil {
			opts = append(opts, internal.WithGitRunner(a.gitRunner))
		}
		app, err := internal.Open(ctx, opts...)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(ctx, cmd, &session{
			app: app,
			out: &output{w: a.stdout, json: root.Bool("json")},
		})
	}
}

func nameFlag() cli.Flag {
	return &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Client name", Required: true}
}

func (a *cliApp) createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a client record",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "Service contracted", Required: true},
			&cli.StringFlag{Name: "notes", Usage: "Free-text notes"},
		},
		Action: a.withApp(func(ctx context.Context, cmd *cli.Command, s *session) error {
			c, err := s.app.Manager.Create(ctx, manager.CreateInput{
				Name:    cmd.String("name"),
				Service: cmd.String("service"),
				Notes:   cmd.String("notes"),
			})
			if err != nil {
				return err
			}
			return s.out.created(c)
		}),
	}
}

func (a *cliApp) updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Change the service and/or notes of a client",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "New service"},
			&cli.StringFlag{Name: "notes", Usage: "New notes"},
		},
		Action: a.withApp(func(ctx context.Context, cmd *cli.Command, s *session) error {
			var in manager.UpdateInput
			if cmd.IsSet("service") {
				v := cmd.String("service")
				in.Service = &v
			}
			if cmd.IsSet("notes") {
				v := cmd.String("notes")
				in.Notes = &v
			}
			res, err := s.app.Manager.Update(ctx, cmd.String("name"), in)
			if err != nil {
				return err
			}
			return s.out.updated(res)
		}),
	}
}

func (a *cliApp) consultCommand() *cli.Command {
	return &cli.Command{
		Name:  "consult",
		Usage: "Show a client record (logged in its history)",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.IntFlag{Name: "history", Usage: "Number of history entries to show", Value: defaultRecent},
		},
		Action: a.withApp(func(ctx context.Context, cmd *cli.Command, s *session) error {
			c, err := s.app.Manager.Consult(ctx, cmd.String("name"))
			if err != nil {
				return err
			}
			return s.out.consulted(c, int(cmd.Int("history")))
		}),
	}
}

func (a *cliApp) listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all clients",
		Action: a.withApp(func(ctx context.Context, _ *cli.Command, s *session) error {
			list, err := s.app.Manager.List(ctx)
			if err != nil {
				return err
			}
			return s.out.summaries(list, "No clients.")
		}),
	}
}

func (a *cliApp) deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a client record",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.BoolFlag{Name: "confirm", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
		},
		Action: a.withApp(func(ctx context.Context, cmd *cli.Command, s *session) error {
			name := cmd.String("name")
			if !cmd.Bool("confirm") {
				fmt.Fprintf(a.stderr, "Delete client %q? [y/N] ", name)
				if !confirmed(a.stdin) {
					return s.out.message("Cancelled.")
				}
			}
			sum, err := s.app.Manager.Delete(ctx, name)
			if err != nil {
				return err
			}
			return s.out.deleted(sum)
		}),
	}
}

func (a *cliApp) searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search clients by name, service or notes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search text", Required: true},
		},
		Action: a.withApp(func(ctx context.Context, cmd *cli.Command, s *session) error {
			list, err := s.app.Manager.Search(ctx, cmd.String("query"))
			if err != nil {
				return err
			}
			return s.out.summaries(list, "No matches.")
		}),
	}
}

func (a *cliApp) statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show record and history statistics",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "recent", Usage: "Number of recently touched clients to show", Value: defaultRecent},
		},
		Action: a.withApp(func(ctx context.Context, cmd *cli.Command, s *session) error {
			st, err := s.app.Manager.Stats(ctx, int(cmd.Int("recent")))
			if err != nil {
				return err
			}
			return s.out.stats(st)
		}),
	}
}

func (a *cliApp) rebuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Regenerate the index from the record files",
		Action: a.withApp(func(ctx context.Context, _ *cli.Command, s *session) error {
			stats, err := s.app.Manager.Rebuild(ctx)
			if err != nil {
				return err
			}
			return s.out.rebuilt(stats)
		}),
	}
}

func (a *cliApp) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the index in sync with edits to the record files",
		Action: a.withApp(func(ctx context.Context, _ *cli.Command, s *session) error {
			return s.app.Watch(ctx)
		}),
	}
}

func (a *cliApp) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the client tools over MCP on stdin/stdout",
		Action: a.withApp(func(_ context.Context, _ *cli.Command, s *session) error {
			return mcpserver.New(s.app.Manager, version).ServeStdio()
		}),
	}
}

// confirmed reads one line and reports whether it is an affirmative answer.
func confirmed(r io.Reader) bool {
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "si", "sí", "y", "yes":
		return true
	}
	return false
}
