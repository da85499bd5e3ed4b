// Package vcs commits record changes to git after successful mutations,
// tagging each commit so external automation can react to it.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/starford/axanet/internal/events"
	"github.com/starford/axanet/internal/models"
)

// ErrNotGitRepo indicates the directory is not a git work tree.
var ErrNotGitRepo = errors.New("not a git repository")

// Runner executes git with args in dir and returns its combined output.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// ExecRunner runs the git binary found on PATH.
func ExecRunner(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	return cmd.CombinedOutput()
}

// Tag returns the commit marker for an action kind.
func Tag(kind models.Action) string {
	switch kind {
	case models.ActionCreated:
		return "NEW_CLIENT"
	case models.ActionUpdated:
		return "UPDATE_CLIENT"
	case models.ActionConsulted:
		return "CONSULT_CLIENT"
	case models.ActionDeleted:
		return "DELETE_CLIENT"
	default:
		return strings.ToUpper(string(kind)) + "_CLIENT"
	}
}

// Message returns the commit message for ev, e.g. "[NEW_CLIENT] name=Maria Garcia".
func Message(ev events.Event) string {
	return fmt.Sprintf("[%s] name=%s", Tag(ev.Kind), ev.Name)
}

// Committer stages Paths, commits, and optionally pushes.
type Committer struct {
	Dir    string   // working directory inside the repository
	Paths  []string // paths to stage, relative to Dir or absolute
	Push   bool
	Remote string
	Branch string
	Run    Runner
}

func (c *Committer) run(ctx context.Context, args ...string) error {
	run := c.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, c.Dir, args...)
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Check verifies that Dir is inside a git work tree.
func (c *Committer) Check(ctx context.Context) error {
	if err := c.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return fmt.Errorf("%w: %s", ErrNotGitRepo, c.Dir)
	}
	return nil
}

// Commit records the change described by ev.
func (c *Committer) Commit(ctx context.Context, ev events.Event) error {
	paths := c.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	if err := c.run(ctx, append([]string{"add", "--all", "--"}, paths...)...); err != nil {
		return err
	}
	if err := c.run(ctx, "commit", "-m", Message(ev)); err != nil {
		return err
	}
	if !c.Push {
		return nil
	}
	remote, branch := c.Remote, c.Branch
	if remote == "" {
		remote = "origin"
	}
	if branch == "" {
		branch = "main"
	}
	return c.run(ctx, "push", remote, branch)
}

// Handler adapts c to an events.Handler bound to ctx.
func (c *Committer) Handler(ctx context.Context) events.Handler {
	return func(ev events.Event) error {
		return c.Commit(ctx, ev)
	}
}
