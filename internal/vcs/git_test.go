package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/axanet/internal/events"
	"github.com/starford/axanet/internal/models"
)

type recorder struct {
	calls [][]string
	fail  string
}

func (r *recorder) run(_ context.Context, dir string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{dir}, args...))
	if args[0] == r.fail {
		return []byte("fatal: nope"), errors.New("exit status 128")
	}
	return nil, nil
}

func TestMessage(t *testing.T) {
	cases := map[models.Action]string{
		models.ActionCreated:   "[NEW_CLIENT] name=Maria Garcia",
		models.ActionUpdated:   "[UPDATE_CLIENT] name=Maria Garcia",
		models.ActionConsulted: "[CONSULT_CLIENT] name=Maria Garcia",
		models.ActionDeleted:   "[DELETE_CLIENT] name=Maria Garcia",
	}
	for kind, want := range cases {
		if got := Message(events.Event{Kind: kind, Name: "Maria Garcia"}); got != want {
			t.Errorf("Message(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestCommitWithoutPush(t *testing.T) {
	r := &recorder{}
	c := &Committer{Dir: "/repo", Paths: []string{"data"}, Run: r.run}
	if err := c.Commit(context.Background(), events.Event{Kind: models.ActionCreated, Name: "A"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("calls = %v", r.calls)
	}
	if strings.Join(r.calls[0], " ") != "/repo add --all -- data" {
		t.Errorf("add call = %v", r.calls[0])
	}
	if strings.Join(r.calls[1], " ") != "/repo commit -m [NEW_CLIENT] name=A" {
		t.Errorf("commit call = %v", r.calls[1])
	}
}

func TestCommitWithPushDefaults(t *testing.T) {
	r := &recorder{}
	c := &Committer{Dir: "/repo", Push: true, Run: r.run}
	if err := c.Commit(context.Background(), events.Event{Kind: models.ActionDeleted, Name: "A"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(r.calls) != 3 || strings.Join(r.calls[2], " ") != "/repo push origin main" {
		t.Errorf("calls = %v", r.calls)
	}
}

func TestCommitFailureStopsChain(t *testing.T) {
	r := &recorder{fail: "commit"}
	c := &Committer{Dir: "/repo", Push: true, Run: r.run}
	err := c.Handler(context.Background())(events.Event{Kind: models.ActionUpdated, Name: "A"})
	if err == nil || !strings.Contains(err.Error(), "fatal: nope") {
		t.Fatalf("err = %v", err)
	}
	if len(r.calls) != 2 {
		t.Errorf("push should not run after failed commit: %v", r.calls)
	}
}

func TestCheckNotRepo(t *testing.T) {
	r := &recorder{fail: "rev-parse"}
	c := &Committer{Dir: "/tmp", Run: r.run}
	if err := c.Check(context.Background()); !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("err = %v, want ErrNotGitRepo", err)
	}
}

func TestCommitRealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ctx := context.Background()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		if out, err := ExecRunner(ctx, dir, args...); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Committer{Dir: dir}
	if err := c.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
	ev := events.New(models.ActionCreated, "a", "Maria Garcia", time.Now())
	if err := c.Commit(ctx, ev); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	out, err := ExecRunner(ctx, dir, "log", "-1", "--format=%s")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(out)); got != "[NEW_CLIENT] name=Maria Garcia" {
		t.Errorf("last commit subject = %q", got)
	}
}
