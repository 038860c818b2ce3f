package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/tasks"
	"github.com/shaiso/Rollout/internal/telemetry"
)

type env struct {
	dir        string
	configPath string
	statePath  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("DB_URL", "")
	t.Setenv("REDIS_URL", "")

	dir := t.TempDir()
	e := &env{
		dir:        dir,
		configPath: filepath.Join(dir, "rollout.yaml"),
		statePath:  filepath.Join(dir, "state.json"),
	}

	cfg := fmt.Sprintf(`
application_name: shop
root_directory: %s
connections:
  local:
    host: localhost
    local: true
state:
  backend: file
  path: %s
schedules:
  - name: nightly
    cron: "0 3 * * *"
    queue: [Deploy, Cleanup]
`, dir, e.statePath)
	if err := os.WriteFile(e.configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

func (e *env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd(RootOptions{
		Version: "test",
		Stdout:  &stdout,
		Stderr:  &stderr,
		Logger:  telemetry.Discard(),
	})
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSetup_CreatesDirectories(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run(t, "setup")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "COMPLETED") {
		t.Errorf("expected COMPLETED pass, got:\n%s", stdout)
	}

	for _, dir := range []string{"releases", "shared"} {
		if info, err := os.Stat(filepath.Join(e.dir, "shop", dir)); err != nil || !info.IsDir() {
			t.Errorf("%s directory should exist: %v", dir, err)
		}
	}
}

func TestCurrent_NoReleases(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run(t, "current")
	if !errors.Is(err, ErrQueueFailed) {
		t.Fatalf("expected ErrQueueFailed, got %v", err)
	}
	if !strings.Contains(stdout, "No release has yet been deployed") {
		t.Errorf("expected message in output, got:\n%s", stdout)
	}
}

func TestRun_Command(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run(t, "run", "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "[local] hello") {
		t.Errorf("expected command output, got:\n%s", stdout)
	}
}

func TestRun_FailingCommandStopsQueue(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run(t, "run", "false", "echo never")
	if !errors.Is(err, ErrQueueFailed) {
		t.Fatalf("expected ErrQueueFailed, got %v", err)
	}
	if !strings.Contains(stdout, "CANCELED") || strings.Contains(stdout, "never") {
		t.Errorf("queue should be canceled before the second command:\n%s", stdout)
	}
}

func TestRun_Parallel(t *testing.T) {
	e := newEnv(t)

	_, stderr, err := e.run(t, "run", "--parallel", "true", "true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "2 commands executed") {
		t.Errorf("unexpected stderr: %s", stderr)
	}

	if _, _, err := e.run(t, "run", "--parallel", "Deploy"); err == nil {
		t.Error("--parallel should reject task names")
	}
}

func TestReleases_JSON(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	store := state.NewFileStore(e.statePath)
	if err := store.Set(ctx, "local", releases.KeyLedger, `{"20240101000000":true,"20240102000000":false}`); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "local", releases.KeyCurrentRelease, "20240101000000"); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := e.run(t, "--json", "releases")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rows []ReleaseRow
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, stdout)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 releases, got %+v", rows)
	}
	if rows[0].Release != 20240102000000 || rows[0].Valid || rows[0].Current {
		t.Errorf("unexpected newest release: %+v", rows[0])
	}
	if rows[1].Release != 20240101000000 || !rows[1].Valid || !rows[1].Current {
		t.Errorf("unexpected current release: %+v", rows[1])
	}
	if rows[1].Date.Year() != 2024 || rows[1].Date.Day() != 1 {
		t.Errorf("release date not parsed: %v", rows[1].Date)
	}
}

func TestSchedules(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run(t, "schedules")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "nightly") || !strings.Contains(stdout, "Deploy,Cleanup") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestHistory_RequiresDatabase(t *testing.T) {
	e := newEnv(t)

	if _, _, err := e.run(t, "history"); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("expected ErrHistoryDisabled, got %v", err)
	}
}

func TestUnknownConnection(t *testing.T) {
	e := newEnv(t)

	if _, _, err := e.run(t, "--on", "missing", "current"); err == nil {
		t.Error("expected unknown connection error")
	}
}

func TestTaskFlags_OnlyChanged(t *testing.T) {
	var flags TaskFlags
	cmd := &cobra.Command{Use: "deploy"}
	flags.BindDeploy(cmd)

	if err := cmd.Flags().Parse([]string{"--tests=false", "--migrate"}); err != nil {
		t.Fatal(err)
	}

	options := flags.Options(cmd)
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %v", options)
	}
	if options[tasks.OptTests] != false || options[tasks.OptMigrate] != true {
		t.Errorf("unexpected options: %v", options)
	}
	if _, ok := options[tasks.OptSeed]; ok {
		t.Error("unset flag should not become an option")
	}
}
