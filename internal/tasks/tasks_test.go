package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/remote/remotetest"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/strategies"
	"github.com/shaiso/Rollout/internal/telemetry"
)

const testConfigYAML = `
application_name: shop
root_directory: /var/www
keep_releases: 2
connections:
  production:
    host: prod.example.com
repository:
  url: git@example.com:shop.git
permissions:
  files: ["{path.storage}"]
  user: www-data
shared:
  - "{path.storage}/logs"
`

const (
	appRoot    = "/var/www/shop"
	newRelease = int64(20240102030405)
)

// registryRunner выполняет вложенные задачи напрямую из реестра.
type registryRunner struct {
	registry *Registry
	executed []string
}

func (r *registryRunner) ExecuteTask(ctx context.Context, tc *Context, name string) (Result, error) {
	r.executed = append(r.executed, name)
	task, err := r.registry.Build(name)
	if err != nil {
		return Result{Failed: true}, err
	}
	return task.Execute(ctx, tc)
}

type fixture struct {
	tc     *Context
	fake   *remotetest.Fake
	store  *state.MemoryStore
	runner *registryRunner
}

func newFixture(t *testing.T, ledger string, options map[string]any) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg, err := config.Parse([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	store := state.NewMemoryStore()
	if ledger != "" {
		if err := store.Set(ctx, "production", releases.KeyLedger, ledger); err != nil {
			t.Fatal(err)
		}
	}

	fake := remotetest.NewFake()
	mgr := releases.New(releases.Config{
		Connection:   "production",
		Root:         cfg.RootFor("production", ""),
		Store:        store,
		Connector:    fake,
		Placeholders: cfg.Paths,
		Now:          func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		Logger:       telemetry.Discard(),
	})

	strats, err := strategies.FromConfig(cfg)
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}

	runner := &registryRunner{registry: DefaultRegistry()}
	tc := &Context{
		Connection: "production",
		Options:    MergeOptions(cfg.Options, options),
		Logger:     telemetry.Discard(),
		Config:     cfg,
		Connector:  fake,
		Releases:   mgr,
		Strategies: strats,
		Runner:     runner,
	}

	return &fixture{tc: tc, fake: fake, store: store, runner: runner}
}

func (f *fixture) pointer(t *testing.T) string {
	t.Helper()
	v, _, _ := f.store.Get(context.Background(), "production", releases.KeyCurrentRelease)
	return v
}

func (f *fixture) hasCommand(substr string) bool {
	for _, cmd := range f.fake.Commands() {
		if strings.Contains(cmd, substr) {
			return true
		}
	}
	return false
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	want := []string{"Cleanup", "CreateRelease", "Current", "Dependencies", "Deploy", "Migrate", "Rollback", "Setup", "Test"}
	if strings.Join(r.Names(), ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, r.Names())
	}

	task, err := r.Build("Deploy")
	if err != nil || task.Name() != "Deploy" {
		t.Errorf("unexpected task %v err=%v", task, err)
	}

	if _, err := r.Build("Nope"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestCommandTask(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.Respond("false", remote.Result{Output: "boom", Success: false})

	res, err := NewCommandTask("echo ok").Execute(context.Background(), f.tc)
	if err != nil || !res.OK() {
		t.Errorf("expected success, got %+v err=%v", res, err)
	}

	res, err = NewCommandTask("false").Execute(context.Background(), f.tc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK() || res.Output != "boom" {
		t.Errorf("expected failure with output, got %+v", res)
	}
}

func TestCallbackTask(t *testing.T) {
	f := newFixture(t, "", nil)

	var seen string
	task := NewCallbackTask("", func(_ context.Context, tc *Context) (Result, error) {
		seen = tc.Connection
		return Success("done"), nil
	})

	if task.Name() != "Closure" {
		t.Errorf("expected default label, got %s", task.Name())
	}
	res, _ := task.Execute(context.Background(), f.tc)
	if !res.OK() || seen != "production" {
		t.Errorf("callback should see the pass connection, got %q", seen)
	}
}

func TestContext_ExecuteTaskWithoutRunner(t *testing.T) {
	tc := &Context{}
	if _, err := tc.ExecuteTask(context.Background(), "Setup"); !errors.Is(err, ErrNoRunner) {
		t.Errorf("expected ErrNoRunner, got %v", err)
	}
}

func TestSetup(t *testing.T) {
	f := newFixture(t, "", nil)

	res, err := (&Setup{}).Execute(context.Background(), f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
	want := "mkdir -p " + appRoot + "/releases " + appRoot + "/shared " + appRoot + "/shared/app/storage"
	if cmds := f.fake.Commands(); len(cmds) != 1 || cmds[0] != want {
		t.Errorf("expected %q, got %v", want, cmds)
	}
}

func TestDeploy_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, `{"10000000000000":true,"20000000000000":true}`, nil)

	res, err := (&Deploy{}).Execute(ctx, f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}

	if strings.Join(f.runner.executed, ",") != "CreateRelease,Dependencies" {
		t.Errorf("unexpected task order: %v", f.runner.executed)
	}
	if got := f.pointer(t); got != "20240102030405" {
		t.Errorf("expected pointer on new release, got %s", got)
	}

	ledger, _ := f.tc.Releases.ValidationFile(ctx)
	if valid, _ := ledger.Get(newRelease); !valid {
		t.Error("deployed release must be marked valid")
	}

	if !f.hasCommand("git clone --depth 1 -b master git@example.com:shop.git " + appRoot + "/releases/20240102030405") {
		t.Errorf("clone command missing: %v", f.fake.Commands())
	}
	if !f.hasCommand("chmod -R 755 " + appRoot + "/releases/20240102030405/app/storage") {
		t.Errorf("permissions command missing: %v", f.fake.Commands())
	}
	if !f.hasCommand("cp -a " + appRoot + "/releases/20000000000000/app/storage/logs") {
		t.Errorf("shared sync missing: %v", f.fake.Commands())
	}
	if !f.hasCommand("ln -sfn " + appRoot + "/releases/20240102030405 " + appRoot + "/current-tmp") {
		t.Errorf("symlink swap missing: %v", f.fake.Commands())
	}
}

func TestDeploy_RunsSetupWhenNotReady(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.Respond("test -d", remote.Result{Success: false})

	res, err := (&Deploy{}).Execute(context.Background(), f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
	if len(f.runner.executed) == 0 || f.runner.executed[0] != "Setup" {
		t.Errorf("expected Setup first, got %v", f.runner.executed)
	}
}

func TestDeploy_RollbackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		options  map[string]any
		failing  string
		executed string
	}{
		{
			name:     "create release",
			failing:  "git clone",
			executed: "CreateRelease,Rollback",
		},
		{
			name:     "dependencies",
			failing:  "composer install",
			executed: "CreateRelease,Dependencies,Rollback",
		},
		{
			name:     "tests",
			options:  map[string]any{OptTests: true},
			failing:  "phpunit",
			executed: "CreateRelease,Dependencies,Test,Rollback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, `{"10000000000000":true,"20000000000000":true}`, tt.options)
			f.fake.Respond(tt.failing, remote.Result{Output: "exit 1", Success: false})

			res, err := (&Deploy{}).Execute(ctx, f.tc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.OK() {
				t.Fatal("deploy must fail")
			}
			if got := strings.Join(f.runner.executed, ","); got != tt.executed {
				t.Errorf("expected %s, got %s", tt.executed, got)
			}
			if got := f.pointer(t); got != "20000000000000" {
				t.Errorf("pointer should be rolled back, got %s", got)
			}

			ledger, _ := f.tc.Releases.ValidationFile(ctx)
			if valid, ok := ledger.Get(newRelease); !ok || valid {
				t.Error("failed release must stay in ledger as invalid")
			}
		})
	}
}

func TestDeploy_RollbackOnFailure_FirstDeploy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "", nil)
	f.fake.Respond("git clone", remote.Result{Output: "exit 1", Success: false})

	res, err := (&Deploy{}).Execute(ctx, f.tc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK() {
		t.Fatal("deploy must fail")
	}
	if got := strings.Join(f.runner.executed, ","); got != "CreateRelease,Rollback" {
		t.Errorf("expected CreateRelease,Rollback, got %s", got)
	}
	// Предыдущего релиза нет: current не должен указывать на сломанный релиз
	if f.hasCommand("ln -sfn") {
		t.Errorf("symlink must not be switched after a failed first deploy: %v", f.fake.Commands())
	}
}

func TestRollback_NoPreviousRelease(t *testing.T) {
	f := newFixture(t, `{"20000000000000":false}`, nil)

	res, err := (&Rollback{}).Execute(context.Background(), f.tc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK() {
		t.Error("rollback without a valid release must fail")
	}
	if f.hasCommand("ln -sfn") {
		t.Errorf("symlink must not be switched: %v", f.fake.Commands())
	}
}

func TestDeploy_MigrationFailureOnlyWarns(t *testing.T) {
	f := newFixture(t, `{"20000000000000":true}`, map[string]any{OptMigrate: true, OptSeed: true})
	f.fake.Respond("php artisan migrate", remote.Result{Success: false})

	res, err := (&Deploy{}).Execute(context.Background(), f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("deploy should succeed, got %+v err=%v", res, err)
	}
	if !f.hasCommand("php artisan db:seed --force") {
		t.Errorf("seed should be requested: %v", f.fake.Commands())
	}
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, `{"10000000000000":true,"15000000000000":false,"20000000000000":true}`, nil)

	res, err := (&Rollback{}).Execute(ctx, f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
	if got := f.pointer(t); got != "10000000000000" {
		t.Errorf("expected rollback to 10000000000000, got %s", got)
	}
	if !f.hasCommand("ln -sfn " + appRoot + "/releases/10000000000000") {
		t.Errorf("symlink not switched: %v", f.fake.Commands())
	}
}

func TestRollback_ExplicitRelease(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, `{"10000000000000":true,"20000000000000":true}`, map[string]any{OptRelease: "15000000000000"})
	res, err := (&Rollback{}).Execute(ctx, f.tc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK() {
		t.Error("rollback to unknown release must fail")
	}

	f = newFixture(t, `{"10000000000000":false,"20000000000000":true}`, map[string]any{OptRelease: int64(10000000000000)})
	res, _ = (&Rollback{}).Execute(ctx, f.tc)
	if !res.OK() {
		t.Fatalf("unexpected failure: %s", res.Output)
	}
	if got := f.pointer(t); got != "10000000000000" {
		t.Errorf("expected explicit release, got %s", got)
	}
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, `{"10000000000000":true,"15000000000000":false,"20000000000000":true,"30000000000000":true}`, nil)

	res, err := (&Cleanup{}).Execute(context.Background(), f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}

	// keep_releases: 2 — остаются текущий и один предыдущий
	want := "rm -rf " + appRoot + "/releases/15000000000000 " + appRoot + "/releases/10000000000000"
	if !f.hasCommand(want) {
		t.Errorf("expected %q, got %v", want, f.fake.Commands())
	}

	ledger, _ := f.tc.Releases.ValidationFile(context.Background())
	if ledger.Len() != 4 {
		t.Error("cleanup must not touch the ledger")
	}
}

func TestCleanup_NothingToDo(t *testing.T) {
	f := newFixture(t, "", nil)

	res, err := (&Cleanup{}).Execute(context.Background(), f.tc)
	if err != nil || !res.OK() {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
	if len(f.fake.Commands()) != 0 {
		t.Errorf("no commands expected, got %v", f.fake.Commands())
	}
}

func TestCurrent(t *testing.T) {
	f := newFixture(t, `{"20000000000000":false}`, nil)

	res, _ := (&Current{}).Execute(context.Background(), f.tc)
	if res.Output != "20000000000000 (invalid)" {
		t.Errorf("unexpected output %q", res.Output)
	}

	f = newFixture(t, "", nil)
	res, err := (&Current{}).Execute(context.Background(), f.tc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK() {
		t.Error("no releases should be reported as failure")
	}
}

func TestOptions(t *testing.T) {
	o := MergeOptions(map[string]any{OptTests: false, OptRelease: "1"}, map[string]any{OptTests: "true"})

	if !o.Bool(OptTests) {
		t.Error("later set should override")
	}
	if o.Int64(OptRelease) != 1 {
		t.Errorf("expected 1, got %d", o.Int64(OptRelease))
	}
	if o.Bool("missing") || o.String("missing") != "" {
		t.Error("missing options are zero")
	}
	// Числа из JSON приходят как float64
	numeric := Options{"a": float64(1), "b": float64(0), "c": int64(2)}
	if !numeric.Bool("a") || numeric.Bool("b") || !numeric.Bool("c") {
		t.Errorf("numeric options misread: a=%v b=%v c=%v", numeric.Bool("a"), numeric.Bool("b"), numeric.Bool("c"))
	}
}
