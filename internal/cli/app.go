package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/queue"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/repo"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/strategies"
	"github.com/shaiso/Rollout/internal/tasks"
)

// ErrQueueFailed — хотя бы один проход очереди не завершился успешно.
var ErrQueueFailed = errors.New("queue failed")

// Globals — общие флаги всех команд.
type Globals struct {
	ConfigPath string
	On         []string
	Stage      string
	JSON       bool
	Concurrent bool
}

// Bind регистрирует общие флаги как persistent.
func (g *Globals) Bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.ConfigPath, "config", "c", "", "Path to rollout.yaml (default $ROLLOUT_CONFIG or ./rollout.yaml)")
	flags.StringSliceVar(&g.On, "on", nil, "Connections to run on (default: connections from config)")
	flags.StringVar(&g.Stage, "stage", "", "Restrict the run to one stage")
	flags.BoolVar(&g.JSON, "json", false, "Output in JSON format")
	flags.BoolVar(&g.Concurrent, "concurrent", false, "Run different connections concurrently")
}

// App — окружение команды: конфигурация и открытые зависимости.
type App struct {
	Globals    *Globals
	Config     *config.Config
	Store      state.Store
	Connector  remote.Connector
	Strategies *strategies.Registry
	Registry   *tasks.Registry
	Recorder   queue.Recorder
	PassRepo   *repo.PassRepo
	Logger     *slog.Logger

	closers []func()
}

// AppFn лениво открывает App после разбора флагов.
type AppFn func(ctx context.Context) (*App, error)

// NewAppFn возвращает AppFn, читающий конфигурацию по пути из флагов.
func NewAppFn(g *Globals, logger *slog.Logger) AppFn {
	return func(ctx context.Context) (*App, error) {
		cfg, err := config.Load(config.ResolvePath(g.ConfigPath))
		if err != nil {
			return nil, err
		}
		return OpenApp(ctx, g, cfg, logger)
	}
}

// OpenApp открывает хранилище, транспорт и историю проходов.
// История подключается, только если задан DSN, и её недоступность не фатальна.
func OpenApp(ctx context.Context, g *Globals, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	strats, err := strategies.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := state.Open(ctx, cfg.State, logger)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	router := remote.NewRouter(cfg, logger)
	app := &App{
		Globals:    g,
		Config:     cfg,
		Store:      store,
		Connector:  router,
		Strategies: strats,
		Registry:   tasks.DefaultRegistry(),
		Logger:     logger,
		closers: []func(){
			closeStore,
			func() { _ = router.Close() },
		},
	}

	if cfg.State.DSN != "" {
		app.openHistory(ctx)
	}
	return app, nil
}

func (a *App) openHistory(ctx context.Context) {
	pool, err := repo.NewPool(ctx, a.Config.State.DSN)
	if err != nil {
		a.Logger.Warn("pass history disabled", "error", err)
		return
	}
	passes := repo.NewPassRepo(pool)
	if err := passes.EnsureSchema(ctx); err != nil {
		pool.Close()
		a.Logger.Warn("pass history disabled", "error", err)
		return
	}
	a.PassRepo = passes
	a.Recorder = passes
	a.closers = append(a.closers, pool.Close)
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Scheduler создаёт планировщик с опциями команды.
func (a *App) Scheduler(options map[string]any) *queue.Scheduler {
	return queue.New(queue.Config{
		Config:     a.Config,
		Registry:   a.Registry,
		Strategies: a.Strategies,
		Connector:  a.Connector,
		Store:      a.Store,
		Options:    options,
		Stage:      a.Globals.Stage,
		Concurrent: a.Globals.Concurrent,
		Recorder:   a.Recorder,
		Logger:     a.Logger,
	})
}

// Connections возвращает соединения из --on или из конфигурации.
func (a *App) Connections() []string {
	if len(a.Globals.On) > 0 {
		return a.Globals.On
	}
	return a.Config.DefaultConnections()
}

// TaskFlags — флаги, превращающиеся в опции задач.
// В опции попадают только явно указанные флаги.
type TaskFlags struct {
	Tests    bool
	Migrate  bool
	Seed     bool
	Parallel bool
	Release  int64
	CleanAll bool
}

// BindDeploy регистрирует флаги деплоя.
func (f *TaskFlags) BindDeploy(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.Tests, "tests", false, "Run the test suite before activating the release")
	cmd.Flags().BoolVar(&f.Migrate, "migrate", false, "Run database migrations")
	cmd.Flags().BoolVar(&f.Seed, "seed", false, "Seed the database after migrating")
}

// BindParallel регистрирует флаг parallel.
func (f *TaskFlags) BindParallel(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.Parallel, "parallel", false, "Run commands through the parallel engine")
}

// Options возвращает опции для явно заданных флагов.
func (f *TaskFlags) Options(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	set := func(flag, option string, value any) {
		if fl := cmd.Flags().Lookup(flag); fl != nil && fl.Changed {
			out[option] = value
		}
	}
	set("tests", tasks.OptTests, f.Tests)
	set("migrate", tasks.OptMigrate, f.Migrate)
	set("seed", tasks.OptSeed, f.Seed)
	set("parallel", tasks.OptParallel, f.Parallel)
	set("release", tasks.OptRelease, f.Release)
	set("clean-all", tasks.OptCleanAll, f.CleanAll)
	return out
}
