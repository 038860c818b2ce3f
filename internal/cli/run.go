package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/queue"
	"github.com/shaiso/Rollout/internal/tasks"
)

// OutputFn создаёт Output после разбора флагов.
type OutputFn func() *Output

// NewTaskCmds создаёт команды, запускающие встроенные задачи.
func NewTaskCmds(appFn AppFn, outputFn OutputFn) []*cobra.Command {
	return []*cobra.Command{
		newDeployCmd(appFn, outputFn),
		newRollbackCmd(appFn, outputFn),
		newTaskCmd(appFn, outputFn, "setup", (&tasks.Setup{}).Name(), (&tasks.Setup{}).Description()),
		newCleanupCmd(appFn, outputFn),
		newTaskCmd(appFn, outputFn, "current", (&tasks.Current{}).Name(), (&tasks.Current{}).Description()),
		newTaskCmd(appFn, outputFn, "test", (&tasks.Test{}).Name(), (&tasks.Test{}).Description()),
		newRunCmd(appFn, outputFn),
	}
}

func newDeployCmd(appFn AppFn, outputFn OutputFn) *cobra.Command {
	var flags TaskFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: (&tasks.Deploy{}).Description(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueue(cmd.Context(), appFn, outputFn(), flags.Options(cmd), queue.Task("Deploy"))
		},
	}
	flags.BindDeploy(cmd)
	return cmd
}

func newRollbackCmd(appFn AppFn, outputFn OutputFn) *cobra.Command {
	var flags TaskFlags

	cmd := &cobra.Command{
		Use:   "rollback [RELEASE]",
		Short: (&tasks.Rollback{}).Description(),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := flags.Options(cmd)
			if len(args) == 1 {
				options[tasks.OptRelease] = args[0]
			}
			return runQueue(cmd.Context(), appFn, outputFn(), options, queue.Task("Rollback"))
		},
	}
	return cmd
}

func newCleanupCmd(appFn AppFn, outputFn OutputFn) *cobra.Command {
	var flags TaskFlags

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: (&tasks.Cleanup{}).Description(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueue(cmd.Context(), appFn, outputFn(), flags.Options(cmd), queue.Task("Cleanup"))
		},
	}
	cmd.Flags().BoolVar(&flags.CleanAll, "clean-all", false, "Remove every release except the current one")
	return cmd
}

func newTaskCmd(appFn AppFn, outputFn OutputFn, use, task, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueue(cmd.Context(), appFn, outputFn(), nil, queue.Task(task))
		},
	}
}

func newRunCmd(appFn AppFn, outputFn OutputFn) *cobra.Command {
	var flags TaskFlags

	cmd := &cobra.Command{
		Use:   "run ENTRY...",
		Short: "Run a queue of tasks and shell commands",
		Long: `Run a queue of entries on every connection and stage.

Each entry is either the name of a registered task (Deploy, Cleanup, ...)
or a shell command. With --parallel all entries must be commands; they are
dispatched together on the first default connection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			out := outputFn()
			entries := queue.ParseAll(app.Registry, args)
			sched := app.Scheduler(flags.Options(cmd))

			if flags.Parallel {
				for _, e := range entries {
					if e.Kind() != queue.KindCommand {
						return fmt.Errorf("--parallel accepts only shell commands, got task %q", e)
					}
				}
				ok, err := sched.Execute(ctx, args)
				if err != nil {
					return err
				}
				if !ok {
					return ErrQueueFailed
				}
				out.Success(fmt.Sprintf("%d commands executed", len(args)))
				return nil
			}

			return execute(ctx, app, out, sched, entries)
		},
	}
	flags.BindParallel(cmd)
	return cmd
}

// runQueue открывает App и выполняет очередь на выбранных соединениях.
func runQueue(ctx context.Context, appFn AppFn, out *Output, options map[string]any, entries ...queue.Entry) error {
	app, err := appFn(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	return execute(ctx, app, out, app.Scheduler(options), entries)
}

func execute(ctx context.Context, app *App, out *Output, sched *queue.Scheduler, entries []queue.Entry) error {
	report, err := sched.On(ctx, app.Connections(), entries)
	if err != nil {
		return err
	}

	out.Report(report)
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%w on %d of %d passes", ErrQueueFailed, len(failed), len(report.Passes))
	}
	return nil
}
