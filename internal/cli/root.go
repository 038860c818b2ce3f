package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions — параметры корневой команды.
type RootOptions struct {
	Version string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// NewRootCmd собирает дерево команд rollout.
func NewRootCmd(opts RootOptions) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	g := &Globals{}
	root := &cobra.Command{
		Use:           "rollout",
		Short:         "Rollout — remote deployment orchestrator",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.Bind(root)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	appFn := NewAppFn(g, opts.Logger)
	outputFn := func() *Output { return NewOutputTo(opts.Stdout, opts.Stderr, g.JSON) }

	root.AddCommand(NewTaskCmds(appFn, outputFn)...)
	root.AddCommand(
		NewReleasesCmd(appFn, outputFn),
		NewHistoryCmd(appFn, outputFn),
		NewRequestCmd(g, outputFn, opts.Logger),
		NewSchedulesCmd(g, outputFn),
	)
	return root
}
