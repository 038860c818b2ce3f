package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/mq"
)

// NewRequestCmd создаёт команду отправки запроса агенту.
func NewRequestCmd(g *Globals, outputFn OutputFn, logger *slog.Logger) *cobra.Command {
	var flags TaskFlags

	cmd := &cobra.Command{
		Use:   "request ENTRY...",
		Short: "Send a deploy request to the agent through RabbitMQ",
		Long: `Publish a queue to deploys.requested. The agent runs it on the
connections from --on (or the defaults from its own config) and
publishes the outcome to deploys.completed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(config.ResolvePath(g.ConfigPath))
			if err != nil {
				return err
			}

			conn, err := mq.NewConnection(cfg.Broker.URL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}

			req := domain.NewDeployRequest(args, g.On, domain.SourceCLI)
			req.Stage = g.Stage
			for k, v := range flags.Options(cmd) {
				req.Options[k] = v
			}

			if err := mq.NewPublisher(conn, logger).PublishDeployRequested(ctx, req); err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Request queued: %s", req.ID))
			out.Print(
				[]string{"ID", "QUEUE", "CONNECTIONS", "STAGE"},
				[][]string{{req.ID.String(), fmt.Sprint(req.Queue), fmt.Sprint(req.Connections), dash(req.Stage)}},
				req,
			)
			return nil
		},
	}
	flags.BindDeploy(cmd)
	return cmd
}
