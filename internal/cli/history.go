package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/repo"
)

// ErrHistoryDisabled — история проходов требует Postgres.
var ErrHistoryDisabled = errors.New("pass history requires state.dsn or DB_URL")

// NewHistoryCmd создаёт команду просмотра истории проходов.
func NewHistoryCmd(appFn AppFn, outputFn OutputFn) *cobra.Command {
	var connection, requestID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded queue passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.PassRepo == nil {
				return ErrHistoryDisabled
			}

			filter := repo.PassFilter{Connection: connection, Limit: limit}
			if requestID != "" {
				id, err := uuid.Parse(requestID)
				if err != nil {
					return fmt.Errorf("invalid request id %q: %w", requestID, err)
				}
				filter.RequestID = &id
			}
			if status != "" {
				filter.Status = domain.ParsePassStatus(strings.ToUpper(status))
			}

			passes, err := app.PassRepo.List(ctx, filter)
			if err != nil {
				return err
			}

			headers := []string{"ID", "CONNECTION", "STAGE", "STATUS", "EXECUTED", "CANCELED_BY", "DURATION", "CREATED"}
			rows := make([][]string, len(passes))
			for i, p := range passes {
				rows[i] = []string{
					p.ID.String(), p.Connection, dash(p.Stage), string(p.Status),
					fmt.Sprintf("%d/%d", p.Executed, len(p.Tasks)), dash(p.CanceledBy),
					p.Duration().Round(time.Millisecond).String(), p.CreatedAt.Format(time.DateTime),
				}
			}
			outputFn().Print(headers, rows, passes)
			return nil
		},
	}

	cmd.Flags().StringVar(&connection, "connection", "", "Filter by connection")
	cmd.Flags().StringVar(&requestID, "request", "", "Filter by deploy request ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED, CANCELED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}
