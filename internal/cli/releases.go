package cli

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// ReleaseRow — релиз в выводе команды releases.
type ReleaseRow struct {
	Connection string    `json:"connection"`
	Stage      string    `json:"stage,omitempty"`
	Release    int64     `json:"release"`
	Date       time.Time `json:"date"`
	Valid      bool      `json:"valid"`
	Current    bool      `json:"current"`
}

// NewReleasesCmd создаёт команду просмотра релизов.
func NewReleasesCmd(appFn AppFn, outputFn OutputFn) *cobra.Command {
	return &cobra.Command{
		Use:   "releases",
		Short: "List releases on every connection and stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := appFn(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			rows, err := listReleases(ctx, app)
			if err != nil {
				return err
			}

			table := make([][]string, len(rows))
			for i, r := range rows {
				marker := ""
				if r.Current {
					marker = "*"
				}
				table[i] = []string{
					r.Connection, dash(r.Stage), strconv.FormatInt(r.Release, 10),
					r.Date.Format(time.DateTime), strconv.FormatBool(r.Valid), marker,
				}
			}
			outputFn().Print([]string{"CONNECTION", "STAGE", "RELEASE", "DATE", "VALID", "CURRENT"}, table, rows)
			return nil
		},
	}
}

func listReleases(ctx context.Context, app *App) ([]ReleaseRow, error) {
	var rows []ReleaseRow
	for _, pass := range app.Scheduler(nil).Matrix(app.Connections()) {
		logger := telemetry.WithStage(telemetry.WithConnection(app.Logger, pass.Connection), pass.Stage)
		manager := releases.New(releases.Config{
			Handle:       pass.Handle(),
			Connection:   pass.Connection,
			Root:         app.Config.RootFor(pass.Connection, pass.Stage),
			Store:        app.Store,
			Connector:    app.Connector,
			Placeholders: app.Config.Paths,
			Logger:       logger,
		})

		ledger, err := manager.ValidationFile(ctx)
		if err != nil {
			return nil, err
		}
		current, err := manager.CurrentRelease(ctx)
		if err != nil && !errors.Is(err, releases.ErrNoReleases) {
			return nil, err
		}
		list, err := manager.SortedReleases(ctx)
		if err != nil {
			return nil, err
		}

		for _, release := range list {
			valid, _ := ledger.Get(release)
			date, _ := time.Parse(releases.TimestampLayout, strconv.FormatInt(release, 10))
			rows = append(rows, ReleaseRow{
				Connection: pass.Connection,
				Stage:      pass.Stage,
				Release:    release,
				Date:       date,
				Valid:      valid,
				Current:    release == current,
			})
		}
	}
	return rows, nil
}
