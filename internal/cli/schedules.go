package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/scheduler"
)

// ScheduleRow — расписание в выводе команды schedules.
type ScheduleRow struct {
	Name        string    `json:"name"`
	Cron        string    `json:"cron"`
	Timezone    string    `json:"timezone,omitempty"`
	Queue       []string  `json:"queue"`
	Connections []string  `json:"connections,omitempty"`
	NextDue     time.Time `json:"next_due"`
}

// NewSchedulesCmd создаёт команду просмотра расписаний агента.
func NewSchedulesCmd(g *Globals, outputFn OutputFn) *cobra.Command {
	return &cobra.Command{
		Use:   "schedules",
		Short: "List cron schedules from the config and their next trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.ResolvePath(g.ConfigPath))
			if err != nil {
				return err
			}
			rows, err := scheduleRows(cfg, time.Now)
			if err != nil {
				return err
			}

			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{
					r.Name, r.Cron, dash(r.Timezone), strings.Join(r.Queue, ","),
					dash(strings.Join(r.Connections, ",")), r.NextDue.Format(time.RFC3339),
				}
			}
			outputFn().Print([]string{"NAME", "CRON", "TIMEZONE", "QUEUE", "CONNECTIONS", "NEXT_DUE"}, table, rows)
			return nil
		},
	}
}

func scheduleRows(cfg *config.Config, now func() time.Time) ([]ScheduleRow, error) {
	sched, err := scheduler.New(scheduler.Config{Schedules: cfg.Schedules, Now: now})
	if err != nil {
		return nil, err
	}

	byName := make(map[string]config.Schedule, len(cfg.Schedules))
	for _, s := range cfg.Schedules {
		byName[s.Name] = s
	}

	rows := make([]ScheduleRow, 0, len(cfg.Schedules))
	for _, name := range sched.Names() {
		def := byName[name]
		next, _ := sched.Next(name)
		rows = append(rows, ScheduleRow{
			Name:        name,
			Cron:        def.Cron,
			Timezone:    def.Timezone,
			Queue:       def.Queue,
			Connections: def.Connections,
			NextDue:     next,
		})
	}
	return rows, nil
}
