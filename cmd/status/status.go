// Package status implements the status command: a table view of a
// profile's persisted schedule and execution history.
package status

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopace/cmd/common"
	"github.com/jonesrussell/gopace/internal/config"
	"github.com/jonesrussell/gopace/internal/scheduler"
)

// recentLogEntries bounds the execution history shown.
const recentLogEntries = 10

// Command creates the status command.
func Command(load func() (*config.Config, error), debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the profile's schedule and recent executions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log, err := common.NewLogger(cfg, *debug)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := common.NewStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sched := scheduler.New(ctx, store, scheduler.WithLogger(log))
			stats := sched.Stats()

			fmt.Printf("profile: %s (scheduler enabled: %t)\n\n", cfg.Profile, stats.Enabled)
			renderScheduled(stats)
			renderUpcoming(sched)
			return nil
		},
	}
}

// renderScheduled prints per-type queue and execution counts.
func renderScheduled(stats scheduler.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Type", "Queued", "Last Hour", "Today"})

	for actionType, queued := range stats.ScheduledByType {
		t.AppendRow(table.Row{
			actionType,
			queued,
			stats.ExecutionsLastHour[actionType],
			stats.ExecutionsToday[actionType],
		})
	}
	for actionType, count := range stats.ExecutionsToday {
		if _, queued := stats.ScheduledByType[actionType]; queued {
			continue
		}
		t.AppendRow(table.Row{
			actionType,
			0,
			stats.ExecutionsLastHour[actionType],
			count,
		})
	}

	t.AppendFooter(table.Row{"total", stats.TotalScheduled, "", ""})
	t.Render()
	fmt.Printf("execution log entries: %d\n\n", stats.TotalLogEntries)
}

// renderUpcoming prints the next due interactions.
func renderUpcoming(sched *scheduler.Scheduler) {
	ready := sched.Ready(recentLogEntries)
	if len(ready) == 0 {
		fmt.Println("no interactions due")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Type", "Target", "Scheduled", "Attempts"})
	for i := range ready {
		in := &ready[i]
		t.AppendRow(table.Row{
			in.ID,
			in.Type,
			in.Target,
			in.ScheduledAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d/%d", in.Attempts, in.MaxAttempts),
		})
	}
	t.Render()
}
