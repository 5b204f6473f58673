// Package schedule implements the schedule command: enqueue interactions
// into a profile's durable schedule.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopace/cmd/common"
	"github.com/jonesrussell/gopace/internal/config"
	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/scheduler"
)

// Command creates the schedule command.
func Command(load func() (*config.Config, error), debug *bool) *cobra.Command {
	var (
		actionType   string
		target       string
		targets      []string
		delaySeconds int
		priority     float64
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Queue an interaction for later execution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log, err := common.NewLogger(cfg, *debug)
			if err != nil {
				return err
			}

			parsed, err := domain.ParseActionType(actionType)
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

			if len(targets) > 0 {
				scheduled, bulkErr := sched.ScheduleBulk(ctx, parsed, targets)
				if bulkErr != nil {
					return bulkErr
				}
				fmt.Printf("scheduled %d %s interactions\n", scheduled, parsed)
				return nil
			}

			if target == "" {
				return errors.New("either --target or --targets is required")
			}

			req := scheduler.Request{Type: parsed, Target: target, Priority: priority}
			if cmd.Flags().Changed("delay") {
				d := time.Duration(delaySeconds) * time.Second
				req.Delay = &d
			}

			id, err := sched.Schedule(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("scheduled %s for %s: %s\n", parsed, target, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&actionType, "type", "", "action type (tweets, follows, likes, ...)")
	cmd.Flags().StringVar(&target, "target", "", "target identifier")
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "bulk target identifiers")
	cmd.Flags().IntVar(&delaySeconds, "delay", 0, "explicit delay in seconds (default: randomized)")
	cmd.Flags().Float64Var(&priority, "priority", scheduler.DefaultPriority, "priority for tie-breaking")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
