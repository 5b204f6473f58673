// Package run implements the run command: loop execution without the HTTP
// surface.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopace/cmd/common"
	"github.com/jonesrussell/gopace/internal/config"
	"github.com/jonesrussell/gopace/internal/logger"
)

// stopTimeout bounds the graceful shutdown on interrupt.
const stopTimeout = 30 * time.Second

// Command creates the run command.
func Command(load func() (*config.Config, error), debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configured behavioral loops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log, err := common.NewLogger(cfg, *debug)
			if err != nil {
				return err
			}
			return runLoops(cmd.Context(), cfg, log)
		},
	}
}

func runLoops(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	app, err := common.Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	if err := app.Executor.Start(ctx); err != nil {
		return err
	}

	log.Info("running loops",
		logger.String("profile", cfg.Profile),
		logger.Int("loops", len(app.Executor.Status().Loops)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("received signal, stopping", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return app.Executor.Stop(stopCtx)
}
