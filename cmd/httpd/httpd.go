// Package httpd implements the httpd command: the HTTP control surface
// plus loop execution.
package httpd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopace/cmd/common"
	"github.com/jonesrussell/gopace/internal/api"
	"github.com/jonesrussell/gopace/internal/config"
	"github.com/jonesrussell/gopace/internal/executor"
	"github.com/jonesrussell/gopace/internal/logger"
)

// shutdownTimeout bounds the graceful HTTP shutdown on interrupt.
const shutdownTimeout = 30 * time.Second

// Command creates the httpd command.
func Command(load func() (*config.Config, error), debug *bool) *cobra.Command {
	var autostart bool

	cmd := &cobra.Command{
		Use:   "httpd",
		Short: "Serve the HTTP API and drive loops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log, err := common.NewLogger(cfg, *debug)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log, autostart)
		},
	}
	cmd.Flags().BoolVar(&autostart, "autostart", false,
		"start loop execution immediately instead of waiting for the API")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log logger.Logger, autostart bool) error {
	app, err := common.Bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	server := api.NewServer(api.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, api.Dependencies{
		Logger:    log,
		Executor:  app.Executor,
		Limiter:   app.Limiter,
		Cache:     app.Cache,
		Monitor:   app.Monitor,
		Scheduler: app.Scheduler,
		Metrics:   app.Metrics,
		Gatherer:  app.Registry,
	})

	if autostart {
		if err := app.Executor.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("received signal, shutting down", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if app.Executor.State() == executor.StateRunning {
		if err := app.Executor.Stop(stopCtx); err != nil {
			log.Warn("failed to stop executor", logger.Error(err))
		}
	}
	return server.Shutdown(stopCtx)
}
