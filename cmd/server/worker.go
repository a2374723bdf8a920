package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/auddy/backend/internal/config"
	"github.com/auddy/backend/internal/logger"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued extraction jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, ctx.log)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.QueueDriver != config.DriverRedis || cfg.StoreDriver != config.DriverPostgres {
		return errors.New("worker needs the postgres store and redis queue")
	}

	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	dispatch := a.dispatcher(true)
	dispatch.Start()
	log.Info(ctx, "worker started", logger.Fields{"workers": cfg.WorkerCount})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return dispatch.Stop(shutdownCtx)
}
