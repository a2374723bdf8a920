package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/auddy/backend/internal/api"
	"github.com/auddy/backend/internal/config"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/health"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var workers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: "Run the HTTP API. With --workers (the default) jobs are also processed\n" +
			"in this process; disable it when separate worker processes consume the queue.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, ctx.log, workers)
		},
	}
	cmd.Flags().BoolVar(&workers, "workers", true, "Process jobs in this process")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, workers bool) error {
	if !workers && (cfg.QueueDriver == config.DriverMemory || cfg.StoreDriver == config.DriverMemory) {
		return errors.New("--workers=false needs the postgres store and redis queue; in-memory jobs would never run")
	}

	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	dispatch := a.dispatcher(workers)
	dispatch.Start()

	service := extraction.NewService(a.repo, dispatch, log)
	hub := websocket.NewHub(dispatch, &websocket.HubConfig{Logger: log, Metrics: a.metrics})

	router := api.NewRouter(&api.RouterConfig{
		Extraction:      service,
		Health:          health.NewHandler(a.healthChecker(dispatch)),
		Metrics:         a.metrics,
		WebSocket:       websocket.NewHandler(hub, service, cfg.CORSOrigins, log),
		Logger:          log,
		CORSOrigins:     cfg.CORSOrigins,
		SubmitRateLimit: cfg.SubmitRateLimit,
		SubmitRateBurst: cfg.SubmitRateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting", logger.Fields{
			"addr":    cfg.ServerAddr,
			"workers": workers,
			"store":   cfg.StoreDriver,
			"queue":   cfg.QueueDriver,
			"mirror":  cfg.StorageDriver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			dispatch.Stop(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WarnErr(shutdownCtx, "http shutdown", err)
	}
	return dispatch.Stop(shutdownCtx)
}
