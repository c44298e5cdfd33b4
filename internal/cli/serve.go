package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtroode/kurisync/internal/api/http/handler"
	"github.com/dtroode/kurisync/internal/api/http/router"
	"github.com/dtroode/kurisync/internal/scheduler"
	"github.com/dtroode/kurisync/internal/server"
	"github.com/dtroode/kurisync/internal/service"
	"github.com/dtroode/kurisync/internal/token"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read API and the sync schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, !noScheduler)
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without running scheduled jobs")

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, schedule bool) error {
	cfg, log := opts.cfg, opts.logger

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	var sched *scheduler.Scheduler
	if schedule {
		sched, err = scheduler.New(a.sync, scheduler.Config{
			RegistrySchedule: cfg.Sync.RegistrySchedule,
			StatusSchedule:   cfg.Sync.StatusSchedule,
			RunOnStart:       cfg.Sync.RunOnStart,
		}, log)
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	tokens := service.NewTokenService(token.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL), log)
	h := handler.New(a.query, a.sync, a.stores, log)
	engine := router.New(h, tokens, a.metrics, cfg.HTTP.CORSOrigins, log).Register()

	httpServer := server.NewHTTPServer(engine, fmt.Sprintf(":%s", cfg.HTTP.Port))
	sl := server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", "address", httpServer.Address(), "https", cfg.HTTP.EnableHTTPS)
		errc <- httpServer.Start(sl)
	}()

	select {
	case <-ctx.Done():
		log.Info("received interruption signal, shutting down")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduled jobs did not stop in time", "error", err)
		}
	}

	log.Info("shutdown complete")
	return nil
}
