package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/config"
	httpserver "github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/http"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/mqtt"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/watcher"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the processor service",
		Long: `Run the HTTP API together with the change-feed watcher, the MQTT subscriber
and the optional sync schedule until SIGINT or SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	comps, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.close(logger)

	return serve(ctx, cfg, comps, logger)
}

func serve(ctx context.Context, cfg config.Config, comps *components, logger *zap.Logger) error {
	coalescer := watcher.New(
		comps.staging,
		comps.orchestrator,
		watcher.WithReconnectInterval(cfg.ReconnectInterval),
		watcher.WithLogger(logger),
		watcher.WithMetrics(comps.metrics),
	)

	srv := httpserver.New(cfg, httpserver.Deps{
		Syncer:   comps.orchestrator,
		State:    coalescer,
		Mongo:    comps.staging,
		Postgres: comps.store,
		Metrics:  comps.metrics.Handler(),
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.WatcherEnabled {
		g.Go(func() error { return coalescer.Start(gctx) })
	} else {
		logger.Info("change feed watcher disabled")
	}

	if cfg.MQTT.Enabled {
		processor := mqtt.NewProcessor(
			mqtt.NewTransformer(comps.store),
			comps.writer,
			comps.staging,
			mqtt.WithLogger(logger),
			mqtt.WithMetrics(comps.metrics),
		)
		sub := mqtt.NewSubscriber(cfg.MQTT, processor, logger)
		g.Go(func() error { return sub.Run(gctx) })
	} else {
		logger.Info("mqtt subscriber disabled")
	}

	if cfg.SyncSchedule != "" {
		g.Go(func() error { return watcher.RunSchedule(gctx, cfg.SyncSchedule, coalescer, logger) })
	}

	if cfg.SyncOnStartup {
		coalescer.Notify()
	}

	logger.Info("processor started", zap.String("addr", cfg.ListenAddr()))
	err := g.Wait()

	coalescer.Wait()
	logger.Info("processor stopped")
	return err
}
