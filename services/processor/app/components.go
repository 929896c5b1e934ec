package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/config"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/db"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/metadata"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/metrics"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/staging"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/syncer"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/transform"
)

// components are the stores and the orchestrator every command needs.
type components struct {
	store        *db.Store
	staging      *staging.Store
	writer       *db.Writer
	metrics      *metrics.Metrics
	orchestrator *syncer.Orchestrator
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*components, error) {
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connection error: %w", err)
	}

	stg, err := staging.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("mongo connection error: %w", err)
	}

	m := metrics.New()
	writer := db.NewWriter(store.Pool())
	orchestrator := syncer.New(
		stg,
		transform.New(metadata.New(store)),
		writer,
		syncer.WithLogger(logger),
		syncer.WithMetrics(m),
	)

	logger.Info("connected to backing stores",
		zap.String("mongo_database", cfg.MongoDatabase),
		zap.String("mongo_collection", cfg.MongoCollection))

	return &components{
		store:        store,
		staging:      stg,
		writer:       writer,
		metrics:      m,
		orchestrator: orchestrator,
	}, nil
}

func (c *components) close(logger *zap.Logger) {
	if err := c.staging.Close(context.Background()); err != nil {
		logger.Warn("mongo disconnect", zap.Error(err))
	}
	c.store.Close()
}
