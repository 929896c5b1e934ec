package app

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and print its summary",
		RunE:  runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
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

	summary, runErr := comps.orchestrator.Run(ctx)
	if err := printSummary(cmd, summary); err != nil {
		logger.Error("print summary", zap.Error(err))
	}
	return runErr
}

func printSummary(cmd *cobra.Command, summary *models.RunSummary) error {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("format summary: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
