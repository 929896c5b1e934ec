// Package app provides the command-line entry points for the processor.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/config"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
)

const envFileFlag = "env-file"

// NewRootCmd creates the root command with its subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "processor",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Atmos staging data processor",
		Long: `Moves weather-station readings from the MongoDB staging collection into the
valor_capturado table, driven by the change feed, MQTT messages, a schedule or
an explicit trigger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringSlice(envFileFlag, nil, "Environment files to load before reading the environment (default .env)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSyncCmd())
	return root
}

// setup loads configuration and builds the logger shared by every command.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	files, err := cmd.Flags().GetStringSlice(envFileFlag)
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, logger, nil
}
