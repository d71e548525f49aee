package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/soilfit/internal/config"
)

var (
	logLevel   string
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "soilfit",
	Short: "Two-layer soil model fitting from resistivity soundings",
	Long: `soilfit estimates the resistivities of a two-layer earth and the depth
of the upper layer from Wenner apparent resistivity measurements, using
the Tagg series and a choice of global and local optimizers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}

		// Reports go to stdout, logs to stderr
		logger = cfg.Logging.Logger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $SOILFIT_CONFIG)")
}
