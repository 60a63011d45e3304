package main

import (
	"fmt"
	"os"

	"github.com/Harshitk-cp/cognicore/internal/buildconfig"
	"github.com/Harshitk-cp/cognicore/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cognicore",
		Short:        "Autonomous cognitive core for digital employees",
		Version:      buildconfig.Version(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load()
		},
	}
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	return cmd
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.LogLevel())
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", config.LogLevel(), err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
