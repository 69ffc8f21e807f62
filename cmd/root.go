package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "taskhub",
	Short: "Task management API server",
	Long: `taskhub serves the task management API and ships the operator
commands that go with it (migrations, the mail worker, account bootstrap).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
