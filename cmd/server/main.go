package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"perfreview/internal/platform/config"
	"perfreview/internal/platform/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "perfreview",
	Short:         "Performance evaluation service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, tokenCmd)
}

// bootstrap loads configuration and the process logger shared by every subcommand.
func bootstrap(validate bool) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return config.Config{}, nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "perfreview")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
