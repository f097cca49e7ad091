package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skucluster/pkg/config"
	"skucluster/pkg/logging"
)

var (
	cfgFile  string
	logLevel string
	debug    bool

	// Loaded configuration
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "skucluster",
	Short:         "Segment SKU master data with unsupervised clustering",
	Long:          `skucluster imputes, scales and trims SKU records, clusters them with K-means, BIRCH and affinity propagation and reports internal quality scores for every engine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging at debug level")
}

// loadConfig loads and validates the configuration once per invocation.
func loadConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if debug {
		c.Log.Level, c.Log.Development = "debug", true
	}
	cfg = c
	return nil
}

// commandLogger builds the logger described by cfg and stores it in the
// command's context. The returned func flushes it.
func commandLogger(cmd *cobra.Command) (context.Context, *zap.SugaredLogger, func(), error) {
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := logging.WithLogger(cmd.Context(), logger)
	return ctx, logger, func() { _ = logger.Sync() }, nil
}
