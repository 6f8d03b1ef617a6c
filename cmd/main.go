package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"substore-client/app"
	"substore-client/internal/common"
)

type rootFlags struct {
	configPath string
	verbose    bool
	env        string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "substore",
		Short:        "Manage subscriptions, collections and artifacts on a Sub-Store server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default: $CONFIG_PATH or ./substore.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flags.env, "env", os.Getenv("APP_ENV"), "environment name")

	root.AddCommand(
		newListCommand(flags),
		newUsageCommand(flags),
		newPreviewCommand(flags),
		newEditCommand(flags),
		newDeleteCommand(flags),
		newSyncCommand(flags),
		newWatchCommand(flags),
		newOpsCommand(),
	)
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// withApp builds the application, starts it for the duration of run and
// stops it afterwards.
func withApp(cmd *cobra.Command, flags *rootFlags, background bool, run func(ctx context.Context, a *app.Application, logger *zap.Logger) error) error {
	logger, err := newLogger(flags.verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	application, err := app.NewApplication(
		common.WithLogger(logger),
		common.WithEnv(flags.env),
		common.WithConfigPath(flags.configPath),
		common.WithBackground(background),
	)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Stop(stopCtx); err != nil {
			logger.Error("failed to stop application gracefully", zap.Error(err))
		}
	}()

	return run(ctx, application, logger)
}

func newWatchCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled artifact sync and serve metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, true, func(ctx context.Context, a *app.Application, logger *zap.Logger) error {
				if err := a.Catalog().RefreshArtifacts(ctx); err != nil {
					logger.Warn("initial artifact listing failed", zap.Error(err))
				}

				// Wait for shutdown signal
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(sigChan)

				select {
				case sig := <-sigChan:
					logger.Info("received shutdown signal", zap.String("signal", sig.String()))
				case <-ctx.Done():
				}
				return nil
			})
		},
	}
}
