package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/bridge"
	"github.com/mikey/signal-mail-bridge/internal/di"
	"github.com/mikey/signal-mail-bridge/internal/ports"
)

func newRunCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform one relay pass in both directions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, err := di.BuildContainer(configFile)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return container.Invoke(func(logger *zap.Logger, svc *bridge.Service, ledger ports.LedgerRepository) error {
				return runOnce(ctx, logger, svc, ledger)
			})
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (searches default locations if empty)")
	return cmd
}

func runOnce(ctx context.Context, logger *zap.Logger, svc *bridge.Service, ledger ports.LedgerRepository) error {
	defer logger.Sync()

	// Stop the ledger if needed
	defer func() {
		if stopper, ok := ledger.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}()

	report, err := svc.RunBatch(ctx)
	if err != nil {
		return err
	}
	if len(report.Items) > 0 {
		logger.Warn("Bridge run finished with issues", zap.Int("issues", len(report.Items)))
	}
	return nil
}
