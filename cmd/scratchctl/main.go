package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scratch2x/internal/config"
	"scratch2x/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scratchctl",
		Short:         "Operations tool for the scratch card service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			l, err := logger.New(logger.Options{Service: "scratchctl", Env: cfg.Env, Level: cfg.LogLevel})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(l)
			return nil
		},
	}

	root.AddCommand(newMigrateCmd(), newSimulateCmd(), newTableCmd())
	return root
}
