// Package cmd defines and implements the CLI commands for the aoty-crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/musicdata/aoty-crawler/internal/logging"
	"github.com/musicdata/aoty-crawler/pkg/config"
)

var (
	cfgFile string
	verbose bool
	logger  *zap.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aoty-crawler",
		Short: "A crawler for albumoftheyear.org genre ratings",
		Long: `aoty-crawler walks the albumoftheyear.org genre index, collects the
highest user-rated albums per genre and year, and persists them as
timestamped JSON and CSV files. Companion subcommands query the
collected output without touching the network.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			l, err := logging.New(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = l
			config.InitConfig(cfgFile, logger)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/aoty-crawler, $HOME/.aoty-crawler)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newScrapeCmd(),
		newListGenresCmd(),
		newSearchCmd(),
		newStatsCmd(),
		newExportCmd(),
	)
	return cmd
}

// Execute runs the root command and maps the outcome to a process exit
// code: 0 on success, 130 when interrupted, 1 otherwise.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}
