// Command propsbatch runs the player-prop prediction batch system in one of
// its modes: a one-shot coordinator run, a worker instance, the scheduled
// daily service, or a status report.
package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/mattn/go-sqlite3"

	"github.com/najicham/nba-stats-scraper-sub021/internal/app"
	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

// embeddedConfig embeds the application's YAML configuration, merged over
// the built-in defaults at startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
		cancel()
	}()

	if err := newRootCmd(ctx).Execute(); err != nil {
		logger.Errorf("propsbatch: %v", err)
		os.Exit(1)
	}
}

func newRootCmd(ctx context.Context) *cobra.Command {
	var envFilePath string

	root := &cobra.Command{
		Use:           "propsbatch",
		Short:         "Daily player-prop prediction batch system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFilePath, "env-file", ".env", "path to the .env file")

	root.AddCommand(newRunCmd(ctx, &envFilePath))
	root.AddCommand(newWorkCmd(ctx, &envFilePath))
	root.AddCommand(newScheduleCmd(ctx, &envFilePath))
	root.AddCommand(newStatusCmd(ctx, &envFilePath))
	return root
}

func newRunCmd(ctx context.Context, envFilePath *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once for a date: gate, dispatch, track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunCoordinator(ctx, *envFilePath, config.EmbeddedConfig(embeddedConfig), resolveDate(date))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "target date (YYYY-MM-DD), defaults to today")
	return cmd
}

func newWorkCmd(ctx context.Context, envFilePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run a worker instance consuming the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunWorker(ctx, *envFilePath, config.EmbeddedConfig(embeddedConfig))
		},
	}
}

func newScheduleCmd(ctx context.Context, envFilePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily trigger service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunScheduled(ctx, *envFilePath, config.EmbeddedConfig(embeddedConfig))
		},
	}
}

func newStatusCmd(ctx context.Context, envFilePath *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest batch for a date and the queue backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.PrintStatus(ctx, *envFilePath, config.EmbeddedConfig(embeddedConfig), resolveDate(date))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "target date (YYYY-MM-DD), defaults to today")
	return cmd
}

func resolveDate(date string) string {
	if date != "" {
		return date
	}
	return time.Now().Format("2006-01-02")
}
