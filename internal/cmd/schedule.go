package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/askfmi/fmicrawl/internal/config"
	"github.com/askfmi/fmicrawl/internal/convert"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Crawl and convert on a cron schedule",
	Long: `Schedule runs a crawl followed by a text conversion every time the cron
expression fires (default "0 2 * * *", daily at 02:00). A failed run is
logged and the schedule continues. Runs never overlap.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().String("cron", "", "Cron expression (minute hour dom month dow), overrides schedule")
	scheduleCmd.Flags().Bool("run-now", false, "Run once immediately before waiting for the schedule")
	rootCmd.AddCommand(scheduleCmd)
}

// newCron builds the scheduler used for periodic crawls
func newCron() *cron.Cron {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if expr, _ := cmd.Flags().GetString("cron"); expr != "" {
		cfg.Schedule = expr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	r, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	c := newCron()
	entryID, err := c.AddFunc(cfg.Schedule, func() { scheduledRun(ctx, r, cfg) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
		scheduledRun(ctx, r, cfg)
	}

	c.Start()
	slog.Info("Scheduler started", "schedule", cfg.Schedule, "next_run", c.Entry(entryID).Schedule.Next(time.Now()))

	<-ctx.Done()

	slog.Info("Stopping scheduler")
	stopped := c.Stop()
	<-stopped.Done()
	slog.Info("Scheduler stopped")
	return nil
}

// scheduledRun crawls and converts once. Errors are logged so the schedule
// keeps running.
func scheduledRun(ctx context.Context, r *runner, cfg *config.CrawlConfig) {
	if ctx.Err() != nil {
		return
	}

	slog.Info("Scheduled crawl starting")
	stats, err := r.crawl(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Scheduled crawl interrupted")
		} else {
			slog.Error("Scheduled crawl failed", "error", err)
		}
		return
	}

	n, err := convert.ConvertFile(cfg.OutputPath, cfg.TextOutputPath)
	if err != nil {
		slog.Error("Scheduled conversion failed", "error", err)
		return
	}

	slog.Info("Scheduled crawl finished",
		"items", n,
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"duration", stats.Duration,
		"text_output", cfg.TextOutputPath,
	)
}
