package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/askfmi/fmicrawl/internal/config"
	"github.com/askfmi/fmicrawl/internal/crawler"
	"github.com/askfmi/fmicrawl/internal/metrics"
	"github.com/askfmi/fmicrawl/internal/sink"
	"github.com/askfmi/fmicrawl/internal/storage"
)

// runner owns the resources shared by consecutive crawls: the journal, the
// metrics registry and the metrics endpoint.
type runner struct {
	cfg         *config.CrawlConfig
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	journal     *storage.SQLiteStorage
	stopMetrics context.CancelFunc
}

func newRunner(ctx context.Context, cfg *config.CrawlConfig) (*runner, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &runner{
		cfg:      cfg,
		registry: registry,
		metrics:  metrics.NewMetrics(registry),
	}

	if cfg.JournalPath != "" {
		journal, err := storage.NewSQLiteStorage(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		r.journal = journal
	}

	if cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		r.stopMetrics = cancel
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr, registry); err != nil {
				slog.Error("Metrics server failed", "address", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	return r, nil
}

// crawl runs one crawl into a fresh output file. A cancelled crawl still
// commits the items written so far; any other failure leaves the previous
// output in place.
func (r *runner) crawl(ctx context.Context) (crawler.CrawlStats, error) {
	out, err := sink.NewJSONSink(r.cfg.OutputPath)
	if err != nil {
		return crawler.CrawlStats{}, fmt.Errorf("failed to open output: %w", err)
	}

	opts := []crawler.Option{crawler.WithMetrics(r.metrics)}
	if r.journal != nil {
		opts = append(opts, crawler.WithJournal(r.journal))
	}

	c, err := crawler.NewCrawler(r.cfg, out, opts...)
	if err != nil {
		out.Abort()
		return crawler.CrawlStats{}, fmt.Errorf("failed to create crawler: %w", err)
	}
	defer c.Close()

	stats, runErr := c.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		out.Abort()
		return stats, fmt.Errorf("crawl failed: %w", runErr)
	}

	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("failed to write output: %w", err)
	}

	slog.Info("Crawl output written",
		"output", out.Path(),
		"items", out.Count(),
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"pdf_items", stats.PDFItems,
		"rejected", stats.Rejected,
		"duration", stats.Duration,
	)

	return stats, runErr
}

// Close stops the metrics endpoint and closes the journal
func (r *runner) Close() {
	if r.stopMetrics != nil {
		r.stopMetrics()
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			slog.Warn("Failed to close journal", "error", err)
		}
	}
}
