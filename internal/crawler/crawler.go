// Package crawler provides the crawl orchestrator.
// It drives a bounded worker pool over the frontier: fetch, classify,
// extract, hand items to the sink and enqueue discovered links.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/askfmi/fmicrawl/internal/config"
	"github.com/askfmi/fmicrawl/internal/frontier"
	"github.com/askfmi/fmicrawl/internal/metrics"
	"github.com/askfmi/fmicrawl/internal/policy"
)

// statsInterval is how often progress is logged
const statsInterval = 10 * time.Second

// Crawler runs crawls. A Crawler may run several crawls in sequence; each
// Run starts from an empty frontier.
type Crawler struct {
	config      *config.CrawlConfig
	policy      *policy.Policy
	fetcher     Fetcher
	processor   *PageProcessor
	rateLimiter *RateLimiter
	robots      *RobotsParser
	sink        Sink
	journal     Journal
	metrics     *metrics.Metrics
	closeFn     func()
}

// Option configures a Crawler
type Option func(*Crawler)

// WithFetcher replaces the default HTTP client
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithJournal records runs in j
func WithJournal(j Journal) Option {
	return func(c *Crawler) { c.journal = j }
}

// WithMetrics reports to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// NewCrawler creates a crawler writing items to sink
func NewCrawler(cfg *config.CrawlConfig, sink Sink, opts ...Option) (*Crawler, error) {
	if sink == nil {
		return nil, errors.New("crawler: sink is required")
	}

	p, err := policy.New(policy.Rules{
		AllowedDomains:         cfg.AllowedDomains,
		ForbiddenSubstrings:    cfg.ForbiddenSubstrings,
		IgnoredExtensions:      cfg.IgnoredExtensions,
		ForbiddenDocumentNames: cfg.ForbiddenDocumentNames,
	})
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		config:      cfg,
		policy:      p,
		processor:   NewPageProcessor(p, cfg.ContentSelectors),
		rateLimiter: NewRateLimiter(cfg.RequestDelay),
		sink:        sink,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		httpClient := NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout, cfg.MaxBodySize)
		c.fetcher = httpClient
		c.closeFn = httpClient.Close
	}
	if c.metrics == nil {
		c.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if cfg.RespectRobots {
		c.robots = NewRobotsParser(c.fetcher, cfg.UserAgent, c.rateLimiter)
	}

	slog.Debug("Crawler configured", "policy", p.String(), "concurrency", cfg.Concurrency)
	return c, nil
}

// Close releases idle connections
func (c *Crawler) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// run is the state of a single crawl
type run struct {
	id       string
	frontier *frontier.Frontier

	mu      sync.Mutex
	stats   CrawlStats
	started int // Fetch slots handed out, for the limit
}

func (r *run) update(fn func(*CrawlStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}

// reserve claims a fetch slot; false once the limit is used up
func (r *run) reserve(limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > 0 && r.started >= limit {
		return false
	}
	r.started++
	return true
}

func (r *run) snapshot() CrawlStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.Duration = time.Since(stats.StartTime)
	stats.Queued = r.frontier.Len()
	stats.Visited = r.frontier.VisitedCount()
	return stats
}

// Run crawls from the configured seeds until the frontier is permanently
// empty, the fetch limit is reached or ctx is done. It returns the final
// statistics; the error is ctx.Err() for a cancelled run.
func (c *Crawler) Run(ctx context.Context) (CrawlStats, error) {
	r := &run{
		id:       uuid.NewString(),
		frontier: frontier.New(),
		stats:    CrawlStats{StartTime: time.Now()},
	}
	log := slog.With("run_id", r.id)

	if c.journal != nil {
		info := &RunInfo{ID: r.id, StartedAt: r.stats.StartTime, Seeds: c.config.SeedURLs, Status: RunRunning}
		if err := c.journal.BeginRun(info); err != nil {
			log.Error("Failed to record run start", "error", err)
		}
	}

	seeded := c.seed(r)
	log.Info("Starting crawler", "seed_urls", seeded, "concurrency", c.config.Concurrency)

	reporterCtx, stopReporter := context.WithCancel(ctx)
	var reporter sync.WaitGroup
	reporter.Add(1)
	go func() {
		defer reporter.Done()
		c.statsReporter(reporterCtx, r)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < max(c.config.Concurrency, 1); i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, r, id)
			return nil
		})
	}
	_ = g.Wait()

	stopReporter()
	reporter.Wait()

	stats := r.snapshot()
	status := RunCompleted
	if ctx.Err() != nil {
		status = RunCancelled
	}
	c.finish(r, status, stats)

	log.Info("Crawling finished",
		"status", status,
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"items", stats.Items,
		"pdf_items", stats.PDFItems,
		"rejected_links", stats.Rejected,
		"duration", stats.Duration,
	)

	if status == RunCancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// seed enqueues the seeds, first seed highest. Seeds bypass the URL policy
// except that document links are recognized and Drive links rewritten.
func (c *Crawler) seed(r *run) int {
	n := len(c.config.SeedURLs)
	seeded := 0
	for i, seedURL := range c.config.SeedURLs {
		req := frontier.Request{URL: seedURL, Priority: frontier.SeedPriority(i, n), Kind: frontier.KindPage}
		if d := c.policy.ClassifyURL(seedURL); d.Action == policy.FollowDocument {
			req.URL = d.URL
			req.Kind = d.Kind
		}
		if r.frontier.Push(req) {
			seeded++
		} else {
			slog.Warn("Skipping duplicate or invalid seed", "url", seedURL)
		}
	}
	c.metrics.FrontierQueued.Set(float64(r.frontier.Len()))
	return seeded
}

func (c *Crawler) finish(r *run, status string, stats CrawlStats) {
	c.metrics.RunsTotal.WithLabelValues(status).Inc()
	c.metrics.LastRunTimestamp.SetToCurrentTime()
	c.metrics.FrontierQueued.Set(0)

	if c.journal != nil {
		if err := c.journal.FinishRun(r.id, status, stats); err != nil {
			slog.Error("Failed to record run end", "run_id", r.id, "error", err)
		}
	}
}

// worker processes requests until the frontier reports permanently empty
func (c *Crawler) worker(ctx context.Context, r *run, id int) {
	slog.Debug("Worker started", "worker_id", id)
	defer slog.Debug("Worker stopped", "worker_id", id)

	for {
		req, ok := r.frontier.Next(ctx)
		if !ok {
			return
		}

		if !r.reserve(c.config.Limit) {
			slog.Info("Worker reached limit", "worker_id", id, "limit", c.config.Limit)
			r.frontier.Close()
			r.frontier.Done()
			return
		}

		c.processRequest(ctx, r, id, req)
		r.frontier.Done()
		c.metrics.FrontierQueued.Set(float64(r.frontier.Len()))
	}
}

// processRequest runs one request through robots, politeness, fetch and
// extraction. Every failure is logged and dropped.
func (c *Crawler) processRequest(ctx context.Context, r *run, id int, req frontier.Request) {
	rec := &FetchRecord{URL: req.URL, Kind: req.Kind, Priority: req.Priority}
	defer c.record(r, rec)

	if !c.shouldProcessURL(ctx, id, req) {
		rec.Outcome = OutcomeRobots
		rec.Error = ErrRobotsDisallowed.Error()
		return
	}

	if err := c.rateLimiter.Wait(ctx, req.URL); err != nil {
		rec.Outcome = OutcomeFetchError
		rec.Error = err.Error()
		return
	}

	resp, err := c.fetcher.Fetch(ctx, req.URL)
	rec.FetchedAt = time.Now()
	if err != nil {
		slog.Warn("Fetch failed", "worker_id", id, "url", req.URL, "error", err)
		rec.Outcome = OutcomeFetchError
		rec.Error = err.Error()
		r.update(func(s *CrawlStats) { s.Failed++ })
		return
	}

	rec.StatusCode = resp.StatusCode
	rec.ContentType = resp.ContentType
	rec.Size = int64(len(resp.Body))
	rec.Duration = resp.Duration
	c.metrics.FetchDurationSeconds.WithLabelValues(req.Kind.String()).Observe(resp.Duration.Seconds())
	r.update(func(s *CrawlStats) { s.Fetched++ })

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{URL: req.URL, StatusCode: resp.StatusCode}
		slog.Warn("Fetch failed", "worker_id", id, "url", req.URL, "error", err)
		rec.Outcome = OutcomeHTTPError
		rec.Error = err.Error()
		r.update(func(s *CrawlStats) { s.Failed++ })
		return
	}

	result := c.processor.Process(req, resp)
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	c.enqueue(r, result)

	if result.Item != nil {
		c.emit(r, id, result)
	}
	rec.Outcome = result.Outcome

	attrs := []any{
		"worker_id", id,
		"url", req.URL,
		"kind", req.Kind.String(),
		"status", resp.StatusCode,
		"outcome", result.Outcome,
		"links", len(result.Requests),
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err)
	}
	slog.Log(ctx, outcomeLevel(result.Outcome), "Worker processed URL", attrs...)
}

// outcomeLevel is the log level for a processed response. Forbidden
// documents and empty pages are expected filtering.
func outcomeLevel(outcome string) slog.Level {
	switch outcome {
	case OutcomeItem:
		return slog.LevelInfo
	case OutcomeNotPDF, OutcomeUnsupported:
		return slog.LevelWarn
	case OutcomeUndecodable:
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

func (c *Crawler) enqueue(r *run, result *PageResult) {
	rejected := 0
	for reason, n := range result.Rejected {
		rejected += n
		c.metrics.LinksTotal.WithLabelValues(reason).Add(float64(n))
	}

	queued, duplicates := 0, 0
	for _, next := range result.Requests {
		if r.frontier.Push(next) {
			queued++
		} else {
			duplicates++
		}
	}
	c.metrics.LinksTotal.WithLabelValues("queued").Add(float64(queued))
	c.metrics.LinksTotal.WithLabelValues("duplicate").Add(float64(duplicates))

	r.update(func(s *CrawlStats) { s.Rejected += rejected })
}

func (c *Crawler) emit(r *run, id int, result *PageResult) {
	it := result.Item
	if err := c.sink.Write(it); err != nil {
		slog.Error("Worker failed to write item", "worker_id", id, "url", it.Metadata.URL, "error", err)
		result.Outcome = OutcomeEmpty
		return
	}

	kind := it.Kind()
	c.metrics.ItemsTotal.WithLabelValues(kind).Inc()
	r.update(func(s *CrawlStats) {
		s.Items++
		if kind == "pdf" {
			s.PDFItems++
		}
	})

	if c.journal != nil {
		if err := c.journal.RecordItem(r.id, it); err != nil {
			slog.Error("Failed to record item", "url", it.Metadata.URL, "error", err)
		}
	}
}

func (c *Crawler) record(r *run, rec *FetchRecord) {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	c.metrics.FetchesTotal.WithLabelValues(rec.Kind.String(), rec.Outcome).Inc()

	if c.journal != nil {
		if err := c.journal.RecordFetch(r.id, rec); err != nil {
			slog.Error("Failed to record fetch", "url", rec.URL, "error", err)
		}
	}
}

// shouldProcessURL checks robots.txt when enabled and applies its
// Crawl-delay to the host
func (c *Crawler) shouldProcessURL(ctx context.Context, id int, req frontier.Request) bool {
	if c.robots == nil {
		return true
	}

	allowed, err := c.robots.IsAllowed(ctx, req.URL)
	if err != nil {
		slog.Warn("Worker robots.txt check failed", "worker_id", id, "url", req.URL, "error", err)
		return true
	}
	if !allowed {
		slog.Info("URL disallowed by robots.txt", "worker_id", id, "url", req.URL)
		return false
	}

	if u, err := url.Parse(req.URL); err == nil {
		if delay := c.robots.CrawlDelay(u.Host); delay > 0 {
			c.rateLimiter.SetHostDelay(u.Hostname(), delay)
		}
	}
	return true
}

// statsReporter periodically reports crawling statistics
func (c *Crawler) statsReporter(ctx context.Context, r *run) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := r.snapshot()
			slog.Info("Crawling stats",
				"run_id", r.id,
				"fetched", stats.Fetched,
				"failed", stats.Failed,
				"items", stats.Items,
				"queued", stats.Queued,
				"visited", stats.Visited,
				"duration", stats.Duration,
			)
		}
	}
}

// String describes the crawler for logs
func (c *Crawler) String() string {
	return fmt.Sprintf("crawler(seeds=%d concurrency=%d limit=%d)", len(c.config.SeedURLs), c.config.Concurrency, c.config.Limit)
}
