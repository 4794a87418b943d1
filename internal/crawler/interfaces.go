package crawler

import (
	"context"
	"time"

	"github.com/askfmi/fmicrawl/internal/item"
)

// Fetcher retrieves a single URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Sink receives every item the crawl produces
type Sink interface {
	Write(it *item.Item) error
}

// Journal records crawl history. Implementations must be safe for
// concurrent use by workers.
type Journal interface {
	BeginRun(run *RunInfo) error
	RecordFetch(runID string, rec *FetchRecord) error
	RecordItem(runID string, it *item.Item) error
	FinishRun(runID, status string, stats CrawlStats) error
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	Fetched   int // Responses received, any status
	Failed    int // Transport errors and non-2xx statuses
	Items     int // Items delivered to the sink
	PDFItems  int // Of which PDF items
	Rejected  int // Links rejected by the URL policy
	Queued    int // Requests still waiting in the frontier
	Visited   int // Distinct URLs ever scheduled
	StartTime time.Time
	Duration  time.Duration
}

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// RunInfo identifies one crawl run
type RunInfo struct {
	ID        string
	StartedAt time.Time
	Seeds     []string
	Status    string
}
