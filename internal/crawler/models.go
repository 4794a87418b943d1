package crawler

import (
	"net/http"
	"time"

	"github.com/askfmi/fmicrawl/internal/frontier"
)

// Response is a fully read HTTP response
type Response struct {
	URL                string        // Requested URL
	FinalURL           string        // URL after redirects
	StatusCode         int           // HTTP status code (200, 404, 500, etc.)
	Header             http.Header   // Response headers
	Body               []byte        // Body, truncated at the configured size cap
	ContentType        string        // HTTP Content-Type header
	ContentDisposition string        // HTTP Content-Disposition header
	Duration           time.Duration // Total download time
}

// Fetch outcomes recorded in the journal
const (
	OutcomeItem        = "item"        // Produced an item
	OutcomeEmpty       = "empty"       // Parsed but yielded no content
	OutcomeForbidden   = "forbidden"   // Document name on the blocklist
	OutcomeNotPDF      = "not_pdf"     // Document request answered with something else
	OutcomeUndecodable = "undecodable" // PDF could not be opened
	OutcomeUnsupported = "unsupported" // Neither HTML nor PDF
	OutcomeHTTPError   = "http_error"  // Non-2xx status
	OutcomeFetchError  = "fetch_error" // Transport failure
	OutcomeRobots      = "robots"      // Disallowed by robots.txt
)

// FetchRecord describes one processed request
type FetchRecord struct {
	URL         string
	Kind        frontier.Kind
	Priority    int
	StatusCode  int
	ContentType string
	Size        int64
	Duration    time.Duration
	Outcome     string
	Error       string
	FetchedAt   time.Time
}
