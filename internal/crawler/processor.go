package crawler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/askfmi/fmicrawl/internal/extractor"
	"github.com/askfmi/fmicrawl/internal/frontier"
	"github.com/askfmi/fmicrawl/internal/item"
	"github.com/askfmi/fmicrawl/internal/policy"
)

// PageResult is what one successful response produced
type PageResult struct {
	Item     *item.Item         // nil when nothing was extracted
	Requests []frontier.Request // Accepted outbound links
	Rejected map[string]int     // Rejected links by reason
	Outcome  string
	Err      error // Non-fatal extraction problem, for logging
}

// PageProcessor turns fetched responses into items and follow-up requests
type PageProcessor struct {
	policy *policy.Policy
	html   *extractor.HTMLExtractor
	pdf    *extractor.PDFExtractor
	now    func() time.Time
}

// NewPageProcessor creates a processor using p for link classification and
// document name filtering
func NewPageProcessor(p *policy.Policy, contentSelectors []string) *PageProcessor {
	return &PageProcessor{
		policy: p,
		html:   extractor.NewHTMLExtractor(contentSelectors),
		pdf:    extractor.NewPDFExtractor(p),
		now:    time.Now,
	}
}

// Process dispatches a 2xx response to the HTML or PDF path
func (p *PageProcessor) Process(req frontier.Request, resp *Response) *PageResult {
	if req.Kind == frontier.KindPDF || extractor.IsPDF(resp.ContentType, resp.Body) {
		return p.processPDF(req, resp)
	}
	if !isHTML(resp.ContentType) {
		return &PageResult{Outcome: OutcomeUnsupported}
	}
	return p.processHTML(req, resp)
}

func (p *PageProcessor) processHTML(req frontier.Request, resp *Response) *PageResult {
	pageURL := req.URL
	if resp.FinalURL != "" {
		pageURL = resp.FinalURL
	}

	page, err := p.html.Extract(pageURL, resp.Body)
	if err != nil {
		return &PageResult{Outcome: OutcomeEmpty, Err: err}
	}

	result := &PageResult{Rejected: make(map[string]int)}

	base, err := url.Parse(pageURL)
	if err != nil {
		base, _ = url.Parse(req.URL)
		pageURL = req.URL
	}

	for _, href := range page.Links {
		d := p.policy.Classify(base, href)
		if d.Action == policy.Reject {
			result.Rejected[d.Reason]++
			continue
		}
		result.Requests = append(result.Requests, frontier.Request{
			URL:         d.URL,
			Priority:    req.Priority,
			ParentTitle: page.Title,
			ParentURL:   pageURL,
			Kind:        d.Kind,
		})
	}

	result.Item = item.New(item.Metadata{
		Title:     page.Title,
		URL:       pageURL,
		ScrapedAt: item.Timestamp{Time: p.now()},
	}, page.Blocks)

	result.Outcome = OutcomeItem
	if result.Item == nil {
		result.Outcome = OutcomeEmpty
	}
	return result
}

func (p *PageProcessor) processPDF(req frontier.Request, resp *Response) *PageResult {
	doc, err := p.pdf.Extract(extractor.Payload{
		URL:                req.URL,
		Body:               resp.Body,
		ContentType:        resp.ContentType,
		ContentDisposition: resp.ContentDisposition,
	})
	switch {
	case errors.Is(err, extractor.ErrNotAPDF):
		return &PageResult{Outcome: OutcomeNotPDF, Err: err}
	case errors.Is(err, extractor.ErrForbiddenDocument):
		return &PageResult{Outcome: OutcomeForbidden, Err: fmt.Errorf("%w: %s", err, doc.Filename)}
	case err != nil:
		return &PageResult{Outcome: OutcomeUndecodable, Err: err}
	}

	if doc.SkippedPages > 0 {
		slog.Warn("Skipped unreadable PDF pages", "url", req.URL, "file", doc.Filename, "skipped", doc.SkippedPages)
	}

	parentURL := req.ParentURL
	if parentURL == "" {
		parentURL = req.URL
	}
	parentTitle := req.ParentTitle
	if parentTitle == "" {
		parentTitle = parentURL
	}

	it := item.New(item.Metadata{
		Title:     PDFTitle(doc.Filename, parentTitle),
		URL:       parentURL,
		ScrapedAt: item.Timestamp{Time: p.now()},
	}, doc.Blocks())
	if it == nil {
		return &PageResult{Outcome: OutcomeEmpty}
	}
	return &PageResult{Item: it, Outcome: OutcomeItem}
}

// PDFTitle formats the title of a document item
func PDFTitle(filename, parentTitle string) string {
	return fmt.Sprintf("PDF: %s (Sursa: %s)", filename, parentTitle)
}

// isHTML accepts HTML content types and responses without one
func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "" ||
		strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml")
}
