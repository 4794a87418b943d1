package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsParser checks URLs against robots.txt, caching rules per host
type RobotsParser struct {
	fetcher   Fetcher
	limiter   *RateLimiter
	userAgent string
	rules     map[string]*robotstxt.Group
	mu        sync.RWMutex
}

// NewRobotsParser creates a new robots.txt checker. robots.txt requests
// wait on limiter like any other request to the host; limiter may be nil.
func NewRobotsParser(fetcher Fetcher, userAgent string, limiter *RateLimiter) *RobotsParser {
	return &RobotsParser{
		fetcher:   fetcher,
		limiter:   limiter,
		userAgent: userAgent,
		rules:     make(map[string]*robotstxt.Group),
	}
}

// IsAllowed checks if a URL is allowed by robots.txt. A robots.txt that
// cannot be fetched allows everything.
func (r *RobotsParser) IsAllowed(ctx context.Context, urlStr string) (bool, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	group := r.getGroup(ctx, parsedURL)
	if group == nil {
		return true, nil
	}

	path := parsedURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsedURL.RawQuery != "" {
		path += "?" + parsedURL.RawQuery
	}

	return group.Test(path), nil
}

// CrawlDelay returns the Crawl-delay for a host, 0 when unknown
func (r *RobotsParser) CrawlDelay(host string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if group := r.rules[strings.ToLower(host)]; group != nil {
		return group.CrawlDelay
	}
	return 0
}

// getGroup returns the rule group for our agent, fetching robots.txt on
// first use of a host. nil means allow all.
func (r *RobotsParser) getGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	host := strings.ToLower(u.Host)

	r.mu.RLock()
	group, exists := r.rules[host]
	r.mu.RUnlock()
	if exists {
		return group
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, robotsURL); err != nil {
			// Cancelled; leave the host uncached
			return nil
		}
	}
	resp, err := r.fetcher.Fetch(ctx, robotsURL)
	if err == nil {
		// 4xx allows everything, 5xx disallows everything
		if data, parseErr := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body); parseErr == nil {
			group = data.FindGroup(r.userAgent)
		}
	}

	r.mu.Lock()
	r.rules[host] = group
	r.mu.Unlock()

	return group
}
