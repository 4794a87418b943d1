package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests to the same host
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	delay    time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    defaultDelay,
	}
}

// Wait blocks until a request to the URL's host may proceed
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	return r.getLimiter(hostKey(parsedURL)).Wait(ctx)
}

// SetHostDelay raises the delay for a host, e.g. from a robots.txt
// Crawl-delay. Delays below the default are ignored.
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	if delay <= r.delay {
		return
	}

	host = strings.ToLower(host)

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[host]; ok && l.Limit() == rate.Every(delay) {
		return
	}
	r.limiters[host] = newLimiter(delay)
}

// Delay returns the default delay between requests to one host
func (r *RateLimiter) Delay() time.Duration {
	return r.delay
}

func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	limiter = newLimiter(r.delay)
	r.limiters[host] = limiter
	return limiter
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func hostKey(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}
