package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodySize caps response bodies when no limit is configured
const DefaultMaxBodySize = 50 << 20

// HTTPClient fetches pages and documents
type HTTPClient struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(userAgent string, timeout time.Duration, maxBodySize int64) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	return &HTTPClient{
		client:      client,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Fetch performs a GET request and reads the whole body. Any status code is
// returned as a Response; only transport failures are errors.
func (h *HTTPClient) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetchFailed, err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ro-RO,ro;q=0.9,en;q=0.5")

	startTime := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrFetchFailed, err)
	}
	if int64(len(body)) > h.maxBodySize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, url, h.maxBodySize)
	}

	return &Response{
		URL:                url,
		FinalURL:           resp.Request.URL.String(),
		StatusCode:         resp.StatusCode,
		Header:             resp.Header,
		Body:               body,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		Duration:           time.Since(startTime),
	}, nil
}

// Close closes idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
