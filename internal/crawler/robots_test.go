package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsParser(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /wp-admin/\nAllow: /wp-admin/admin-ajax.php\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, 0)
	defer client.Close()
	robots := NewRobotsParser(client, "Test-Crawler/1.0", nil)
	ctx := context.Background()

	tests := []struct {
		path    string
		allowed bool
	}{
		{"/admitere/", true},
		{"/wp-admin/", false},
		{"/wp-admin/options.php", false},
		{"/wp-admin/admin-ajax.php", true},
		{"", true},
	}

	for _, tt := range tests {
		allowed, err := robots.IsAllowed(ctx, server.URL+tt.path)
		if err != nil {
			t.Errorf("IsAllowed(%q) error: %v", tt.path, err)
		}
		if allowed != tt.allowed {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.path, allowed, tt.allowed)
		}
	}

	if hits := robotsHits.Load(); hits != 1 {
		t.Errorf("Expected robots.txt fetched once, got %d", hits)
	}

	host := server.Listener.Addr().String()
	if delay := robots.CrawlDelay(host); delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}
}

func TestRobotsParserMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, 0)
	defer client.Close()
	robots := NewRobotsParser(client, "Test-Crawler/1.0", nil)

	allowed, err := robots.IsAllowed(context.Background(), server.URL+"/anything")
	if err != nil || !allowed {
		t.Errorf("Missing robots.txt should allow everything, got %v (%v)", allowed, err)
	}
	if delay := robots.CrawlDelay(server.Listener.Addr().String()); delay != 0 {
		t.Errorf("Expected no crawl delay, got %v", delay)
	}
}

func TestRobotsParserUnreachable(t *testing.T) {
	client := NewHTTPClient("Test-Crawler/1.0", time.Second, 0)
	defer client.Close()
	robots := NewRobotsParser(client, "Test-Crawler/1.0", nil)

	allowed, err := robots.IsAllowed(context.Background(), "http://127.0.0.1:1/page")
	if err != nil || !allowed {
		t.Errorf("Unreachable robots.txt should allow everything, got %v (%v)", allowed, err)
	}
}

func TestRobotsParserInvalidURL(t *testing.T) {
	robots := NewRobotsParser(NewHTTPClient("Test-Crawler/1.0", time.Second, 0), "Test-Crawler/1.0", nil)

	if _, err := robots.IsAllowed(context.Background(), "http://[::1]:namedport"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestRobotsParserWaitsOnRateLimiter(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, 0)
	defer client.Close()

	delay := 200 * time.Millisecond
	limiter := NewRateLimiter(delay)
	robots := NewRobotsParser(client, "Test-Crawler/1.0", limiter)

	if allowed, err := robots.IsAllowed(context.Background(), server.URL+"/page"); err != nil || !allowed {
		t.Fatalf("Expected /page allowed, got %v (%v)", allowed, err)
	}

	// The robots.txt fetch used the host's slot, so the page request waits
	start := time.Now()
	if err := limiter.Wait(context.Background(), server.URL+"/page"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay*3/4 {
		t.Errorf("Expected page request to wait about %v after robots.txt, waited %v", delay, elapsed)
	}
}

func TestRobotsParserCancelledBeforeFetch(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, 0)
	defer client.Close()

	limiter := NewRateLimiter(time.Hour)
	if err := limiter.Wait(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	robots := NewRobotsParser(client, "Test-Crawler/1.0", limiter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := robots.IsAllowed(ctx, server.URL+"/private/x"); err != nil {
		t.Errorf("IsAllowed error: %v", err)
	}
	if hits := robotsHits.Load(); hits != 0 {
		t.Errorf("Expected no robots.txt fetch while waiting, got %d", hits)
	}

	robots.limiter = nil
	allowed, err := robots.IsAllowed(context.Background(), server.URL+"/private/x")
	if err != nil || allowed {
		t.Errorf("Expected rules fetched after cancellation, got %v (%v)", allowed, err)
	}
}
