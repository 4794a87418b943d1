package crawler

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()

	// First request should be immediate
	if err := limiter.Wait(ctx, "https://fmi.unibuc.ro/admitere/"); err != nil {
		t.Errorf("First request failed: %v", err)
	}

	// Second request to the same host should wait
	if err := limiter.Wait(ctx, "https://FMI.unibuc.ro:443/secretariat/"); err != nil {
		t.Errorf("Second request failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Rate limiting not working, elapsed time: %v", elapsed)
	}

	// Different host should not be rate limited
	start2 := time.Now()
	if err := limiter.Wait(ctx, "https://drive.google.com/uc?export=download&id=1"); err != nil {
		t.Errorf("Different host request failed: %v", err)
	}
	if elapsed := time.Since(start2); elapsed > 20*time.Millisecond {
		t.Errorf("Different host was rate limited, elapsed time: %v", elapsed)
	}
}

func TestRateLimiterHostDelay(t *testing.T) {
	limiter := NewRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	// Below the default: ignored
	limiter.SetHostDelay("fmi.unibuc.ro", 10*time.Millisecond)
	limiter.SetHostDelay("fmi.unibuc.ro", 200*time.Millisecond)
	// Same delay again must not reset the limiter
	limiter.SetHostDelay("FMI.UNIBUC.RO", 200*time.Millisecond)

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx, "https://fmi.unibuc.ro/page"); err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}

	if elapsed := time.Since(start); elapsed < 190*time.Millisecond {
		t.Errorf("Host delay not applied, elapsed time: %v", elapsed)
	}

	if limiter.Delay() != 50*time.Millisecond {
		t.Errorf("Default delay changed to %v", limiter.Delay())
	}
}

func TestRateLimiterZeroDelay(t *testing.T) {
	limiter := NewRateLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, "https://fmi.unibuc.ro/"); err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Zero delay should not throttle, elapsed time: %v", elapsed)
	}
}

func TestRateLimiterContextCancellation(t *testing.T) {
	limiter := NewRateLimiter(500 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Wait(ctx, "https://fmi.unibuc.ro/page1"); err != nil {
		t.Errorf("First request failed: %v", err)
	}

	cancel()

	if err := limiter.Wait(ctx, "https://fmi.unibuc.ro/page2"); err == nil {
		t.Errorf("Expected context cancellation error, got nil")
	}
}

func TestRateLimiterInvalidURL(t *testing.T) {
	limiter := NewRateLimiter(100 * time.Millisecond)

	if err := limiter.Wait(context.Background(), "http://[::1]:namedport"); err == nil {
		t.Errorf("Expected error for invalid URL, got nil")
	}
}
