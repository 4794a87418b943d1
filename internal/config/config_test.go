package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.SeedURLs) != 8 {
		t.Errorf("Expected 8 seed URLs, got %d", len(cfg.SeedURLs))
	}

	if cfg.SeedURLs[0] != "https://fmi.unibuc.ro/prezentare/" {
		t.Errorf("Expected first seed 'https://fmi.unibuc.ro/prezentare/', got %s", cfg.SeedURLs[0])
	}

	if len(cfg.AllowedDomains) == 0 || cfg.AllowedDomains[0] != "fmi.unibuc.ro" {
		t.Errorf("Expected primary domain 'fmi.unibuc.ro', got %v", cfg.AllowedDomains)
	}

	if cfg.Concurrency != 1 {
		t.Errorf("Expected concurrency 1, got %d", cfg.Concurrency)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.RequestTimeout)
	}

	if cfg.RespectRobots {
		t.Errorf("Expected respect robots false, got %v", cfg.RespectRobots)
	}

	if cfg.Limit != 0 {
		t.Errorf("Expected limit 0, got %d", cfg.Limit)
	}

	if cfg.OutputPath != "output.json" {
		t.Errorf("Expected output path 'output.json', got %s", cfg.OutputPath)
	}

	if cfg.Schedule != "0 2 * * *" {
		t.Errorf("Expected schedule '0 2 * * *', got %s", cfg.Schedule)
	}

	found := false
	for _, name := range cfg.ForbiddenDocumentNames {
		if name == "rezultate" {
			found = true
		}
	}
	if !found {
		t.Error("Expected 'rezultate' in forbidden document names")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *CrawlConfig { return DefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*CrawlConfig)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(*CrawlConfig) {},
			wantErr: nil,
		},
		{
			name:    "no seeds",
			mutate:  func(c *CrawlConfig) { c.SeedURLs = nil },
			wantErr: ErrNoSeedURLs,
		},
		{
			name:    "relative seed",
			mutate:  func(c *CrawlConfig) { c.SeedURLs = []string{"/admitere/"} },
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "ftp seed",
			mutate:  func(c *CrawlConfig) { c.SeedURLs = []string{"ftp://fmi.unibuc.ro/"} },
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "no allowed domains",
			mutate:  func(c *CrawlConfig) { c.AllowedDomains = []string{""} },
			wantErr: ErrNoAllowedDomains,
		},
		{
			name:    "invalid concurrency",
			mutate:  func(c *CrawlConfig) { c.Concurrency = 0 },
			wantErr: ErrInvalidConcurrency,
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *CrawlConfig) { c.RequestTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "empty output path",
			mutate:  func(c *CrawlConfig) { c.OutputPath = "" },
			wantErr: ErrEmptyOutputPath,
		},
		{
			name:    "minimum delay enforcement",
			mutate:  func(c *CrawlConfig) { c.RequestDelay = 50 * time.Millisecond },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}

			if cfg.RequestDelay < 100*time.Millisecond {
				t.Errorf("Expected minimum delay to be enforced, got %v", cfg.RequestDelay)
			}
		})
	}
}

func TestSeedErrorMessage(t *testing.T) {
	err := (&CrawlConfig{SeedURLs: []string{"not a url"}}).Validate()

	var seedErr *SeedError
	if !errors.As(err, &seedErr) {
		t.Fatalf("Expected *SeedError, got %T", err)
	}
	if seedErr.URL != "not a url" {
		t.Errorf("Expected offending URL in error, got %q", seedErr.URL)
	}
}
