// Package config provides configuration management for the crawler.
// It defines configuration structures and the static FMI crawl configuration
// used as defaults.
package config

import (
	"net/url"
	"time"
)

// LogConfig controls log output.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json or text
	File       string `mapstructure:"file" yaml:"file"`               // Optional log file (rotated)
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate after this size
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files to keep
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Seeds and scope
	SeedURLs               []string `mapstructure:"seed_urls" yaml:"seed_urls"`                               // Start URLs, highest priority first
	AllowedDomains         []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`                   // First entry scopes pages, all scope documents
	ForbiddenSubstrings    []string `mapstructure:"forbidden_substrings" yaml:"forbidden_substrings"`         // Case-insensitive URL blocklist
	IgnoredExtensions      []string `mapstructure:"ignored_extensions" yaml:"ignored_extensions"`             // Page extensions never fetched
	ForbiddenDocumentNames []string `mapstructure:"forbidden_document_names" yaml:"forbidden_document_names"` // Document name blocklist
	ContentSelectors       []string `mapstructure:"content_selectors" yaml:"content_selectors"`               // Primary content containers, in order

	// Fetching
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`         // In-flight requests
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum delay between requests to a host
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // HTTP request timeout
	MaxBodySize    int64         `mapstructure:"max_body_size" yaml:"max_body_size"`     // Response body cap in bytes
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	RespectRobots  bool          `mapstructure:"respect_robots" yaml:"respect_robots"`   // Whether to honour robots.txt
	Limit          int           `mapstructure:"limit" yaml:"limit"`                     // Stop after N fetches (0=unlimited)

	// Outputs
	OutputPath     string `mapstructure:"output_path" yaml:"output_path"`           // JSON item array
	TextOutputPath string `mapstructure:"text_output_path" yaml:"text_output_path"` // Converted text file (schedule/convert)
	JournalPath    string `mapstructure:"journal_path" yaml:"journal_path"`         // SQLite crawl journal, empty disables
	MetricsAddr    string `mapstructure:"metrics_addr" yaml:"metrics_addr"`         // Prometheus listen address, empty disables
	Schedule       string `mapstructure:"schedule" yaml:"schedule"`                 // Cron expression for the schedule command

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultUserAgent is a browser user agent; Drive serves downloads to it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		SeedURLs: []string{
			"https://fmi.unibuc.ro/prezentare/",
			"https://fmi.unibuc.ro/concurs-mateinfoub-2025/",
			"https://fmi.unibuc.ro/admitere/",
			"https://fmi.unibuc.ro/finalizare-studii/",
			"https://fmi.unibuc.ro/conducere/",
			"https://fmi.unibuc.ro/secretariat/",
			"https://fmi.unibuc.ro/casierie/",
			"https://fmi.unibuc.ro/regulamente/",
		},
		AllowedDomains: []string{"fmi.unibuc.ro", "unibuc.ro"},
		ForbiddenSubstrings: []string{
			"facebook.com", "instagram.com", "linkedin.com", "youtube.com",
			"twitter.com", "old.fmi.unibuc.ro", "prezentare/camine",
			"prezentare/schite/", "conducerea-facultatii-2019-2023/",
			"anunturi-mateinfoub/", "noutati/", "planuri-de-invatamant/",
			"https://admitere.fmi.unibuc.ro", "cazare/",
			"https://drive.google.com/file/d/1q_3gIfcSsQ0KRT0LRzlUHNC3dQFd9SC7/view",
			"mailto:", "tel:",
		},
		IgnoredExtensions: []string{
			".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
			".zip", ".rar", ".jpg", ".jpeg", ".png", ".gif",
		},
		ForbiddenDocumentNames: []string{
			"barem", "solutii", "concurs", "enunturi", "clasament",
			"asezare", "subiecte", "amfiteatre", "participanti",
			"lista", "calificati", "repartizare", "etapa1", "etapa2",
			"premii", "confirmati", "clasificare", "rezultate",
		},
		ContentSelectors: []string{".entry-content", "div.nv-single-page-wrap"},

		Concurrency:    1,
		RequestDelay:   250 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		MaxBodySize:    50 << 20,
		UserAgent:      DefaultUserAgent,
		RespectRobots:  false,
		Limit:          0, // unlimited

		OutputPath:     "output.json",
		TextOutputPath: "context_fmi.txt",
		JournalPath:    "./crawl.db",
		Schedule:       "0 2 * * *",

		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if len(c.SeedURLs) == 0 {
		return ErrNoSeedURLs
	}

	for _, seed := range c.SeedURLs {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &SeedError{URL: seed}
		}
	}

	if !hasNonEmpty(c.AllowedDomains) {
		return ErrNoAllowedDomains
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	// Enforce minimum delay of 100ms so the target site is never hammered
	if c.RequestDelay < 100*time.Millisecond {
		c.RequestDelay = 100 * time.Millisecond
	}

	if c.OutputPath == "" {
		return ErrEmptyOutputPath
	}

	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultConfig().MaxBodySize
	}

	return nil
}

func hasNonEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return true
		}
	}
	return false
}
