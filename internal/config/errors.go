package config

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSeedURLs is returned when no seed URLs are provided
	ErrNoSeedURLs = errors.New("no seed URLs provided")
	// ErrInvalidSeedURL is returned when a seed URL is not an absolute http(s) URL
	ErrInvalidSeedURL = errors.New("invalid seed URL")
	// ErrNoAllowedDomains is returned when the domain allow-list is empty
	ErrNoAllowedDomains = errors.New("allowed_domains cannot be empty")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrEmptyOutputPath is returned when output path is empty
	ErrEmptyOutputPath = errors.New("output_path cannot be empty")
)

// SeedError reports the offending seed URL.
type SeedError struct {
	URL string
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidSeedURL, e.URL)
}

// Unwrap lets errors.Is match ErrInvalidSeedURL.
func (e *SeedError) Unwrap() error {
	return ErrInvalidSeedURL
}
