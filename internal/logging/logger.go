// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/askfmi/fmicrawl/internal/config"
)

// Config represents the logging configuration
type Config struct {
	Level      slog.Level
	Format     string // "json" (default) or "text"
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Console    bool
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		Format:     "json",
		FilePath:   "",
		MaxSize:    100, // 100MB
		MaxBackups: 5,
		MaxAge:     30,
		Console:    true,
	}
}

// FromCrawlConfig maps the log section of the crawl configuration.
func FromCrawlConfig(lc config.LogConfig) Config {
	return Config{
		Level:      ParseLevel(lc.Level),
		Format:     lc.Format,
		FilePath:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Console:    true,
	}
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger with the given configuration. Console
// output goes to stderr so that stdout stays free for command output.
func NewLogger(config Config) (*slog.Logger, error) {
	var writers []io.Writer

	if config.Console {
		writers = append(writers, os.Stderr)
	}

	// File output with rotation
	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, err
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
		})
	}

	// If no writers configured, fall back to the console
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var writer io.Writer
	if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: config.Level}
	if strings.EqualFold(config.Format, "text") {
		return slog.New(slog.NewTextHandler(writer, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(writer, opts)), nil
}

// SetDefault creates and sets a default logger with the given configuration
func SetDefault(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
