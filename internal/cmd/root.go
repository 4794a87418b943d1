// Package cmd provides the command-line interface for fmicrawl.
// It handles command parsing, configuration loading, and crawler execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/askfmi/fmicrawl/internal/config"
	"github.com/askfmi/fmicrawl/internal/logging"
)

var (
	cfgFile   string
	envFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fmicrawl [URLs...]",
	Short: "Crawler for the FMI website and its documents",
	Long: `fmicrawl crawls the Faculty of Mathematics and Computer Science website.

It follows in-scope links in priority order, extracts headings, paragraphs,
lists and PDF pages, and writes them as a JSON item array. URLs given as
arguments replace the configured seed URLs.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	RunE:          runCrawler,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	// Configuration file flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fmicrawl.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	// Logging flags are shared by every command
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", defaults.Log.Format, "Log format: json or text")
	rootCmd.PersistentFlags().String("log-file", defaults.Log.File, "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().String("journal", defaults.JournalPath, "Path to the SQLite crawl journal (empty disables it)")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Crawl flags
	addCrawlFlags(rootCmd, defaults)

	setupViper()
}

// setupViper registers defaults for every config key and binds the flags.
// Every key gets a default so that environment variables reach settings
// that have no flag.
func setupViper() {
	d := config.DefaultConfig()
	defaults := map[string]any{
		"seed_urls":                d.SeedURLs,
		"allowed_domains":          d.AllowedDomains,
		"forbidden_substrings":     d.ForbiddenSubstrings,
		"ignored_extensions":       d.IgnoredExtensions,
		"forbidden_document_names": d.ForbiddenDocumentNames,
		"content_selectors":        d.ContentSelectors,
		"concurrency":              d.Concurrency,
		"request_delay":            d.RequestDelay,
		"request_timeout":          d.RequestTimeout,
		"max_body_size":            d.MaxBodySize,
		"user_agent":               d.UserAgent,
		"respect_robots":           d.RespectRobots,
		"limit":                    d.Limit,
		"output_path":              d.OutputPath,
		"text_output_path":         d.TextOutputPath,
		"journal_path":             d.JournalPath,
		"metrics_addr":             d.MetricsAddr,
		"schedule":                 d.Schedule,
		"log.level":                d.Log.Level,
		"log.format":               d.Log.Format,
		"log.file":                 d.Log.File,
		"log.max_size_mb":          d.Log.MaxSizeMB,
		"log.max_backups":          d.Log.MaxBackups,
		"log.max_age_days":         d.Log.MaxAgeDays,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	bindFlags(rootCmd, []flagBinding{
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"log.file", "log-file"},
		{"journal_path", "journal"},
	})
	bindFlags(rootCmd, crawlBindings)
}

// addCrawlFlags registers the crawl flags as persistent so that schedule
// inherits them. Their defaults mirror config.DefaultConfig so an unset flag
// never overrides the config file.
func addCrawlFlags(cmd *cobra.Command, defaults *config.CrawlConfig) {
	flags := cmd.PersistentFlags()
	flags.IntP("concurrency", "c", defaults.Concurrency, "Number of concurrent workers")
	flags.DurationP("delay", "r", defaults.RequestDelay, "Minimum delay between requests to one host")
	flags.DurationP("timeout", "t", defaults.RequestTimeout, "HTTP request timeout")
	flags.StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	flags.Bool("respect-robots", defaults.RespectRobots, "Honour robots.txt rules")
	flags.IntP("limit", "l", defaults.Limit, "Stop after N fetches (0=unlimited)")
	flags.StringP("output", "o", defaults.OutputPath, "JSON output file")
	flags.String("text-output", defaults.TextOutputPath, "Converted text output file")
	flags.String("metrics-addr", defaults.MetricsAddr, "Serve Prometheus metrics on this address (e.g. :9090)")
}

type flagBinding struct {
	viperKey string
	flagName string
}

var crawlBindings = []flagBinding{
	{"concurrency", "concurrency"},
	{"request_delay", "delay"},
	{"request_timeout", "timeout"},
	{"user_agent", "user-agent"},
	{"respect_robots", "respect-robots"},
	{"limit", "limit"},
	{"output_path", "output"},
	{"text_output_path", "text-output"},
	{"metrics_addr", "metrics-addr"},
}

func bindFlags(cmd *cobra.Command, bindings []flagBinding) {
	for _, bind := range bindings {
		flag := cmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in the dotenv file, config file and ENV variables if set.
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("fmicrawl")
	}

	viper.SetEnvPrefix("FMICRAWL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment and flags. URL
// arguments replace the seed list.
func loadConfig(args []string) (*config.CrawlConfig, error) {
	cfg := &config.CrawlConfig{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.SeedURLs = args
	}

	return cfg, nil
}

// setupLogging installs the default logger described by cfg
func setupLogging(cfg *config.CrawlConfig) error {
	if err := logging.SetDefault(logging.FromCrawlConfig(cfg.Log)); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	return nil
}

func showCurrentConfig(cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Printf("# Current fmicrawl configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Configuration file search paths: ./fmicrawl.yml\n")
	fmt.Printf("# Environment variables prefix: FMICRAWL_\n\n")

	fmt.Print(string(yamlData))

	fmt.Printf("\n# Configuration source priority:\n")
	fmt.Printf("# 1. Command-line arguments (highest priority)\n")
	fmt.Printf("# 2. Environment variables (FMICRAWL_ prefix, .env supported)\n")
	fmt.Printf("# 3. Configuration file (fmicrawl.yml)\n")
	fmt.Printf("# 4. Default values (lowest priority)\n")

	return nil
}

func runCrawler(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if showConfig {
		return showCurrentConfig(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	slog.Info("Starting crawler with configuration",
		"seed_urls", len(cfg.SeedURLs),
		"allowed_domains", cfg.AllowedDomains,
		"limit", cfg.Limit,
		"concurrency", cfg.Concurrency,
		"request_delay", cfg.RequestDelay,
		"respect_robots", cfg.RespectRobots,
		"output", cfg.OutputPath,
		"journal", cfg.JournalPath,
	)

	r, err := newRunner(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = r.crawl(cmd.Context())
	if errors.Is(err, context.Canceled) {
		slog.Warn("Crawl interrupted; partial output written", "output", cfg.OutputPath)
		return nil
	}
	return err
}
