package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/askfmi/fmicrawl/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input] [output]",
	Short: "Convert a crawl's JSON output to a plain-text context file",
	Long: `Convert renders the JSON item array produced by a crawl as plain text:
one block per item with its source URL and access date, section markers
for headings, and page markers for PDF pages.

input defaults to the configured output path and output to the configured
text output path.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	in, out := cfg.OutputPath, cfg.TextOutputPath
	if len(args) > 0 {
		in = args[0]
	}
	if len(args) > 1 {
		out = args[1]
	}

	n, err := convert.ConvertFile(in, out)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	slog.Info("Converted crawl output", "input", in, "output", out, "items", n)
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %d items from %s to %s\n", n, in, out)
	return nil
}
