package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/askfmi/fmicrawl/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List journaled crawl runs",
	Long: `Runs lists the crawl runs recorded in the journal, newest first.
Given a run ID it shows that run's fetch outcomes and item languages.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "Number of runs to list (0=all)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return errors.New("no journal configured (set --journal or journal_path)")
	}

	journal, err := storage.NewSQLiteStorage(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = journal.Close() }()

	if len(args) == 1 {
		outcomes, err := journal.RunOutcomes(args[0])
		if err != nil {
			return fmt.Errorf("failed to read outcomes: %w", err)
		}
		languages, err := journal.ItemLanguages(args[0])
		if err != nil {
			return fmt.Errorf("failed to read languages: %w", err)
		}
		renderCounts(cmd.OutOrStdout(), "Outcome", outcomes)
		renderCounts(cmd.OutOrStdout(), "Language", languages)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := journal.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	renderRuns(cmd.OutOrStdout(), runs)
	return nil
}

// renderRuns formats runs as a table
func renderRuns(w io.Writer, runs []storage.RunRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Run", "Status", "Started", "Duration", "Fetched", "Failed", "Items", "PDF", "Rejected"})

	for _, run := range runs {
		duration := "-"
		if run.FinishedAt.Valid {
			duration = run.Duration().Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			run.ID,
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			run.Fetched,
			run.Failed,
			run.Items,
			run.PDFItems,
			run.Rejected,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "Total", len(runs)})
	t.Render()
}

// renderCounts formats a label to count map, largest first
func renderCounts(w io.Writer, label string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{label, "Count"})
	for _, k := range keys {
		name := k
		if name == "" {
			name = "unknown"
		}
		t.AppendRow(table.Row{name, counts[k]})
	}
	t.Render()
}
