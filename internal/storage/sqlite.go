// Package storage provides the SQLite crawl journal.
// It records runs, fetch outcomes and delivered items; it never feeds
// state back into a crawl.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askfmi/fmicrawl/internal/crawler"
	"github.com/askfmi/fmicrawl/internal/item"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Meta keys kept in crawl_meta
const (
	MetaLastRunID = "last_run_id"
	MetaLastRunAt = "last_run_at"
)

// ErrRunNotFound is returned when a run ID is unknown
var ErrRunNotFound = errors.New("run not found")

// SQLiteStorage implements crawler.Journal using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ crawler.Journal = (*SQLiteStorage)(nil)

// RunRecord is one row of the runs table
type RunRecord struct {
	ID         string
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	SeedCount  int
	Fetched    int
	Failed     int
	Items      int
	PDFItems   int
	Rejected   int
	Visited    int
}

// Duration returns the run's wall time, zero while it is still running
func (r RunRecord) Duration() time.Duration {
	if !r.FinishedAt.Valid {
		return 0
	}
	return r.FinishedAt.Time.Sub(r.StartedAt)
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginRun inserts a run in the running state
func (s *SQLiteStorage) BeginRun(run *crawler.RunInfo) error {
	status := run.Status
	if status == "" {
		status = crawler.RunRunning
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, status, started_at, seed_count)
		VALUES (?, ?, ?, ?)
	`, run.ID, status, run.StartedAt.UTC(), len(run.Seeds))
	if err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}

	if err := s.SetMeta(MetaLastRunID, run.ID); err != nil {
		return err
	}
	return s.SetMeta(MetaLastRunAt, run.StartedAt.UTC().Format(time.RFC3339))
}

// RecordFetch stores the outcome of one request
func (s *SQLiteStorage) RecordFetch(runID string, rec *crawler.FetchRecord) error {
	var statusCode sql.NullInt64
	if rec.StatusCode > 0 {
		statusCode = sql.NullInt64{Int64: int64(rec.StatusCode), Valid: true}
	}
	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO fetches (
			run_id, url, kind, priority, status_code, content_type,
			response_size_bytes, download_time_ms, outcome, error_message, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		rec.URL,
		rec.Kind.String(),
		rec.Priority,
		statusCode,
		rec.ContentType,
		rec.Size,
		rec.Duration.Milliseconds(),
		rec.Outcome,
		errMsg,
		rec.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record fetch %s: %w", rec.URL, err)
	}
	return nil
}

// RecordItem stores a summary of a delivered item
func (s *SQLiteStorage) RecordItem(runID string, it *item.Item) error {
	text := it.Text()
	language := detectLanguage(it.Metadata.Title, text)

	_, err := s.db.Exec(`
		INSERT INTO items (
			run_id, url, kind, title, language, block_count, char_count, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		it.Metadata.URL,
		it.Kind(),
		it.Metadata.Title,
		language,
		len(it.Blocks),
		len([]rune(text)),
		it.Metadata.ScrapedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record item %s: %w", it.Metadata.URL, err)
	}
	return nil
}

// FinishRun stores final counters and the terminal status
func (s *SQLiteStorage) FinishRun(runID, status string, stats crawler.CrawlStats) error {
	finishedAt := time.Now().UTC()
	if !stats.StartTime.IsZero() && stats.Duration > 0 {
		finishedAt = stats.StartTime.Add(stats.Duration).UTC()
	}

	result, err := s.db.Exec(`
		UPDATE runs SET
			status = ?,
			finished_at = ?,
			fetched = ?,
			failed = ?,
			items = ?,
			pdf_items = ?,
			rejected = ?,
			visited = ?
		WHERE id = ?
	`,
		status,
		finishedAt,
		stats.Fetched,
		stats.Failed,
		stats.Items,
		stats.PDFItems,
		stats.Rejected,
		stats.Visited,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (s *SQLiteStorage) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.Query(`
		SELECT id, status, started_at, finished_at, seed_count,
			fetched, failed, items, pdf_items, rejected, visited
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.Status, &r.StartedAt, &r.FinishedAt, &r.SeedCount,
			&r.Fetched, &r.Failed, &r.Items, &r.PDFItems, &r.Rejected, &r.Visited,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// RunOutcomes returns the fetch outcome counts of a run
func (s *SQLiteStorage) RunOutcomes(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT outcome, count FROM run_outcomes WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	outcomes := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes[outcome] = count
	}

	return outcomes, rows.Err()
}

// ItemLanguages returns the number of items per detected language in a run
func (s *SQLiteStorage) ItemLanguages(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(language, ''), COUNT(*)
		FROM items
		WHERE run_id = ?
		GROUP BY language
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query languages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	languages := make(map[string]int)
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		languages[lang] = count
	}

	return languages, rows.Err()
}

// GetMeta retrieves a metadata value
func (s *SQLiteStorage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteStorage) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}
