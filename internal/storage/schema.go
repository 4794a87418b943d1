package storage

const schemaSQL = `
-- One row per crawl invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY NOT NULL,
    status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running', 'completed', 'cancelled', 'failed')),
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    seed_count INTEGER NOT NULL DEFAULT 0,
    fetched INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    items INTEGER NOT NULL DEFAULT 0,
    pdf_items INTEGER NOT NULL DEFAULT 0,
    rejected INTEGER NOT NULL DEFAULT 0,
    visited INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Every fetched request and what became of it
CREATE TABLE IF NOT EXISTS fetches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('page', 'pdf')),
    priority INTEGER NOT NULL DEFAULT 0,
    status_code INTEGER,
    content_type TEXT,
    response_size_bytes INTEGER,
    download_time_ms INTEGER,
    outcome TEXT NOT NULL,
    error_message TEXT,
    fetched_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_run ON fetches(run_id);
CREATE INDEX IF NOT EXISTS idx_fetches_url ON fetches(url);
CREATE INDEX IF NOT EXISTS idx_fetches_outcome ON fetches(run_id, outcome);

-- Items delivered to the output file
CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    language TEXT,
    block_count INTEGER NOT NULL,
    char_count INTEGER NOT NULL,
    scraped_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);

-- Outcome breakdown per run (for reporting)
CREATE VIEW IF NOT EXISTS run_outcomes AS
SELECT
    run_id,
    outcome,
    COUNT(*) as count
FROM fetches
GROUP BY run_id, outcome;

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
