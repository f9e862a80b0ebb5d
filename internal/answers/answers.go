// Package answers provides a SQLite-backed request log for the question
// answering service. Every answered question is recorded with its latency,
// model, and cache outcome; the aggregate view backs the stats endpoint.
package answers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Record is one answered question.
type Record struct {
	// Question is the question as asked.
	Question string `json:"question"`
	// Answer is the returned answer text.
	Answer string `json:"answer"`
	// Model is the model that produced (or originally produced) the answer.
	Model string `json:"model"`
	// LatencyMS is the wall-clock request latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
	// CacheHit reports whether the answer came from the cache.
	CacheHit bool `json:"cache_hit"`
	// CreatedAt is when the record was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the aggregate view over all records.
type Stats struct {
	// Total is the number of answered questions.
	Total int64 `json:"total_questions"`
	// CacheHits is the number answered from the cache.
	CacheHits int64 `json:"cache_hits"`
	// AvgLatencyMS is the mean request latency in milliseconds.
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Log persists and aggregates answer records. Implementations must be safe
// for concurrent use.
type Log interface {
	// Append persists a single record.
	Append(ctx context.Context, rec Record) error
	// Recent returns the most recent n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)
	// Stats returns the aggregate view.
	Stats(ctx context.Context) (Stats, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteLog is a Log backed by a local SQLite database.
type SQLiteLog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the answer log database.
// It resolves to ~/.docqa/answers.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("answers: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("answers: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "answers.db"), nil
}

// Open opens (or creates) a SQLiteLog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("answers: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	l := &SQLiteLog{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// migrate creates the schema if it does not already exist.
func (l *SQLiteLog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answers (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    answer      TEXT    NOT NULL,
    model       TEXT    NOT NULL,
    latency_ms  INTEGER NOT NULL,
    cache_hit   INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_answers_created
    ON answers (created_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("answers: migrate: %w", err)
	}
	return nil
}

// Append persists a single record.
func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	const q = `INSERT INTO answers (question, answer, model, latency_ms, cache_hit, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	hit := 0
	if rec.CacheHit {
		hit = 1
	}
	if _, err := l.db.ExecContext(ctx, q,
		rec.Question, rec.Answer, rec.Model, rec.LatencyMS, hit, time.Now().Unix()); err != nil {
		return fmt.Errorf("answers: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n records, newest first.
func (l *SQLiteLog) Recent(ctx context.Context, n int) ([]Record, error) {
	const q = `
SELECT question, answer, model, latency_ms, cache_hit, created_at
FROM   answers
ORDER  BY created_at DESC, id DESC
LIMIT  ?`
	rows, err := l.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("answers: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var hit int
		var ts int64
		if err := rows.Scan(&rec.Question, &rec.Answer, &rec.Model, &rec.LatencyMS, &hit, &ts); err != nil {
			return nil, fmt.Errorf("answers: scan: %w", err)
		}
		rec.CacheHit = hit != 0
		rec.CreatedAt = time.Unix(ts, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("answers: rows: %w", err)
	}
	return out, nil
}

// Stats returns the aggregate view. An empty log yields zero values.
func (l *SQLiteLog) Stats(ctx context.Context) (Stats, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(cache_hit), 0),
       COALESCE(AVG(latency_ms), 0)
FROM   answers`
	var s Stats
	if err := l.db.QueryRowContext(ctx, q).Scan(&s.Total, &s.CacheHits, &s.AvgLatencyMS); err != nil {
		return Stats{}, fmt.Errorf("answers: stats: %w", err)
	}
	return s, nil
}

// Close releases the database connection pool.
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("answers: close: %w", err)
	}
	return nil
}
