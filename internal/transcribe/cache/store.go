// Package cache persists finished transcripts in SQLite so re-running the
// pipeline on the same audio with the same model skips inference.
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"captioner/internal/transcribe"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a transcribe.Cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Entry summarizes one cached transcript.
type Entry struct {
	Key        string
	Model      string
	Language   string
	TokenCount int
	Degraded   bool
	CreatedAt  time.Time
	AccessedAt time.Time
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'captioner cache clear' or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Lookup returns the cached result for key and refreshes its access time.
func (s *Store) Lookup(ctx context.Context, key string) (transcribe.Result, bool, error) {
	var payload string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT payload FROM transcripts WHERE cache_key = ?", key).Scan(&payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return transcribe.Result{}, false, nil
	}
	if err != nil {
		return transcribe.Result{}, false, fmt.Errorf("lookup transcript: %w", err)
	}
	var result transcribe.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return transcribe.Result{}, false, fmt.Errorf("decode cached transcript: %w", err)
	}
	_ = s.exec(ctx, "UPDATE transcripts SET accessed_at = ? WHERE cache_key = ?", formatTime(s.now()), key)
	return result, true, nil
}

// Store saves result under key, replacing any previous entry.
func (s *Store) Store(ctx context.Context, key string, result transcribe.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	now := formatTime(s.now())
	err = s.exec(ctx, `INSERT INTO transcripts (cache_key, model, language, token_count, degraded, payload, created_at, accessed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
    model = excluded.model,
    language = excluded.language,
    token_count = excluded.token_count,
    degraded = excluded.degraded,
    payload = excluded.payload,
    accessed_at = excluded.accessed_at`,
		key, result.Model, result.Language, len(result.Tokens), boolToInt(result.Degraded), string(payload), now, now)
	if err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	return nil
}

// List returns entries ordered by most recent access.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cache_key, model, language, token_count, degraded, created_at, accessed_at
FROM transcripts ORDER BY accessed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			degraded          int
			created, accessed string
		)
		if err := rows.Scan(&e.Key, &e.Model, &e.Language, &e.TokenCount, &degraded, &created, &accessed); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.Degraded = degraded != 0
		e.CreatedAt = parseTime(created)
		e.AccessedAt = parseTime(accessed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune removes entries not accessed since cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM transcripts WHERE accessed_at < ?", formatTime(cutoff))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune transcripts: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every cached transcript.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.exec(ctx, "DELETE FROM transcripts"); err != nil {
		return fmt.Errorf("clear transcripts: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
