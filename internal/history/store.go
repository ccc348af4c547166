// Package history persists completed-run records and small key/value
// settings in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed or failed pipeline run.
type Run struct {
	ID          int64
	Source      string
	SourceKind  string
	Artist      string
	Album       string
	TargetDir   string
	Status      string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Settings keys.
const (
	KeyLicenseCheckedAt = "license_checked_at"
	KeyLastLibraryRoot  = "last_library_root"
)

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	artist TEXT NOT NULL DEFAULT '',
	album TEXT NOT NULL DEFAULT '',
	target_dir TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if needed) the history database at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordRun appends one run record and returns its ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (source, source_kind, artist, album, target_dir, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Source, run.SourceKind, run.Artist, run.Album, run.TargetDir,
		run.Status, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return res.LastInsertId()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, source_kind, artist, album, target_dir, status, error, started_at, completed_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run          Run
			startedRaw   sql.NullString
			completedRaw sql.NullString
		)
		if err := rows.Scan(
			&run.ID, &run.Source, &run.SourceKind, &run.Artist, &run.Album,
			&run.TargetDir, &run.Status, &run.Error, &startedRaw, &completedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if started, err := parseTimeString(startedRaw.String); err == nil {
			run.StartedAt = started
		}
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = completed
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// Setting returns the value for key, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a key/value pair.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// LicenseCheckedAt returns the last successful license-check time, zero when
// never recorded.
func (s *Store) LicenseCheckedAt(ctx context.Context) (time.Time, error) {
	raw, err := s.Setting(ctx, KeyLicenseCheckedAt)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

// MarkLicenseChecked records a successful license check at now.
func (s *Store) MarkLicenseChecked(ctx context.Context, now time.Time) error {
	return s.SetSetting(ctx, KeyLicenseCheckedAt, now.UTC().Format(time.RFC3339))
}
