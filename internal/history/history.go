// Package history remembers sessions this client brought up, so a later run
// can offer the most recent one for reconnect.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("history: not found")

// Entry is one session that reached RUNNING through create.
type Entry struct {
	ARN           string
	StreamGroupID string
	ApplicationID string
	Region        string
	StartedAt     time.Time
}

type Store struct {
	db    *sql.DB
	limit int
}

// Open creates or opens the database at path and migrates it. Only the most
// recent limit entries are kept; limit <= 0 keeps everything.
func Open(ctx context.Context, path string, limit int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db, limit: limit}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts e and trims the table to the store's limit.
func (s *Store) Record(ctx context.Context, e Entry) error {
	e.ARN = strings.TrimSpace(e.ARN)
	if e.ARN == "" {
		return fmt.Errorf("history: arn is required")
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(arn, stream_group_id, application_id, region, started_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(arn) DO UPDATE SET
	stream_group_id=excluded.stream_group_id,
	application_id=excluded.application_id,
	region=excluded.region,
	started_at=excluded.started_at
`, e.ARN, e.StreamGroupID, e.ApplicationID, e.Region, ts(e.StartedAt))
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}

	if s.limit > 0 {
		_, err = s.db.ExecContext(ctx, `
DELETE FROM sessions WHERE arn NOT IN (
	SELECT arn FROM sessions ORDER BY started_at DESC LIMIT ?
)`, s.limit)
		if err != nil {
			return fmt.Errorf("history: trim: %w", err)
		}
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT arn, stream_group_id, application_id, region, started_at
FROM sessions ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			started string
		)
		if err := rows.Scan(&e.ARN, &e.StreamGroupID, &e.ApplicationID, &e.Region, &started); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if e.StartedAt, err = parseTS(started); err != nil {
			return nil, fmt.Errorf("history: parse started_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Latest is the newest entry, or ErrNotFound.
func (s *Store) Latest(ctx context.Context) (Entry, error) {
	entries, err := s.Recent(ctx, 1)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	return entries[0], nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
