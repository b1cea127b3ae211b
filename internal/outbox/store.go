// Package outbox persists annotation records that could not be delivered,
// in insertion order, until a later delivery attempt succeeds.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go-region-annotator/internal/annotation"
)

// Entry is one pending record plus its delivery metadata. Seq fixes the
// retry order: insertion order, never reordered.
type Entry struct {
	Seq        int64
	Record     annotation.Record
	EnqueuedAt time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS outbox (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	record TEXT NOT NULL,
	enqueued_at_ms INTEGER NOT NULL
);`

// Store is the durable pending-record collection.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the outbox database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("outbox path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open outbox db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping outbox db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create outbox table: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Enqueue appends one record. Records enter the outbox only on delivery
// failure and leave only on confirmed delivery.
func (s *Store) Enqueue(ctx context.Context, rec annotation.Record) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Entry{}, fmt.Errorf("encode record: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO outbox (record, enqueued_at_ms) VALUES (?, ?)`,
		string(raw), now.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("insert outbox entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("read outbox seq: %w", err)
	}
	return Entry{Seq: seq, Record: rec, EnqueuedAt: now}, nil
}

// Entries returns all pending entries in insertion order.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, record, enqueued_at_ms FROM outbox ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			seq  int64
			raw  string
			atMs int64
		)
		if err := rows.Scan(&seq, &raw, &atMs); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		var rec annotation.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode outbox entry %d: %w", seq, err)
		}
		entries = append(entries, Entry{
			Seq:        seq,
			Record:     rec,
			EnqueuedAt: time.UnixMilli(atMs).UTC(),
		})
	}
	return entries, rows.Err()
}

// Delete removes one confirmed-delivered entry.
func (s *Store) Delete(ctx context.Context, seq int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM outbox WHERE seq = ?`, seq)
	if err != nil {
		return fmt.Errorf("delete outbox entry %d: %w", seq, err)
	}
	return nil
}

// Count returns the number of pending entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
