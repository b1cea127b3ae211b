// Package collector is the receiving side of the pipeline: a small HTTP
// service that accepts annotation records, persists them, and serves the
// category schema back to capture agents.
package collector

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go-region-annotator/internal/annotation"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS annotations (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	subcategory TEXT NOT NULL DEFAULT '',
	primary_text TEXT NOT NULL,
	secondary_text TEXT NOT NULL DEFAULT '',
	source_ref TEXT NOT NULL DEFAULT '',
	image_data TEXT NOT NULL DEFAULT '',
	created_at_ms INTEGER NOT NULL,
	received_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_annotations_kind ON annotations (kind, subcategory);`

// Default category lists served when no records have established any yet.
var (
	defaultHeadCategories = []string{"general", "material", "style", "lighting", "composition"}
	defaultTailCategories = []string{"general", "parameters", "postprocess"}
)

// Store persists received annotation records.
type Store struct {
	sqlDB *sql.DB
}

// OpenStore opens (or creates) the annotations database at path.
func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("collector db path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open collector db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping collector db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create annotations table: %w", err)
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

// Upsert stores a record, replacing any previous row with the same ID.
// Retried deliveries of the same record therefore collapse to one row. An
// upsert without image data keeps a previously stored image.
func (s *Store) Upsert(ctx context.Context, rec annotation.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO annotations (id, kind, subcategory, primary_text, secondary_text, source_ref, image_data, created_at_ms, received_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kind = excluded.kind,
	subcategory = excluded.subcategory,
	primary_text = excluded.primary_text,
	secondary_text = excluded.secondary_text,
	source_ref = excluded.source_ref,
	image_data = CASE WHEN excluded.image_data = '' THEN annotations.image_data ELSE excluded.image_data END,
	received_at_ms = excluded.received_at_ms`,
		rec.ID, string(rec.Kind), rec.Subcategory, rec.PrimaryText, rec.SecondaryText,
		rec.SourceRef, rec.ImageData, createdAt.UnixMilli(), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert annotation %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns one stored record by ID.
func (s *Store) Get(ctx context.Context, id string) (annotation.Record, error) {
	var (
		rec         annotation.Record
		kind        string
		createdAtMs int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, kind, subcategory, primary_text, secondary_text, source_ref, image_data, created_at_ms
FROM annotations WHERE id = ?`, id).Scan(
		&rec.ID, &kind, &rec.Subcategory, &rec.PrimaryText, &rec.SecondaryText,
		&rec.SourceRef, &rec.ImageData, &createdAtMs)
	if err != nil {
		return annotation.Record{}, fmt.Errorf("get annotation %s: %w", id, err)
	}
	rec.Kind = annotation.Kind(kind)
	rec.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	return rec, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count annotations: %w", err)
	}
	return n, nil
}

// Categories returns the distinct subcategories seen for a record kind, in
// first-seen order. Falls back to the defaults when the store has none.
func (s *Store) Categories(ctx context.Context, kind annotation.Kind) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT subcategory FROM annotations
WHERE kind = ? AND subcategory != ''
GROUP BY subcategory ORDER BY MIN(received_at_ms) ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(categories) == 0 {
		if kind == annotation.KindTail {
			return append([]string(nil), defaultTailCategories...), nil
		}
		return append([]string(nil), defaultHeadCategories...), nil
	}
	return categories, nil
}
