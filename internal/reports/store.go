// Package reports keeps a SQLite history of scan and fix passes.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Schema is the DDL for the reports database.
const Schema = `
CREATE TABLE IF NOT EXISTS reports (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    kind        TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    mode        TEXT NOT NULL DEFAULT 'static',
    session_id  TEXT NOT NULL DEFAULT '',
    issues      INTEGER NOT NULL DEFAULT 0,
    fixed       INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at DESC);
`

// Kinds of recorded passes.
const (
	KindScan = "scan"
	KindFix  = "fix"
)

// Report is one recorded pass.
type Report struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url,omitempty"`
	Mode      string    `json:"mode"`
	SessionID string    `json:"session,omitempty"`
	Issues    int       `json:"issues"`
	Fixed     int       `json:"fixed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the reports database handle.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir reports dir: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open reports db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply reports schema: %w", err)
	}
	return &Store{DB: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Record inserts r, stamping CreatedAt when it is zero, and returns the new id.
func (s *Store) Record(ctx context.Context, r Report) (int64, error) {
	if r.Kind == "" {
		return 0, fmt.Errorf("record report: missing kind")
	}
	if r.Mode == "" {
		r.Mode = "static"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO reports (kind, url, mode, session_id, issues, fixed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.URL, r.Mode, r.SessionID, r.Issues, r.Fixed, r.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("record report: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit reports, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, kind, url, mode, session_id, issues, fixed, created_at
		FROM reports ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		var r Report
		var created int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.URL, &r.Mode, &r.SessionID, &r.Issues, &r.Fixed, &created); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
