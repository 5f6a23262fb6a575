// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of processed PDFs so past runs can
// be reviewed with the history command. Quota timestamps are never stored
// here; the daily window lives only in memory.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// DefaultLimit is the number of rows List returns when none is given.
const DefaultLimit = 50

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_pdf TEXT NOT NULL,
			output_path TEXT,
			status TEXT NOT NULL,
			pages INTEGER NOT NULL DEFAULT 0,
			skipped_pages INTEGER NOT NULL DEFAULT 0,
			model TEXT,
			detail TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_pdf)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_finished ON documents(finished_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one document outcome.
func (s *Store) Record(ctx context.Context, rec types.DocumentRecord) error {
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents
			(source_pdf, output_path, status, pages, skipped_pages, model, detail, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourcePDF, rec.OutputPath, string(rec.Status), rec.Pages, rec.SkippedPages,
		rec.Model, rec.Detail, rec.Duration.Milliseconds(), finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rec.SourcePDF, err)
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	// Status keeps only records with this status when non-empty.
	Status types.DocumentStatus

	// Limit caps the number of records (default DefaultLimit).
	Limit int
}

// List returns the most recent records first.
func (s *Store) List(ctx context.Context, f Filter) ([]types.DocumentRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT source_pdf, output_path, status, pages, skipped_pages, model, detail, duration_ms, finished_at
		FROM documents`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var recs []types.DocumentRecord
	for rows.Next() {
		var (
			rec              types.DocumentRecord
			output, model    sql.NullString
			detail, finished sql.NullString
			status           string
			durationMS       int64
		)
		if err := rows.Scan(&rec.SourcePDF, &output, &status, &rec.Pages, &rec.SkippedPages,
			&model, &detail, &durationMS, &finished); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		rec.OutputPath = output.String
		rec.Status = types.DocumentStatus(status)
		rec.Model = model.String
		rec.Detail = detail.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			rec.FinishedAt = t
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RenderTable formats records as a table for the terminal.
func RenderTable(recs []types.DocumentRecord) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Finished", "PDF", "Status", "Pages", "Skipped", "Duration", "Detail"})

	for _, r := range recs {
		t.AppendRow(table.Row{
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			filepath.Base(r.SourcePDF),
			string(r.Status),
			r.Pages,
			r.SkippedPages,
			r.Duration.Round(time.Second).String(),
			r.Detail,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d documents", len(recs)), "", "", "", "", ""})
	return t.Render()
}
