// Package journal keeps a local history of uploads and questions in a
// SQLite database migrated with goose.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	// sqlite driver for the journal database.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Upload is one reconciliation of an extract into a table.
type Upload struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Source      string    `json:"source"`
	Table       string    `json:"table"`
	Created     bool      `json:"created"`
	RowsWritten int64     `json:"rows_written"`
	Dropped     []string  `json:"dropped,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Query is one question put to the assistant.
type Query struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Table     string    `json:"table"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	DryRun    bool      `json:"dry_run"`
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
}

// Journal records uploads and queries.
type Journal struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the journal at path and applies pending
// migrations. Use ":memory:" for a throwaway journal.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("journal opened", slog.String("path", path))
	return &Journal{db: db, path: path, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Version returns the applied migration version.
func (j *Journal) Version() (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersion(j.db)
}

// Path returns the journal's file path.
func (j *Journal) Path() string { return j.path }

// Close closes the journal database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func stamp(id *string, at *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if at.IsZero() {
		*at = time.Now().UTC()
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordUpload stores u, filling in its ID and timestamp when unset.
func (j *Journal) RecordUpload(ctx context.Context, u *Upload) error {
	stamp(&u.ID, &u.CreatedAt)

	dropped := u.Dropped
	if dropped == nil {
		dropped = []string{}
	}
	droppedJSON, err := json.Marshal(dropped)
	if err != nil {
		return fmt.Errorf("failed to encode dropped columns: %w", err)
	}

	j.logger.Debug("recording upload", slog.String("id", u.ID), slog.String("table", u.Table))
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO uploads (id, created_at, source, table_name, created, rows_written, dropped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.CreatedAt, u.Source, u.Table, u.Created, u.RowsWritten, string(droppedJSON), nullString(u.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

// RecordQuery stores q, filling in its ID and timestamp when unset.
func (j *Journal) RecordQuery(ctx context.Context, q *Query) error {
	stamp(&q.ID, &q.CreatedAt)

	j.logger.Debug("recording query", slog.String("id", q.ID), slog.String("table", q.Table))
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO queries (id, created_at, table_name, question, sql_text, dry_run, row_count, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.CreatedAt, q.Table, q.Question, q.SQL, q.DryRun, q.Rows, nullString(q.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// ListUploads returns up to limit uploads, newest first. A limit of zero
// or less returns all of them.
func (j *Journal) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, source, table_name, created, rows_written, dropped, error
		 FROM uploads ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Upload
	for rows.Next() {
		var u Upload
		var dropped string
		var errMsg sql.NullString
		if err := rows.Scan(&u.ID, &u.CreatedAt, &u.Source, &u.Table, &u.Created, &u.RowsWritten, &dropped, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		if err := json.Unmarshal([]byte(dropped), &u.Dropped); err != nil {
			return nil, fmt.Errorf("failed to decode dropped columns: %w", err)
		}
		if len(u.Dropped) == 0 {
			u.Dropped = nil
		}
		u.Error = errMsg.String
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}
	return out, nil
}

// ListQueries returns up to limit queries, newest first.
func (j *Journal) ListQueries(ctx context.Context, limit int) ([]Query, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, table_name, question, sql_text, dry_run, row_count, error
		 FROM queries ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Query
	for rows.Next() {
		var q Query
		var errMsg sql.NullString
		if err := rows.Scan(&q.ID, &q.CreatedAt, &q.Table, &q.Question, &q.SQL, &q.DryRun, &q.Rows, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		q.Error = errMsg.String
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queries: %w", err)
	}
	return out, nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
