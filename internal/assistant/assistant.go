// Package assistant answers natural-language questions about a table: it
// previews the table, has a model write SQL for the question, and runs it.
//
// Each call takes the table and question explicitly and returns a value;
// nothing is carried between calls.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTable      = "people"
	DefaultQuestion   = "What are the unique batch numbers?"
	DefaultSampleRows = 5
)

// ErrTableNotFound matches any *TableNotFoundError.
var ErrTableNotFound = errors.New("table not found")

// TableNotFoundError reports a preview or question against a missing table.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table '%s' does not exist", e.Table)
}

// Is lets errors.Is match ErrTableNotFound.
func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}

// Store is the part of an adapter the assistant reads through.
type Store interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Query(ctx context.Context, sql string, args ...any) (*adapter.Rows, error)
	QualifiedName(table string) string
	Dialect() *dialect.Dialect
}

// Synthesizer writes SQL for a question.
type Synthesizer interface {
	Synthesize(ctx context.Context, req llm.QueryRequest) (string, error)
}

// Options tune an Assistant.
type Options struct {
	SampleRows int
	// ReadOnly rejects generated SQL that is not a single query.
	ReadOnly bool
}

// Answer is the outcome of one question. Result is nil for a dry run.
type Answer struct {
	Table    string     `json:"table"`
	Question string     `json:"question"`
	SQL      string     `json:"sql"`
	Result   *ResultSet `json:"result,omitempty"`
}

// Assistant previews tables and answers questions about them.
type Assistant struct {
	store  Store
	synth  Synthesizer
	opts   Options
	logger *slog.Logger
}

// New creates an assistant.
func New(store Store, synth Synthesizer, opts Options, logger *slog.Logger) *Assistant {
	if opts.SampleRows <= 0 {
		opts.SampleRows = DefaultSampleRows
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assistant{store: store, synth: synth, opts: opts, logger: logger}
}

// Preview returns the first rows of table.
func (a *Assistant) Preview(ctx context.Context, table string) (*ResultSet, error) {
	return a.PreviewN(ctx, table, a.opts.SampleRows)
}

// PreviewN returns up to n rows of table.
func (a *Assistant) PreviewN(ctx context.Context, table string, n int) (*ResultSet, error) {
	table = strings.TrimSpace(table)
	if err := ingest.ValidateTableName(table); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = a.opts.SampleRows
	}

	exists, err := a.store.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &TableNotFoundError{Table: table}
	}

	query := a.store.Dialect().LimitQuery(a.store.QualifiedName(table), n)
	return a.query(ctx, query)
}

// Generate previews table and asks the model for SQL answering question.
// The SQL is not run.
func (a *Assistant) Generate(ctx context.Context, table, question string) (string, error) {
	sample, err := a.Preview(ctx, table)
	if err != nil {
		return "", err
	}
	return a.synth.Synthesize(ctx, llm.QueryRequest{
		Table:    strings.TrimSpace(table),
		Dialect:  a.store.Dialect(),
		Sample:   llm.Sample{Columns: sample.Columns, Rows: sample.Rows},
		Question: question,
	})
}

// Run executes sql and returns its rows. With ReadOnly set, anything but a
// single query is rejected before it reaches the store.
func (a *Assistant) Run(ctx context.Context, sql string) (*ResultSet, error) {
	if a.opts.ReadOnly {
		if err := CheckReadOnly(sql); err != nil {
			return nil, err
		}
	}
	return a.query(ctx, sql)
}

// Ask generates SQL for question and, unless dryRun is set, runs it. The
// answer carries the SQL even when running it fails.
func (a *Assistant) Ask(ctx context.Context, table, question string, dryRun bool) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		question = DefaultQuestion
	}
	ans := &Answer{Table: strings.TrimSpace(table), Question: question}

	sql, err := a.Generate(ctx, table, question)
	if err != nil {
		return nil, err
	}
	ans.SQL = sql
	a.logger.Info("generated SQL", slog.String("table", ans.Table), slog.String("sql", sql))

	if dryRun {
		return ans, nil
	}
	rs, err := a.Run(ctx, sql)
	if err != nil {
		return ans, err
	}
	ans.Result = rs
	return ans, nil
}

func (a *Assistant) query(ctx context.Context, sql string) (*ResultSet, error) {
	rows, err := a.store.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return ScanRows(rows.Rows)
}
