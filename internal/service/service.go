// Package service ties the extractor, reconciler, assistant and journal
// together behind the operations the CLI, HTTP API, MCP server and inbox
// watcher share.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/tablescribe/internal/assistant"
	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/journal"
	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/internal/tabular"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

var (
	// ErrNoStore is returned by operations that need a database when none
	// is configured.
	ErrNoStore = errors.New("no target database configured")
	// ErrNoModel is returned by operations that need a model when none is
	// configured.
	ErrNoModel = errors.New("no language model configured")
)

// Deps are the collaborators of a Service. Any of them may be nil; the
// operations that need a missing one fail with ErrNoStore or ErrNoModel and
// a nil journal disables history.
type Deps struct {
	Store   adapter.Adapter
	Model   llm.Generator
	Journal *journal.Journal
}

// Options tune a Service.
type Options struct {
	DefaultTable string
	SampleRows   int
	ReadOnly     bool
}

// Service runs tablescribe's operations.
type Service struct {
	deps   Deps
	opts   Options
	logger *slog.Logger

	extractor  *llm.Extractor
	reconciler *ingest.Reconciler
	assistant  *assistant.Assistant
}

// New creates a Service.
func New(deps Deps, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.DefaultTable == "" {
		opts.DefaultTable = assistant.DefaultTable
	}

	s := &Service{deps: deps, opts: opts, logger: logger}
	if deps.Model != nil {
		s.extractor = llm.NewExtractor(deps.Model, logger)
	}
	if deps.Store != nil {
		s.reconciler = ingest.NewReconciler(deps.Store, logger)
		var synth assistant.Synthesizer = noModel{}
		if deps.Model != nil {
			synth = llm.NewSynthesizer(deps.Model, logger)
		}
		s.assistant = assistant.New(deps.Store, synth, assistant.Options{
			SampleRows: opts.SampleRows,
			ReadOnly:   opts.ReadOnly,
		}, logger)
	}
	return s
}

type noModel struct{}

func (noModel) Synthesize(context.Context, llm.QueryRequest) (string, error) {
	return "", ErrNoModel
}

// DefaultTable returns the table previews and questions use when a request
// names none. Uploads never fall back to it.
func (s *Service) DefaultTable() string { return s.opts.DefaultTable }

// queryTable resolves the table for a preview or question.
func (s *Service) queryTable(name string) string {
	if strings.TrimSpace(name) == "" {
		return s.opts.DefaultTable
	}
	return strings.TrimSpace(name)
}

// Extraction is the outcome of reading one image.
type Extraction struct {
	Text    string           `json:"csv"`
	Extract *tabular.Extract `json:"-"`
}

// ExtractImage reads a table image into CSV text and a parsed extract.
func (s *Service) ExtractImage(ctx context.Context, image []byte) (*Extraction, error) {
	if s.extractor == nil {
		return nil, ErrNoModel
	}
	text, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}
	e, err := ingest.ParseExtract(text)
	if err != nil {
		return nil, err
	}
	return &Extraction{Text: text, Extract: e}, nil
}

// Upload reconciles extract into table and journals the outcome. source
// names where the rows came from (an image or file name) for the history.
// A blank table is a validation error; there is no default upload target.
func (s *Service) Upload(ctx context.Context, extract *tabular.Extract, table, source string) (*ingest.Result, error) {
	if s.reconciler == nil {
		return nil, ErrNoStore
	}
	table = strings.TrimSpace(table)

	res, err := s.reconciler.Reconcile(ctx, extract, table)

	entry := &journal.Upload{Source: source, Table: table}
	if res != nil {
		entry.Created = res.Created
		entry.RowsWritten = res.RowsWritten
		entry.Dropped = res.Dropped
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Created = ingest.IsPartial(err)
	}
	s.recordUpload(ctx, entry)

	return res, err
}

// UploadCSV parses CSV text and uploads it.
func (s *Service) UploadCSV(ctx context.Context, text, table, source string) (*ingest.Result, error) {
	e, err := ingest.ParseExtract(text)
	if err != nil {
		return nil, err
	}
	return s.Upload(ctx, e, table, source)
}

// ExtractAndUpload reads an image and uploads the rows into table.
func (s *Service) ExtractAndUpload(ctx context.Context, image []byte, table, source string) (*Extraction, *ingest.Result, error) {
	ex, err := s.ExtractImage(ctx, image)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Upload(ctx, ex.Extract, table, source)
	return ex, res, err
}

// Preview returns up to limit rows of table (the configured sample size
// when limit is zero).
func (s *Service) Preview(ctx context.Context, table string, limit int) (*assistant.ResultSet, error) {
	if s.assistant == nil {
		return nil, ErrNoStore
	}
	return s.assistant.PreviewN(ctx, s.queryTable(table), limit)
}

// Ask answers question about table and journals it.
func (s *Service) Ask(ctx context.Context, table, question string, dryRun bool) (*assistant.Answer, error) {
	if s.assistant == nil {
		return nil, ErrNoStore
	}
	table = s.queryTable(table)

	ans, err := s.assistant.Ask(ctx, table, question, dryRun)

	entry := &journal.Query{Table: table, Question: question, DryRun: dryRun}
	if ans != nil {
		entry.Question = ans.Question
		entry.SQL = ans.SQL
		entry.Rows = ans.Result.Len()
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.recordQuery(ctx, entry)

	return ans, err
}

// Run executes SQL through the assistant's read-only guard.
func (s *Service) Run(ctx context.Context, sql string) (*assistant.ResultSet, error) {
	if s.assistant == nil {
		return nil, ErrNoStore
	}
	return s.assistant.Run(ctx, sql)
}

// Tables lists the tables in the target store.
func (s *Service) Tables(ctx context.Context) ([]string, error) {
	if s.deps.Store == nil {
		return nil, ErrNoStore
	}
	return s.deps.Store.ListTables(ctx)
}

// Describe returns a table's columns and row count. A missing table is an
// *assistant.TableNotFoundError.
func (s *Service) Describe(ctx context.Context, table string) (*adapter.Metadata, error) {
	if s.deps.Store == nil {
		return nil, ErrNoStore
	}
	table = s.queryTable(table)
	exists, err := s.deps.Store.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &assistant.TableNotFoundError{Table: table}
	}
	return s.deps.Store.GetTableMetadata(ctx, table)
}

// UploadHistory lists journaled uploads, newest first.
func (s *Service) UploadHistory(ctx context.Context, limit int) ([]journal.Upload, error) {
	if s.deps.Journal == nil {
		return nil, nil
	}
	return s.deps.Journal.ListUploads(ctx, limit)
}

// QueryHistory lists journaled questions, newest first.
func (s *Service) QueryHistory(ctx context.Context, limit int) ([]journal.Query, error) {
	if s.deps.Journal == nil {
		return nil, nil
	}
	return s.deps.Journal.ListQueries(ctx, limit)
}

// Journal failures never fail the operation being recorded.
func (s *Service) recordUpload(ctx context.Context, u *journal.Upload) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.RecordUpload(ctx, u); err != nil {
		s.logger.Warn("failed to journal upload", slog.String("error", err.Error()))
	}
}

func (s *Service) recordQuery(ctx context.Context, q *journal.Query) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.RecordQuery(ctx, q); err != nil {
		s.logger.Warn("failed to journal query", slog.String("error", err.Error()))
	}
}
