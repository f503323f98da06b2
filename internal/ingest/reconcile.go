// Package ingest reconciles an extracted table with a relational target.
//
// When the target table is absent it is created with an auto-incrementing
// surrogate key followed by one column per extract column, typed from the
// inferred column types. When it is present the extract is narrowed to the
// columns the table already has and appended. Columns are never added to an
// existing table, and narrowing performs no type compatibility check: a
// column inferred as text can be appended into an integer column and the
// store decides what happens.
package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/tablescribe/internal/tabular"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

// PrimaryKey is the name given to the surrogate key of created tables.
const PrimaryKey = "id"

// Store is the part of a database adapter the reconciler needs.
type Store interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]adapter.Column, error)
	CreateTable(ctx context.Context, def adapter.TableDef) error
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Result describes a successful reconciliation.
type Result struct {
	Table       string   `json:"table"`
	RowsWritten int64    `json:"rows_written"`
	Created     bool     `json:"created"`
	Columns     []string `json:"columns"`
	// Dropped lists extract columns missing from an existing table, in
	// extract order. They were not written.
	Dropped []string `json:"dropped,omitempty"`
}

// Reconciler writes extracts into a store.
type Reconciler struct {
	store  Store
	logger *slog.Logger
}

// NewReconciler returns a reconciler over store.
// If logger is nil, a discard logger is used.
func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile writes extract into table, creating the table when absent and
// narrowing the extract when present. The target schema is read from the
// store on every call.
func (r *Reconciler) Reconcile(ctx context.Context, extract *tabular.Extract, table string) (*Result, error) {
	table = strings.TrimSpace(table)
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	if extract == nil {
		return nil, newError(KindValidation, table, "no extract to upload", nil)
	}
	if err := extract.Validate(); err != nil {
		return nil, newError(KindValidation, table, "invalid extract", err)
	}

	log := r.logger.With(slog.String("table", table))

	exists, err := r.store.TableExists(ctx, table)
	if err != nil {
		return nil, newError(KindConnection, table, "could not check whether the table exists", err)
	}

	if !exists {
		return r.create(ctx, log, extract, table)
	}
	return r.appendExisting(ctx, log, extract, table)
}

func (r *Reconciler) create(ctx context.Context, log *slog.Logger, extract *tabular.Extract, table string) (*Result, error) {
	def := TableDefFor(extract, table)

	log.Info("creating table", slog.Int("columns", len(def.Columns)), slog.String("primary_key", def.PrimaryKey))

	if err := r.store.CreateTable(ctx, def); err != nil {
		return nil, newError(KindSchema, table, "could not create table", err)
	}

	res := &Result{Table: table, Created: true, Columns: extract.Names()}
	n, err := r.write(ctx, extract, table)
	if err != nil {
		e := newError(KindWrite, table, "table was created but rows could not be written", err)
		e.Partial = true
		return nil, e
	}
	res.RowsWritten = n

	log.Info("uploaded rows", slog.Int64("rows", n), slog.Bool("created", true))
	return res, nil
}

func (r *Reconciler) appendExisting(ctx context.Context, log *slog.Logger, extract *tabular.Extract, table string) (*Result, error) {
	cols, err := r.store.Columns(ctx, table)
	if err != nil {
		return nil, newError(KindConnection, table, "could not read table columns", err)
	}

	target := make(map[string]bool, len(cols))
	for _, c := range cols {
		target[c.Name] = true
	}

	var extra []string
	for _, name := range extract.Names() {
		if !target[name] {
			extra = append(extra, name)
		}
	}

	narrowed := extract
	if len(extra) > 0 {
		log.Warn("dropping extra columns", slog.Any("columns", extra))
		narrowed = extract.Without(extra)
	}
	if len(narrowed.Columns) == 0 {
		return nil, newError(KindSchema, table, "the table has none of the extract's columns", nil)
	}

	n, err := r.write(ctx, narrowed, table)
	if err != nil {
		return nil, newError(KindWrite, table, "could not append rows", err)
	}

	log.Info("uploaded rows", slog.Int64("rows", n), slog.Int("dropped", len(extra)))
	return &Result{Table: table, RowsWritten: n, Columns: narrowed.Names(), Dropped: extra}, nil
}

func (r *Reconciler) write(ctx context.Context, extract *tabular.Extract, table string) (int64, error) {
	if extract.NumRows() == 0 {
		return 0, nil
	}
	return r.store.InsertRows(ctx, table, extract.Names(), extract.Rows())
}

// TableDefFor builds the definition used to create table from extract: the
// surrogate key first, then each extract column with its mapped SQL type.
func TableDefFor(extract *tabular.Extract, table string) adapter.TableDef {
	def := adapter.TableDef{
		Name:       table,
		PrimaryKey: primaryKeyName(extract.Names()),
		Columns:    make([]adapter.ColumnDef, len(extract.Columns)),
	}
	for i, c := range extract.Columns {
		def.Columns[i] = adapter.ColumnDef{Name: c.Name, Type: c.Type.SQLType()}
	}
	return def
}

// primaryKeyName returns PrimaryKey unless an extract column already uses
// that name (in any case), in which case an underscore-prefixed variant
// that is free is used.
func primaryKeyName(names []string) string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[strings.ToLower(n)] = true
	}
	if !taken[PrimaryKey] {
		return PrimaryKey
	}
	candidate := "_" + PrimaryKey
	for i := 1; taken[candidate]; i++ {
		candidate = "_" + PrimaryKey + "_" + strconv.Itoa(i)
	}
	return candidate
}

// ValidateTableName rejects empty names and names containing identifier
// quote characters or NUL. It does not trim.
func ValidateTableName(table string) error {
	if table == "" {
		return newError(KindValidation, "", "table name is required", nil)
	}
	if strings.ContainsAny(table, "\"`'[]\x00") {
		return newError(KindValidation, table, "table name must not contain quote characters", nil)
	}
	return nil
}

// ParseExtract reads model output or an uploaded file as CSV (or an HTML
// table) after stripping any code fence.
func ParseExtract(text string) (*tabular.Extract, error) {
	e, err := tabular.ParseCSV(tabular.StripCodeFence(text))
	if err != nil {
		return nil, newError(KindExtractionFormat, "", "the extracted text is not a table", err)
	}
	return e, nil
}
