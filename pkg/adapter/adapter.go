// Package adapter provides the database adapter contract used by tablescribe
// to inspect, create and append to relational tables and to run generated
// queries.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves from init().
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

// Config holds configuration for connecting to a database.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column represents a column in a database table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// ColumnDef is a column to create. Type is a generic SQL type name
// (INTEGER, FLOAT, TIMESTAMP, BOOLEAN, TEXT) that the adapter translates
// through its dialect.
type ColumnDef struct {
	Name string
	Type string
}

// TableDef describes a table to create: an auto-incrementing surrogate key
// named PrimaryKey followed by Columns in order.
type TableDef struct {
	Name       string
	PrimaryKey string
	Columns    []ColumnDef
}

// Metadata holds metadata about a database table.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// TableExists reports whether the table exists in the configured schema.
	TableExists(ctx context.Context, table string) (bool, error)

	// Columns lists the table's columns in ordinal order.
	Columns(ctx context.Context, table string) ([]Column, error)

	// GetTableMetadata retrieves columns and row count for a table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// ListTables lists base tables in the configured schema, sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// CreateTable creates the table. It is not idempotent: creating a table
	// that already exists fails.
	CreateTable(ctx context.Context, def TableDef) error

	// InsertRows appends rows to the named columns and returns the number
	// of rows written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// QualifiedName returns the quoted, schema-qualified name of a table.
	QualifiedName(table string) string

	// Dialect returns the SQL dialect for this adapter.
	Dialect() *dialect.Dialect
}
