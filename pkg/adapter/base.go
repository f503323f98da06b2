package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// implementations built on information_schema and batched INSERTs.
type BaseSQLAdapter struct {
	DB         *sql.DB
	Cfg        Config
	Logger     *slog.Logger
	SQLDialect *dialect.Dialect
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Dialect returns the SQL dialect for this adapter.
func (b *BaseSQLAdapter) Dialect() *dialect.Dialect {
	return b.SQLDialect
}

// SchemaName returns the configured schema, or the dialect default.
func (b *BaseSQLAdapter) SchemaName() string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	if b.SQLDialect != nil {
		return b.SQLDialect.DefaultSchema
	}
	return ""
}

// QualifiedName returns the quoted schema-qualified table name.
func (b *BaseSQLAdapter) QualifiedName(table string) string {
	return b.SQLDialect.QualifiedName(b.SchemaName(), table)
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLAdapter) checkReady() error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if b.SQLDialect == nil {
		return dialect.ErrDialectRequired
	}
	return nil
}

// TableExists reports whether a base table or view with the name exists in
// the configured schema, using information_schema.tables.
func (b *BaseSQLAdapter) TableExists(ctx context.Context, table string) (bool, error) {
	if err := b.checkReady(); err != nil {
		return false, err
	}
	d := b.SQLDialect

	//nolint:gosec // Placeholders come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = %s AND table_name = %s
	`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	var n int64
	if err := b.DB.QueryRowContext(ctx, query, b.SchemaName(), table).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return n > 0, nil
}

// Columns lists a table's columns from information_schema.columns.
// A table that does not exist yields no columns and no error.
func (b *BaseSQLAdapter) Columns(ctx context.Context, table string) ([]Column, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}
	d := b.SQLDialect

	//nolint:gosec // Placeholders come from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	rows, err := b.DB.QueryContext(ctx, query, b.SchemaName(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return columns, nil
}

// GetTableMetadata combines Columns with a row count.
func (b *BaseSQLAdapter) GetTableMetadata(ctx context.Context, table string) (*Metadata, error) {
	columns, err := b.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", b.QualifiedName(table)) //nolint:gosec // identifiers are quoted
	var rowCount int64
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		// Non-fatal error, just set to 0
		rowCount = 0
	}

	return &Metadata{
		Schema:   b.SchemaName(),
		Name:     table,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

// ListTables lists base tables in the configured schema.
func (b *BaseSQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	if err := b.checkReady(); err != nil {
		return nil, err
	}

	//nolint:gosec // Placeholder comes from dialect.FormatPlaceholder
	query := fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, b.SQLDialect.FormatPlaceholder(1))

	return b.QueryStrings(ctx, query, b.SchemaName())
}

// QueryStrings runs a query returning one string column.
func (b *BaseSQLAdapter) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return out, nil
}

// CreateTable issues CREATE TABLE for def in its own statement.
func (b *BaseSQLAdapter) CreateTable(ctx context.Context, def TableDef) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	stmt := CreateTableSQL(b.SQLDialect, b.SchemaName(), def, b.SQLDialect.IdentityColumn)

	b.logger().Debug("creating table", slog.String("table", def.Name), slog.Int("columns", len(def.Columns)))

	if _, err := b.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", def.Name, err)
	}
	return nil
}

// CreateTableSQL renders CREATE TABLE with the surrogate key first, written
// as its quoted name followed by identity, then each column with its type
// translated through the dialect.
func CreateTableSQL(d *dialect.Dialect, schema string, def TableDef, identity string) string {
	defs := make([]string, 0, len(def.Columns)+1)
	if def.PrimaryKey != "" {
		defs = append(defs, d.QuoteIdent(def.PrimaryKey)+" "+identity)
	}
	for _, c := range def.Columns {
		defs = append(defs, d.QuoteIdent(c.Name)+" "+d.TypeName(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", d.QualifiedName(schema, def.Name), strings.Join(defs, ",\n\t"))
}

// InsertRows appends rows with multi-row INSERT statements inside one
// transaction. Statements are sized to stay under the dialect's bind
// parameter limit.
func (b *BaseSQLAdapter) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if err := b.checkReady(); err != nil {
		return 0, err
	}
	if err := CheckRowWidths(columns, rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	d := b.SQLDialect
	target := b.QualifiedName(table)
	size := d.BatchSize(len(columns))

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var written int64
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		stmt, args := InsertSQL(d, target, columns, rows[start:end])
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("failed to insert rows into %s: %w", table, err)
		}
		written += int64(end - start)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rows into %s: %w", table, err)
	}

	b.logger().Debug("inserted rows", slog.String("table", table), slog.Int64("rows", written))
	return written, nil
}

// InsertSQL renders one multi-row INSERT with numbered placeholders and
// returns the flattened arguments.
func InsertSQL(d *dialect.Dialect, target string, columns []string, rows [][]any) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(rows)*len(columns))

	sb.WriteString("INSERT INTO ")
	sb.WriteString(target)
	sb.WriteString(" (")
	sb.WriteString(d.QuoteIdents(columns))
	sb.WriteString(") VALUES ")

	n := 1
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.FormatPlaceholder(n))
			n++
			args = append(args, v)
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}

// CheckRowWidths verifies there is at least one column and that every row
// has one value per column.
func CheckRowWidths(columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("no columns to insert")
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(r), len(columns))
		}
	}
	return nil
}
