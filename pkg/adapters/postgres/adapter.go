// Package postgres provides a PostgreSQL database adapter for tablescribe.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	pgdialect "github.com/leapstack-labs/tablescribe/pkg/adapters/postgres/dialect"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, SQLDialect: pgdialect.Postgres},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL key=value connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnValue(host), port, dsnValue(cfg.Database), dsnValue(sslmode))

	if cfg.Username != "" {
		dsn += " user=" + dsnValue(cfg.Username)
	}
	if cfg.Password != "" {
		dsn += " password=" + dsnValue(cfg.Password)
	}
	if appName, ok := cfg.Options["application_name"]; ok {
		dsn += " application_name=" + dsnValue(appName)
	}

	return dsn
}

// dsnValue single-quotes values that contain spaces, quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// InsertRows appends rows with COPY FROM STDIN through the pgx connection
// underneath database/sql. COPY is a single statement, so a failure
// writes nothing. Setting target.options.bulk to "insert" falls back to
// batched INSERT statements.
//
// Values are first matched to the table's column types with
// alignToColumns. When a text value is bound for a typed column the rows
// go through INSERT instead, so the server applies its own casts.
func (a *Adapter) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if a.DB == nil {
		return 0, fmt.Errorf("database connection not established")
	}
	if err := adapter.CheckRowWidths(columns, rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	target, err := a.Columns(ctx, table)
	if err != nil {
		return 0, err
	}
	rows, copyable := alignToColumns(target, columns, rows)

	if a.Cfg.Options["bulk"] == "insert" || !copyable {
		return a.BaseSQLAdapter.InsertRows(ctx, table, columns, rows)
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var written int64
	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("COPY needs a pgx connection, got %T", driverConn)
		}
		n, err := sc.Conn().CopyFrom(ctx, pgx.Identifier{a.SchemaName(), table}, columns, pgx.CopyFromRows(rows))
		written = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows into %s: %w", table, err)
	}

	a.Logger.Debug("copied rows", slog.String("table", table), slog.Int64("rows", written))
	return written, nil
}

// textTypes are the information_schema data types of character columns.
var textTypes = map[string]bool{
	"text":              true,
	"character varying": true,
	"character":         true,
}

// alignToColumns returns rows with every value bound for a character
// column rendered as text. COPY encodes each value in the binary format of
// its column and pgx has no plan from Go numbers, booleans or times to
// text. copyable is false when a string is bound for a non-character
// column, which only the server can cast. Columns missing from target are
// left as they are. The input rows are not modified.
func alignToColumns(target []adapter.Column, columns []string, rows [][]any) (out [][]any, copyable bool) {
	types := make(map[string]string, len(target))
	for _, c := range target {
		types[c.Name] = strings.ToLower(c.Type)
	}

	copyable = true
	out = make([][]any, len(rows))
	for i, row := range rows {
		aligned := make([]any, len(row))
		for j, v := range row {
			typ, known := types[columns[j]]
			switch {
			case v == nil || !known:
				aligned[j] = v
			case textTypes[typ]:
				aligned[j] = textValue(v)
			default:
				if _, isString := v.(string); isString {
					copyable = false
				}
				aligned[j] = v
			}
		}
		out[i] = aligned
	}
	return out, copyable
}

// textValue renders v as a CSV cell would show it.
func textValue(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	default:
		return fmt.Sprint(x)
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
