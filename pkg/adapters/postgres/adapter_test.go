package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "postgres",
			},
			expected: "host=localhost port=5432 dbname=postgres sslmode=disable",
		},
		{
			name: "password with space and quote",
			config: adapter.Config{
				Host:     "db",
				Database: "postgres",
				Username: "postgres",
				Password: "it's secret",
			},
			expected: `host=db port=5432 dbname=postgres sslmode=disable user=postgres password='it\'s secret'`,
		},
		{
			name: "application name",
			config: adapter.Config{
				Database: "postgres",
				Options:  map[string]string{"application_name": "tablescribe"},
			},
			expected: "host=localhost port=5432 dbname=postgres sslmode=disable application_name=tablescribe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp)
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "postgres", adp.DialectName())
	assert.Equal(t, "public", adp.SchemaName())
	assert.Equal(t, "SERIAL PRIMARY KEY", adp.Dialect().IdentityColumn)

	var _ adapter.Adapter = adp
}

func TestAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adp *Adapter) error
	}{
		{
			name: "exec without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.Exec(ctx, "SELECT 1")
			},
		},
		{
			name: "query without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.Query(ctx, "SELECT 1")
				return err
			},
		},
		{
			name: "table exists without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.TableExists(ctx, "people")
				return err
			},
		},
		{
			name: "insert without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.InsertRows(ctx, "people", []string{"a"}, [][]any{{1}})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.operation(context.Background(), New(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not established")
		})
	}
}

func TestAdapter_CreateTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db

	mock.ExpectExec(regexp.QuoteMeta(
		"CREATE TABLE \"public\".\"people\" (\n\t\"id\" SERIAL PRIMARY KEY,\n\t\"batch\" TEXT,\n\t\"weight\" DOUBLE PRECISION\n)",
	)).WillReturnResult(sqlmock.NewResult(0, 0))

	err = adp.CreateTable(context.Background(), adapter.TableDef{
		Name:       "people",
		PrimaryKey: "id",
		Columns: []adapter.ColumnDef{
			{Name: "batch", Type: "TEXT"},
			{Name: "weight", Type: "FLOAT"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_InsertRows_InsertMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db
	adp.Cfg = adapter.Config{Options: map[string]string{"bulk": "insert"}}

	expectColumns(mock, "people", [][2]string{{"id", "integer"}, {"batch", "text"}, {"weight", "double precision"}})
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."people" ("batch", "weight") VALUES ($1, $2), ($3, $4)`)).
		WithArgs("B1", 1.5, "B2", nil).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := adp.InsertRows(context.Background(), "people", []string{"batch", "weight"}, [][]any{
		{"B1", 1.5},
		{"B2", nil},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))

	factory, ok := adapter.Get("postgres")
	require.True(t, ok)

	pg, ok := factory(nil).(*Adapter)
	require.True(t, ok, "factory should return *Adapter")
	assert.Equal(t, "postgres", pg.DialectName())
}

func TestAdapter_Close(t *testing.T) {
	adp := New(nil)
	assert.NoError(t, adp.Close())
}

// expectColumns queues the information_schema lookup for table.
func expectColumns(mock sqlmock.Sqlmock, table string, cols [][2]string) {
	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"})
	for i, c := range cols {
		rows.AddRow(c[0], c[1], "YES", i+1)
	}
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("public", table).WillReturnRows(rows)
}

func TestAlignToColumns(t *testing.T) {
	target := []adapter.Column{
		{Name: "id", Type: "integer"},
		{Name: "batch", Type: "text"},
		{Name: "code", Type: "character varying"},
		{Name: "weight", Type: "double precision"},
		{Name: "checked", Type: "boolean"},
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		columns  []string
		rows     [][]any
		expected [][]any
		copyable bool
	}{
		{
			name:     "sniffed values into text columns",
			columns:  []string{"batch", "code"},
			rows:     [][]any{{int64(101), 2.5}, {true, day}, {nil, "B2"}},
			expected: [][]any{{"101", "2.5"}, {"true", "2024-03-01"}, {nil, "B2"}},
			copyable: true,
		},
		{
			name:     "timestamps keep their time",
			columns:  []string{"batch"},
			rows:     [][]any{{time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}},
			expected: [][]any{{"2024-03-01 09:30:00"}},
			copyable: true,
		},
		{
			name:     "matching types untouched",
			columns:  []string{"weight", "checked"},
			rows:     [][]any{{1.5, false}, {int64(2), nil}},
			expected: [][]any{{1.5, false}, {int64(2), nil}},
			copyable: true,
		},
		{
			name:     "text into a typed column",
			columns:  []string{"batch", "weight"},
			rows:     [][]any{{"B1", "heavy"}},
			expected: [][]any{{"B1", "heavy"}},
			copyable: false,
		},
		{
			name:     "unknown column left alone",
			columns:  []string{"note"},
			rows:     [][]any{{int64(7)}},
			expected: [][]any{{int64(7)}},
			copyable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, copyable := alignToColumns(target, tt.columns, tt.rows)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.copyable, copyable)
		})
	}
}

func TestAlignToColumns_DoesNotModifyInput(t *testing.T) {
	rows := [][]any{{int64(1)}}
	_, _ = alignToColumns([]adapter.Column{{Name: "batch", Type: "text"}}, []string{"batch"}, rows)
	assert.Equal(t, int64(1), rows[0][0])
}

// COPY sends every value in the binary format of its column's type.
func TestAlignToColumns_EncodesForCopy(t *testing.T) {
	m := pgtype.NewMap()
	target := []adapter.Column{{Name: "batch", Type: "text"}, {Name: "weight", Type: "integer"}}
	oids := []uint32{pgtype.TextOID, pgtype.Int4OID}

	row := []any{int64(101), int64(3)}
	for _, v := range []any{int64(101), 1.5, true, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)} {
		row[0] = v
		aligned, copyable := alignToColumns(target, []string{"batch", "weight"}, [][]any{row})
		require.True(t, copyable)
		for j, value := range aligned[0] {
			_, err := m.Encode(oids[j], pgtype.BinaryFormatCode, value, nil)
			assert.NoError(t, err, "%T into column %d", v, j)
		}
	}
}

func TestAdapter_InsertRows_TextForTypedColumnUsesInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db

	expectColumns(mock, "people", [][2]string{{"id", "integer"}, {"batch", "text"}, {"weight", "integer"}})
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."people" ("batch", "weight") VALUES ($1, $2)`)).
		WithArgs("101", "heavy").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := adp.InsertRows(context.Background(), "people", []string{"batch", "weight"}, [][]any{{int64(101), "heavy"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_InsertRows_CopyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db

	expectColumns(mock, "people", [][2]string{{"id", "integer"}, {"batch", "text"}})

	// sqlmock is not a pgx connection, so reaching COPY is the failure.
	_, err = adp.InsertRows(context.Background(), "people", []string{"batch"}, [][]any{{int64(101)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY needs a pgx connection")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_InsertRows_ColumnLookupFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db

	mock.ExpectQuery("FROM information_schema.columns").WillReturnError(assert.AnError)

	_, err = adp.InsertRows(context.Background(), "people", []string{"batch"}, [][]any{{"B1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query column metadata")
}
