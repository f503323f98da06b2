package ingest_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/testutil"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	"github.com/leapstack-labs/tablescribe/pkg/adapters/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := sqlite.New(testutil.NewTestLogger(t))
	require.NoError(t, store.Connect(ctx, adapter.Config{Path: filepath.Join(t.TempDir(), "people.db")}))
	defer func() { _ = store.Close() }()

	r := ingest.NewReconciler(store, testutil.NewTestLogger(t))

	first, err := ingest.ParseExtract("batch,weight\nB1,1.5\nB2,2.25\n")
	require.NoError(t, err)
	res, err := r.Reconcile(ctx, first, "people")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(2), res.RowsWritten)

	cols, err := store.Columns(ctx, "people")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.Equal(t, "TEXT", cols[1].Type)
	assert.Equal(t, "REAL", cols[2].Type)

	second, err := ingest.ParseExtract("batch,weight,note\nB3,3,late\n")
	require.NoError(t, err)
	res, err = r.Reconcile(ctx, second, "people")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"note"}, res.Dropped)
	assert.Equal(t, int64(1), res.RowsWritten)

	meta, err := store.GetTableMetadata(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.RowCount)
	assert.Len(t, meta.Columns, 3, "existing tables never gain columns")
}

// columnValues reads one column of table in insertion order.
func columnValues(t *testing.T, store adapter.Adapter, table, column string) []any {
	t.Helper()
	rows, err := store.Query(context.Background(),
		"SELECT "+store.Dialect().QuoteIdent(column)+" FROM "+store.QualifiedName(table)+" ORDER BY "+store.Dialect().QuoteIdent(ingest.PrimaryKey))
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []any
	for rows.Next() {
		var v any
		require.NoError(t, rows.Scan(&v))
		out = append(out, v)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestReconcile_SQLiteAppendAcrossTypes(t *testing.T) {
	tests := []struct {
		name     string
		first    string
		second   string
		colType  string
		expected []any
	}{
		{
			name:     "text values into an integer column",
			first:    "batch,weight\n101,1.5\n102,2\n",
			second:   "batch,weight\nB3,3\n",
			colType:  "INTEGER",
			expected: []any{int64(101), int64(102), "B3"},
		},
		{
			name:     "numbers into a text column",
			first:    "batch,weight\nB1,1.5\nB2,2\n",
			second:   "batch,weight\n101,3\n",
			colType:  "TEXT",
			expected: []any{"B1", "B2", "101"},
		},
		{
			name:     "numbers into an all-null text column",
			first:    "batch,weight\n,1.5\n,2\n",
			second:   "batch,weight\n7,3\n",
			colType:  "TEXT",
			expected: []any{nil, nil, "7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := sqlite.New(testutil.NewTestLogger(t))
			require.NoError(t, store.Connect(ctx, adapter.Config{Path: filepath.Join(t.TempDir(), "lots.db")}))
			defer func() { _ = store.Close() }()

			r := ingest.NewReconciler(store, testutil.NewTestLogger(t))

			first, err := ingest.ParseExtract(tt.first)
			require.NoError(t, err)
			_, err = r.Reconcile(ctx, first, "lots")
			require.NoError(t, err)

			cols, err := store.Columns(ctx, "lots")
			require.NoError(t, err)
			require.Len(t, cols, 3)
			assert.Equal(t, tt.colType, cols[1].Type)

			second, err := ingest.ParseExtract(tt.second)
			require.NoError(t, err)
			res, err := r.Reconcile(ctx, second, "lots")
			require.NoError(t, err, "the store accepts the mismatched values")
			assert.False(t, res.Created)
			assert.Empty(t, res.Dropped)
			assert.Equal(t, int64(1), res.RowsWritten)

			assert.Equal(t, tt.expected, columnValues(t, store, "lots", "batch"))
		})
	}
}
