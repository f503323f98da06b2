package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/tablescribe/internal/assistant"
	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/journal"
	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/internal/testutil"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	"github.com/leapstack-labs/tablescribe/pkg/adapters/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// scriptedModel answers image prompts with csv and text prompts with sql.
type scriptedModel struct {
	csv string
	sql string
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(context.Context, string) (string, error) {
	return m.sql, nil
}

func (m *scriptedModel) GenerateWithImage(context.Context, string, []byte, string) (string, error) {
	return m.csv, nil
}

var _ llm.Generator = (*scriptedModel)(nil)

func newTestService(t *testing.T, model llm.Generator) (*Service, *journal.Journal) {
	t.Helper()
	ctx := context.Background()
	store := sqlite.New(testutil.NewTestLogger(t))
	require.NoError(t, store.Connect(ctx, adapter.Config{Path: filepath.Join(t.TempDir(), "store.db")}))
	t.Cleanup(func() { _ = store.Close() })

	j, err := journal.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	svc := New(Deps{Store: store, Model: model, Journal: j}, Options{ReadOnly: true}, testutil.NewTestLogger(t))
	return svc, j
}

func TestExtractAndUpload(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{csv: "```csv\nbatch,weight\nB1,1.5\nB2,2\n```"}
	svc, _ := newTestService(t, model)

	ex, res, err := svc.ExtractAndUpload(ctx, pngHeader, " lots ", "scan.png")
	require.NoError(t, err)
	assert.Equal(t, "batch,weight\nB1,1.5\nB2,2", ex.Text)
	assert.Equal(t, "lots", res.Table)
	assert.True(t, res.Created)
	assert.Equal(t, int64(2), res.RowsWritten)

	uploads, err := svc.UploadHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "scan.png", uploads[0].Source)
	assert.Equal(t, int64(2), uploads[0].RowsWritten)
}

func TestUpload_BlankTableRejected(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{csv: "batch,weight\nB1,1\n"}
	svc, _ := newTestService(t, model)

	for _, table := range []string{"", "   ", "\t"} {
		_, err := svc.UploadCSV(ctx, "batch,weight\nB1,1\n", table, "a.csv")
		require.ErrorIs(t, err, ingest.ErrValidation, "table %q", table)

		_, _, err = svc.ExtractAndUpload(ctx, pngHeader, table, "scan.png")
		require.ErrorIs(t, err, ingest.ErrValidation, "table %q", table)
	}

	tables, err := svc.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables, "nothing falls back to the default table")

	uploads, err := svc.UploadHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, uploads, 6)
	for _, u := range uploads {
		assert.Equal(t, int64(0), u.RowsWritten)
		assert.Contains(t, u.Error, "table name is required")
	}
}

func TestExtractImage_NotATable(t *testing.T) {
	svc, _ := newTestService(t, &scriptedModel{csv: ""})

	_, err := svc.ExtractImage(context.Background(), pngHeader)
	require.Error(t, err)
}

func TestUploadCSV_JournalsDroppedColumns(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.UploadCSV(ctx, "batch,weight\nB1,1\n", "lots", "a.csv")
	require.NoError(t, err)

	res, err := svc.UploadCSV(ctx, "batch,weight,note\nB2,2,late\n", "lots", "b.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, res.Dropped)

	uploads, err := svc.UploadHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, []string{"note"}, uploads[0].Dropped)
}

func TestUpload_JournalsFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.UploadCSV(ctx, "batch\nB1\n", `bad"name`, "x.csv")
	require.ErrorIs(t, err, ingest.ErrValidation)

	uploads, err := svc.UploadHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.NotEmpty(t, uploads[0].Error)
}

func TestAsk_Journaled(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{sql: `SELECT DISTINCT "batch" FROM "people"`}
	svc, _ := newTestService(t, model)

	_, err := svc.UploadCSV(ctx, "batch\nB1\nB1\nB2\n", "people", "seed.csv")
	require.NoError(t, err)

	ans, err := svc.Ask(ctx, "", "", false)
	require.NoError(t, err)
	assert.Equal(t, 2, ans.Result.Len())

	queries, err := svc.QueryHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, assistant.DefaultQuestion, queries[0].Question)
	assert.Equal(t, model.sql, queries[0].SQL)
	assert.Equal(t, 2, queries[0].Rows)
}

func TestAsk_WithoutModel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	_, err := svc.UploadCSV(ctx, "batch\nB1\n", "people", "seed.csv")
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "people", "q", true)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestWithoutStore(t *testing.T) {
	ctx := context.Background()
	svc := New(Deps{}, Options{}, nil)

	_, err := svc.Preview(ctx, "people", 5)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.UploadCSV(ctx, "a\n1\n", "t", "")
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.Tables(ctx)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.ExtractImage(ctx, pngHeader)
	assert.ErrorIs(t, err, ErrNoModel)

	uploads, err := svc.UploadHistory(ctx, 0)
	assert.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestTablesAndDescribe(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)
	_, err := svc.UploadCSV(ctx, "batch,weight\nB1,1.5\n", "people", "")
	require.NoError(t, err)

	tables, err := svc.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, tables)

	meta, err := svc.Describe(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, int64(1), meta.RowCount)
	assert.Len(t, meta.Columns, 3)
}

func TestDescribe_MissingTable(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Describe(context.Background(), "ghosts")
	require.ErrorIs(t, err, assistant.ErrTableNotFound)
	var notFound *assistant.TableNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghosts", notFound.Table)
}
