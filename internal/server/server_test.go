package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/tablescribe/internal/journal"
	"github.com/leapstack-labs/tablescribe/internal/service"
	"github.com/leapstack-labs/tablescribe/internal/testutil"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
	"github.com/leapstack-labs/tablescribe/pkg/adapters/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubModel struct {
	csv string
	sql string
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Generate(context.Context, string) (string, error) { return m.sql, nil }

func (m *stubModel) GenerateWithImage(context.Context, string, []byte, string) (string, error) {
	return m.csv, nil
}

func newTestServer(t *testing.T, model *stubModel) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newTestHandler(t, model))
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, model *stubModel) http.Handler {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	store := sqlite.New(logger)
	require.NoError(t, store.Connect(ctx, adapter.Config{Path: filepath.Join(t.TempDir(), "store.db")}))
	t.Cleanup(func() { _ = store.Close() })

	j, err := journal.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	svc := service.New(service.Deps{Store: store, Model: model, Journal: j}, service.Options{ReadOnly: true}, logger)
	return New(Config{Service: svc, Logger: logger, MaxUploadMB: 1}).Handler()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func postCSV(t *testing.T, srv *httptest.Server, table, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/tables/"+table+"/rows", "text/csv", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubModel{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestUploadRows_CreateThenAppend(t *testing.T) {
	srv := newTestServer(t, &stubModel{})

	resp := postCSV(t, srv, "people", "batch,weight\nB1,1.5\nB2,2\n")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	decode(t, resp, &created)
	assert.Equal(t, float64(2), created["rows_written"])

	resp = postCSV(t, srv, "people", "batch,weight,note\nB3,3,late\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var appended map[string]any
	decode(t, resp, &appended)
	assert.Equal(t, []any{"note"}, appended["dropped"])
}

func TestUploadRows_Errors(t *testing.T) {
	srv := newTestServer(t, &stubModel{})

	resp := postCSV(t, srv, "people", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postCSV(t, srv, "people", "a,b\n1,2,3\n")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, "extraction_format", body.Kind)

	postCSV(t, srv, "lots", "a\n1\n").Body.Close()
	resp = postCSV(t, srv, "lots", "b\n1\n")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	body = errorResponse{}
	resp = postCSV(t, srv, "%20", "a\n1\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, "validation", body.Kind)
}

func TestUploadRows_TooLarge(t *testing.T) {
	h := newTestHandler(t, &stubModel{})

	big := "a\n" + strings.Repeat("1\n", 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/tables/people/rows", strings.NewReader(big))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExtract_Multipart(t *testing.T) {
	srv := newTestServer(t, &stubModel{csv: "```\nbatch,weight\nB1,1.5\n```"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "scan.png")
	require.NoError(t, err)
	_, _ = fw.Write(pngHeader)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/extract?table=people", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body extractResponse
	decode(t, resp, &body)
	assert.Equal(t, "batch,weight\nB1,1.5", body.CSV)
	assert.Equal(t, 1, body.Rows)
	require.Len(t, body.Columns, 2)
	assert.Equal(t, "weight", body.Columns[1].Name)
	require.NotNil(t, body.Upload)
	assert.True(t, body.Upload.Created)

	resp, err = http.Get(srv.URL + "/api/history/uploads")
	require.NoError(t, err)
	var uploads []journal.Upload
	decode(t, resp, &uploads)
	require.Len(t, uploads, 1)
	assert.Equal(t, "scan.png", uploads[0].Source)
}

func TestExtract_CSVDownload(t *testing.T) {
	srv := newTestServer(t, &stubModel{csv: "batch\nB1\n"})

	resp, err := http.Post(srv.URL+"/api/extract?format=csv", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), DownloadName)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, "batch\nB1\n", buf.String())
}

func TestExtract_UnsupportedImage(t *testing.T) {
	srv := newTestServer(t, &stubModel{csv: "a\n1"})

	resp, err := http.Post(srv.URL+"/api/extract", "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestPreviewAndAsk(t *testing.T) {
	srv := newTestServer(t, &stubModel{sql: "```sql\nSELECT DISTINCT \"batch\" FROM \"people\"\n```"})
	postCSV(t, srv, "people", "batch\nB1\nB1\nB2\nB3\nB4\nB5\n").Body.Close()

	resp, err := http.Get(srv.URL + "/api/tables/people/preview?limit=3")
	require.NoError(t, err)
	var preview struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	decode(t, resp, &preview)
	assert.Equal(t, []string{"id", "batch"}, preview.Columns)
	assert.Len(t, preview.Rows, 3)

	resp, err = http.Post(srv.URL+"/api/tables/people/ask", "application/json",
		strings.NewReader(`{"question":"What are the unique batch numbers?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ans struct {
		SQL    string `json:"sql"`
		Result struct {
			Rows [][]any `json:"rows"`
		} `json:"result"`
	}
	decode(t, resp, &ans)
	assert.Equal(t, `SELECT DISTINCT "batch" FROM "people"`, ans.SQL)
	assert.Len(t, ans.Result.Rows, 5)

	resp, err = http.Get(srv.URL + "/api/history/queries")
	require.NoError(t, err)
	var queries []journal.Query
	decode(t, resp, &queries)
	assert.Len(t, queries, 1)
}

func TestAsk_ReadOnlyRejected(t *testing.T) {
	srv := newTestServer(t, &stubModel{sql: `DROP TABLE "people"`})
	postCSV(t, srv, "people", "batch\nB1\n").Body.Close()

	resp, err := http.Post(srv.URL+"/api/tables/people/ask", "application/json", strings.NewReader(`{"question":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, `DROP TABLE "people"`, body.SQL)
}

func TestMissingTable(t *testing.T) {
	srv := newTestServer(t, &stubModel{})

	for _, path := range []string{"/api/tables/ghosts/preview", "/api/tables/ghosts"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		var body errorResponse
		decode(t, resp, &body)
		assert.Equal(t, "table 'ghosts' does not exist", body.Error)
	}
}

func TestListTablesAndHistoryKinds(t *testing.T) {
	srv := newTestServer(t, &stubModel{})

	resp, err := http.Get(srv.URL + "/api/tables")
	require.NoError(t, err)
	var empty map[string][]string
	decode(t, resp, &empty)
	assert.Equal(t, []string{}, empty["tables"])

	postCSV(t, srv, "people", "a\n1\n").Body.Close()
	resp, err = http.Get(srv.URL + "/api/tables")
	require.NoError(t, err)
	var tables map[string][]string
	decode(t, resp, &tables)
	assert.Equal(t, []string{"people"}, tables["tables"])

	resp, err = http.Get(srv.URL + "/api/history/other")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/history/uploads?limit=-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestServeListener_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svc := service.New(service.Deps{}, service.Options{}, nil)
	s := New(Config{Service: svc})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
