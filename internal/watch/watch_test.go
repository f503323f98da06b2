package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/service"
	"github.com/leapstack-labs/tablescribe/internal/tabular"
	"github.com/leapstack-labs/tablescribe/internal/testutil"
)

type fakeService struct {
	mu       sync.Mutex
	csv      string
	err      error
	uploads  []string
	extracts int
}

func (f *fakeService) ExtractImage(_ context.Context, _ []byte) (*service.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts++
	if f.err != nil {
		return nil, f.err
	}
	ex, err := tabular.ParseCSV(f.csv)
	if err != nil {
		return nil, err
	}
	return &service.Extraction{Text: f.csv, Extract: ex}, nil
}

func (f *fakeService) Upload(_ context.Context, ex *tabular.Extract, table, source string) (*ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, table+":"+source)
	return &ingest.Result{Table: table, RowsWritten: int64(ex.NumRows())}, nil
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	return path
}

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()

	_, err := New(Config{}, &fakeService{}, nil)
	assert.Error(t, err)

	_, err = New(Config{Dir: filepath.Join(dir, "missing")}, &fakeService{}, nil)
	assert.Error(t, err)

	_, err = New(Config{Dir: dir, Schedule: "every tuesday"}, &fakeService{}, nil)
	assert.ErrorContains(t, err, "invalid schedule")

	_, err = New(Config{Dir: dir, Table: `bad"name`}, &fakeService{}, nil)
	assert.ErrorIs(t, err, ingest.ErrValidation)

	w, err := New(Config{Dir: dir, Schedule: "*/5 * * * *"}, &fakeService{}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "archive"), w.cfg.ArchiveDir)
	assert.Equal(t, DefaultDebounce, w.cfg.Debounce)
}

func TestSweep_ExtractsUploadsAndArchives(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeService{csv: "batch,weight\nB1,1.5\nB2,2\n"}
	w, err := New(Config{Dir: dir, Table: "people"}, svc, testutil.NewTestLogger(t))
	require.NoError(t, err)

	writeImage(t, dir, "b.png")
	writeImage(t, dir, "a.JPG")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))

	var outcomes []Outcome
	w.OnProcessed = func(o Outcome) { outcomes = append(outcomes, o) }

	assert.Equal(t, 2, w.Sweep(context.Background()))
	assert.Equal(t, []string{"people:a.JPG", "people:b.png"}, svc.uploads)

	archive := filepath.Join(dir, "archive")
	for _, name := range []string{"a.JPG", "a.csv", "b.png", "b.csv"} {
		assert.FileExists(t, filepath.Join(archive, name))
	}
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "a.JPG"))

	data, err := os.ReadFile(filepath.Join(archive, "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, "batch,weight\nB1,1.5\nB2,2\n", string(data))

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, int64(2), outcomes[0].Upload.RowsWritten)
}

func TestSweep_WithoutTableOnlyWritesCSV(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeService{csv: "a\n1\n"}
	w, err := New(Config{Dir: dir}, svc, nil)
	require.NoError(t, err)

	writeImage(t, dir, "scan.webp")
	assert.Equal(t, 1, w.Sweep(context.Background()))
	assert.Empty(t, svc.uploads)
	assert.FileExists(t, filepath.Join(dir, "archive", "scan.csv"))
}

func TestSweep_FailureMovesToFailed(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeService{err: errors.New("model unavailable")}
	w, err := New(Config{Dir: dir, Table: "people"}, svc, nil)
	require.NoError(t, err)

	writeImage(t, dir, "scan.png")
	var got Outcome
	w.OnProcessed = func(o Outcome) { got = o }

	assert.Equal(t, 1, w.Sweep(context.Background()))
	assert.ErrorContains(t, got.Err, "model unavailable")
	assert.FileExists(t, filepath.Join(dir, "failed", "scan.png"))
	assert.NoDirExists(t, filepath.Join(dir, "archive"))

	// Failed images are not picked up again.
	assert.Equal(t, 0, w.Sweep(context.Background()))
	assert.Equal(t, 1, svc.extracts)
}

func TestRun_ProcessesNewFiles(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeService{csv: "a\n1\n"}
	w, err := New(Config{Dir: dir, Table: "people", Debounce: 10 * time.Millisecond}, svc, testutil.NewTestLogger(t))
	require.NoError(t, err)

	processed := make(chan Outcome, 4)
	w.OnProcessed = func(o Outcome) { processed <- o }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeImage(t, dir, "late.png")

	select {
	case o := <-processed:
		assert.NoError(t, o.Err)
		assert.Equal(t, filepath.Join(dir, "archive", "late.png"), o.Image)
	case <-time.After(5 * time.Second):
		t.Fatal("image was not processed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
