// Package watch turns a directory into an inbox: table images dropped into
// it are extracted to CSV, optionally uploaded, and then archived.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/service"
	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

// DefaultDebounce is how long a file must stay quiet before it is read.
const DefaultDebounce = 100 * time.Millisecond

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Service is what the watcher needs from the application.
type Service interface {
	ExtractImage(ctx context.Context, image []byte) (*service.Extraction, error)
	Upload(ctx context.Context, extract *tabular.Extract, table, source string) (*ingest.Result, error)
}

// Config configures a Watcher.
type Config struct {
	// Dir is the inbox directory.
	Dir string
	// Table, when set, receives every extract.
	Table string
	// ArchiveDir receives processed images and their CSV files. Defaults
	// to Dir/archive. Images that fail go to Dir/failed.
	ArchiveDir string
	// Schedule is an optional cron expression for periodic sweeps.
	Schedule string
	Debounce time.Duration
}

// Outcome describes one processed image.
type Outcome struct {
	Image  string
	CSV    string
	Upload *ingest.Result
	Err    error
}

// Watcher processes images arriving in a directory.
type Watcher struct {
	cfg    Config
	svc    Service
	logger *slog.Logger

	// mu serialises processing between the event loop and cron sweeps.
	mu sync.Mutex
	// OnProcessed, if set, is called after each image.
	OnProcessed func(Outcome)
}

// New validates cfg and creates a Watcher.
func New(cfg Config, svc Service, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(cfg.Dir, "archive")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.Table != "" {
		if err := ingest.ValidateTableName(cfg.Table); err != nil {
			return nil, err
		}
	}
	return &Watcher{cfg: cfg, svc: svc, logger: logger.With(slog.String("dir", cfg.Dir))}, nil
}

// Run sweeps the inbox once, then processes new images as they arrive
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	w.Sweep(ctx)

	if w.cfg.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.cfg.Schedule, func() { w.Sweep(ctx) }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", w.cfg.Schedule, err)
		}
		c.Start()
		defer c.Stop()
		w.logger.Info("scheduled sweeps", slog.String("schedule", w.cfg.Schedule))
	}

	w.logger.Info("watching for images", slog.String("table", w.cfg.Table))

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isImage(event.Name) {
				continue
			}
			name := event.Name
			// Debounce
			if t, ok := timers[name]; ok {
				t.Stop()
			}
			timers[name] = time.AfterFunc(w.cfg.Debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(timers, name)
			w.process(ctx, name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// Sweep processes every image currently in the inbox, oldest name first,
// and returns how many it handled.
func (w *Watcher) Sweep(ctx context.Context) int {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Error("failed to list inbox", slog.String("error", err.Error()))
		return 0
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isImage(e.Name()) {
			names = append(names, filepath.Join(w.cfg.Dir, e.Name()))
		}
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if w.process(ctx, name) {
			n++
		}
	}
	return n
}

// process handles one image and reports whether it was there to handle.
func (w *Watcher) process(ctx context.Context, path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false
	}

	out := w.Process(ctx, path)
	if out.Err != nil {
		w.logger.Error("failed to process image", slog.String("image", path), slog.String("error", out.Err.Error()))
		if err := moveInto(filepath.Join(w.cfg.Dir, "failed"), path); err != nil {
			w.logger.Error("failed to move image", slog.String("image", path), slog.String("error", err.Error()))
		}
	}
	if w.OnProcessed != nil {
		w.OnProcessed(out)
	}
	return true
}

// Process extracts one image, writes the CSV beside it in the archive and
// uploads the rows when a table is configured. On success the image is
// archived; on failure it is left where it is.
func (w *Watcher) Process(ctx context.Context, path string) Outcome {
	out := Outcome{Image: path}
	log := w.logger.With(slog.String("image", filepath.Base(path)))

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		out.Err = fmt.Errorf("failed to read image: %w", err)
		return out
	}

	ex, err := w.svc.ExtractImage(ctx, data)
	if err != nil {
		out.Err = err
		return out
	}

	if err := os.MkdirAll(w.cfg.ArchiveDir, 0o750); err != nil {
		out.Err = fmt.Errorf("failed to create archive directory: %w", err)
		return out
	}
	csvPath := filepath.Join(w.cfg.ArchiveDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".csv")
	if err := writeCSVFile(csvPath, ex.Extract); err != nil {
		out.Err = err
		return out
	}
	out.CSV = csvPath
	log.Info("extracted table", slog.String("csv", csvPath), slog.Int("rows", ex.Extract.NumRows()))

	if w.cfg.Table != "" {
		res, err := w.svc.Upload(ctx, ex.Extract, w.cfg.Table, filepath.Base(path))
		if err != nil {
			out.Err = err
			return out
		}
		out.Upload = res
	}

	if err := moveInto(w.cfg.ArchiveDir, path); err != nil {
		out.Err = err
		return out
	}
	out.Image = filepath.Join(w.cfg.ArchiveDir, filepath.Base(path))
	return out
}

func writeCSVFile(path string, e *tabular.Extract) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := tabular.WriteCSV(f, e); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func moveInto(dir, path string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("failed to move %s: %w", path, err)
	}
	return nil
}

func isImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}
