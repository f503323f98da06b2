package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/internal/watch"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Table    string
	Schedule string
	Archive  string
	Once     bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Extract images dropped into a directory",
		Long: `Watch a directory for table images (png, jpg, jpeg, webp).

Each image is extracted to CSV, written to the archive directory beside the
image, and appended to --table when one is given. Images that cannot be
extracted move to DIR/failed.

Images already in the directory are processed on start. --schedule adds
periodic sweeps for filesystems that do not report changes.`,
		Example: `  tablescribe watch ./inbox --table batches
  tablescribe watch ./inbox --schedule "*/5 * * * *"
  tablescribe watch ./inbox --once`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "Table to append extracts to (default: watch.table)")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "Cron expression for periodic sweeps (default: watch.schedule)")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "Archive directory (default: DIR/archive)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "Process the images present and exit")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *WatchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	wc := watch.Config{
		Dir:        cfg.Watch.Dir,
		Table:      cfg.Watch.Table,
		ArchiveDir: cfg.Watch.ArchiveDir,
		Schedule:   cfg.Watch.Schedule,
	}
	if len(args) == 1 {
		wc.Dir = args[0]
	}
	if opts.Table != "" {
		wc.Table = opts.Table
	}
	if opts.Schedule != "" {
		wc.Schedule = opts.Schedule
	}
	if opts.Archive != "" {
		wc.ArchiveDir = opts.Archive
	}
	if wc.Dir == "" {
		return fmt.Errorf("no directory to watch\nHint: pass DIR or set watch.dir in tablescribe.yaml")
	}

	n := needModel
	if wc.Table != "" {
		n |= needStore
	}
	svc, cleanup, err := cmdCtx.Service(ctx, n)
	if err != nil {
		return err
	}
	defer cleanup()

	w, err := watch.New(wc, svc, cmdCtx.Logger)
	if err != nil {
		return err
	}
	w.OnProcessed = func(o watch.Outcome) { renderOutcome(r, o) }

	if opts.Once {
		count := w.Sweep(ctx)
		r.Muted(fmt.Sprintf("%d image(s) processed", count))
		return nil
	}

	r.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", wc.Dir))
	return w.Run(ctx)
}

func renderOutcome(r *output.Renderer, o watch.Outcome) {
	name := filepath.Base(o.Image)
	if o.Err != nil {
		r.Error(fmt.Sprintf("%s: %v", name, o.Err))
		return
	}
	msg := fmt.Sprintf("%s -> %s", name, o.CSV)
	if o.Upload != nil {
		msg += fmt.Sprintf(" (%d rows into %s)", o.Upload.RowsWritten, o.Upload.Table)
		if len(o.Upload.Dropped) > 0 {
			r.Warning(fmt.Sprintf("%s: columns not in %s were dropped: %v", name, o.Upload.Table, o.Upload.Dropped))
		}
	}
	r.Success(msg)
}
