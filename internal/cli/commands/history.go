package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/output"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history [uploads|queries]",
		Short: "Show recent uploads or questions",
		Long: `Show the journal of recent uploads and assistant questions, newest first.

The journal is a local SQLite database (journal_path, default
.tablescribe/journal.db). Failed operations are recorded too.`,
		Example: `  tablescribe history
  tablescribe history queries --limit 50 --format json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"uploads", "queries"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "uploads"
			if len(args) == 1 {
				kind = args[0]
			}
			return runHistory(cmd, kind, limit, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("format", formatCompletion)

	return cmd
}

func runHistory(cmd *cobra.Command, kind string, limit int, format string) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	j := cmdCtx.OpenJournal(ctx)
	if j == nil {
		return fmt.Errorf("journal is not available at %s", cmdCtx.Cfg.JournalPath)
	}
	defer func() { _ = j.Close() }()

	jsonOut := r.TableFormat(format) == output.FormatJSON

	switch kind {
	case "uploads":
		entries, err := j.ListUploads(ctx, limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return r.JSON(entries)
		}
		rows := make([][]any, len(entries))
		for i, u := range entries {
			rows[i] = []any{stamp(u.CreatedAt), u.Table, u.Source, u.Created, u.RowsWritten, strings.Join(u.Dropped, ", "), orNil(u.Error)}
		}
		return r.Rows([]string{"time", "table", "source", "created", "rows", "dropped", "error"}, rows, format)

	case "queries":
		entries, err := j.ListQueries(ctx, limit)
		if err != nil {
			return err
		}
		if jsonOut {
			return r.JSON(entries)
		}
		rows := make([][]any, len(entries))
		for i, q := range entries {
			rows[i] = []any{stamp(q.CreatedAt), q.Table, q.Question, q.SQL, q.DryRun, q.Rows, orNil(q.Error)}
		}
		return r.Rows([]string{"time", "table", "question", "sql", "dry_run", "rows", "error"}, rows, format)

	default:
		return fmt.Errorf("unknown history %q: must be uploads or queries", kind)
	}
}

func stamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
