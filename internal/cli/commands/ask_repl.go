package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/internal/service"
)

// askSession is the state of an interactive ask session.
type askSession struct {
	svc    *service.Service
	r      *output.Renderer
	errOut io.Writer
	table  string
	format string
}

func runAskREPL(cmd *cobra.Command, cmdCtx *CommandContext, svc *service.Service, opts *AskOptions) error {
	ctx := cmd.Context()

	s := &askSession{
		svc:    svc,
		r:      cmdCtx.Renderer,
		errOut: cmd.ErrOrStderr(),
		table:  opts.Table,
		format: opts.Format,
	}
	if s.table == "" {
		s.table = svc.DefaultTable()
	}

	var historyFile string
	if cmdCtx.Cfg.JournalPath != "" && cmdCtx.Cfg.JournalPath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.JournalPath), "ask_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    newTableCompleter(ctx, svc),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tablescribe assistant (table: %s)\n", s.table)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Ask a question, or type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := s.handleDotCommand(ctx, line); quit {
				break
			}
			rl.SetPrompt(s.prompt())
			continue
		}

		if err := askAndRender(ctx, s.r, s.svc, s.table, line, false, s.format); err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(s.r.Out())
	}

	return nil
}

func (s *askSession) prompt() string {
	return s.table + "> "
}

// handleDotCommand runs a dot-command and reports whether the session should end.
func (s *askSession) handleDotCommand(ctx context.Context, line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	command = strings.ToLower(command)
	rest = strings.TrimSpace(rest)

	var err error
	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Out())

	case ".tables":
		var tables []string
		if tables, err = s.svc.Tables(ctx); err == nil {
			rows := make([][]any, len(tables))
			for i, t := range tables {
				rows[i] = []any{t}
			}
			err = s.r.Rows([]string{"table"}, rows, s.format)
		}

	case ".table":
		if rest == "" {
			_, _ = fmt.Fprintf(s.r.Out(), "Current table: %s\n", s.table)
			break
		}
		s.table = rest

	case ".preview":
		n := 0
		if rest != "" {
			if n, err = strconv.Atoi(rest); err != nil {
				err = fmt.Errorf("usage: .preview [rows]")
				break
			}
		}
		rs, previewErr := s.svc.Preview(ctx, s.table, n)
		if err = previewErr; err == nil {
			err = s.r.Rows(rs.Columns, rs.Rows, s.format)
		}

	case ".sql":
		if rest == "" {
			err = fmt.Errorf("usage: .sql <question>")
			break
		}
		err = askAndRender(ctx, s.r, s.svc, s.table, rest, true, s.format)

	case ".run":
		if rest == "" {
			err = fmt.Errorf("usage: .run <sql>")
			break
		}
		rs, runErr := s.svc.Run(ctx, rest)
		if err = runErr; err == nil {
			err = s.r.Rows(rs.Columns, rs.Rows, s.format)
		}

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		err = fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}

	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .tables           List tables in the target database
  .table [name]     Show or switch the table questions are about
  .preview [rows]   Show the first rows of the current table
  .sql <question>   Show the SQL for a question without running it
  .run <sql>        Run SQL directly
  .clear            Clear the screen
  .quit / .exit     Exit

Anything else is asked as a question about the current table.
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter creates a readline completer for table names and dot-commands.
func newTableCompleter(ctx context.Context, svc *service.Service) *readline.PrefixCompleter {
	tables, _ := svc.Tables(ctx)

	tableItems := make([]readline.PrefixCompleterInterface, 0, len(tables))
	for _, name := range tables {
		tableItems = append(tableItems, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".table", tableItems...),
		readline.PcItem(".preview"),
		readline.PcItem(".sql"),
		readline.PcItem(".run"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
