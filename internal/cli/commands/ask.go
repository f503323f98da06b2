package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/assistant"
	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/internal/service"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	Table  string
	DryRun bool
	Format string
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question about a table in plain language",
		Long: `Answer a question about a table by generating SQL with the configured model.

The model sees the table name, the first rows as a sample and the question,
and replies with a single query. The query is shown and then run against the
target database. Statements that are not read-only queries are refused while
ask.read_only is on.

Without a question on a terminal, an interactive session starts. Without a
question and no terminal, the default question is asked.`,
		Example: `  tablescribe ask "What are the unique batch numbers?"
  tablescribe ask --table lots how many lots weigh more than 2kg
  tablescribe ask --dry-run "average weight per batch"

  # Interactive mode
  tablescribe ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "Table to query (default: ask.default_table)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only print the generated SQL")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("format", formatCompletion)

	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts *AskOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	svc, cleanup, err := cmdCtx.Service(ctx, needStore|needModel)
	if err != nil {
		return err
	}
	defer cleanup()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && isTerminal(os.Stdin) {
		return runAskREPL(cmd, cmdCtx, svc, opts)
	}

	return askAndRender(ctx, cmdCtx.Renderer, svc, opts.Table, question, opts.DryRun, opts.Format)
}

// askAndRender asks one question and prints the SQL and its result. The
// generated SQL is printed even when running it fails.
func askAndRender(ctx context.Context, r *output.Renderer, svc *service.Service, table, question string, dryRun bool, format string) error {
	ans, err := svc.Ask(ctx, table, question, dryRun)

	if r.TableFormat(format) == output.FormatJSON {
		if ans != nil && err == nil {
			return r.JSON(ans)
		}
		return err
	}

	if ans != nil && ans.SQL != "" {
		r.SQL(ans.SQL)
	}
	if err != nil {
		if errors.Is(err, assistant.ErrNotReadOnly) {
			return fmt.Errorf("%w\nHint: use --dry-run to see it without running, or set ask.read_only: false", err)
		}
		return err
	}
	if ans.Result == nil {
		return nil
	}
	r.Println()
	return r.Rows(ans.Result.Columns, ans.Result.Rows, format)
}
