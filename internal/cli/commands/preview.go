package commands

import (
	"github.com/spf13/cobra"
)

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	var (
		table  string
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the first rows of a table",
		Example: `  tablescribe preview
  tablescribe preview --table people --limit 20 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cmdCtx := NewCommandContext(cmd)

			svc, cleanup, err := cmdCtx.Service(ctx, needStore)
			if err != nil {
				return err
			}
			defer cleanup()

			rs, err := svc.Preview(ctx, table, limit)
			if err != nil {
				return err
			}
			return cmdCtx.Renderer.Rows(rs.Columns, rs.Rows, format)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table to preview (default: ask.default_table)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of rows (default: ask.sample_rows)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("format", formatCompletion)

	return cmd
}
