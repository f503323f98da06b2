package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tables [table]",
		Short: "List tables, or show the columns of one",
		Example: `  tablescribe tables
  tablescribe tables people`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer

			svc, cleanup, err := cmdCtx.Service(ctx, needStore)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				meta, err := svc.Describe(ctx, args[0])
				if err != nil {
					return err
				}
				return renderMetadata(r, meta, format)
			}

			tables, err := svc.Tables(ctx)
			if err != nil {
				return err
			}
			rows := make([][]any, len(tables))
			for i, name := range tables {
				rows[i] = []any{name}
			}
			return r.Rows([]string{"table"}, rows, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("format", formatCompletion)

	return cmd
}

func renderMetadata(r *output.Renderer, meta *adapter.Metadata, format string) error {
	format = r.TableFormat(format)
	if format == output.FormatJSON {
		return r.JSON(meta)
	}

	rows := make([][]any, len(meta.Columns))
	for i, c := range meta.Columns {
		nullable := "YES"
		if !c.Nullable {
			nullable = "NO"
		}
		key := ""
		if c.PrimaryKey {
			key = "PK"
		}
		rows[i] = []any{c.Name, c.Type, nullable, key}
	}

	if format != output.FormatCSV {
		name := meta.Name
		if meta.Schema != "" {
			name = meta.Schema + "." + name
		}
		r.Header(name)
		r.KeyValue("Rows", fmt.Sprintf("%d", meta.RowCount))
	}
	return r.Rows([]string{"column", "type", "nullable", "key"}, rows, format)
}
