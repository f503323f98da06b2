package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/mcpserver"
)

// NewMCPCommand creates the mcp command.
func NewMCPCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve tools over the Model Context Protocol on stdio",
		Long: `Expose extract_table, upload_csv, preview_table, ask_table and list_tables
as MCP tools on stdin/stdout, for use from MCP-capable clients.

Logs go to stderr; stdout carries the protocol only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cmdCtx := NewCommandContext(cmd)

			svc, cleanup, err := cmdCtx.Service(ctx, needStore|needModel)
			if err != nil {
				return err
			}
			defer cleanup()

			return mcpserver.New(svc, version, cmdCtx.Logger).ServeStdio()
		},
	}
}
