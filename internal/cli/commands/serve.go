package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve extraction, upload and the assistant over HTTP.

Endpoints:
  POST /api/extract                 image body or multipart "image" field, ?table= to upload
  POST /api/tables/{table}/rows     CSV body
  GET  /api/tables/{table}/preview  ?limit=
  POST /api/tables/{table}/ask      {"question": "...", "dry_run": false}
  GET  /api/tables
  GET  /api/history/{uploads|queries}
  GET  /healthz`,
		Example: `  tablescribe serve
  tablescribe serve --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cmdCtx := NewCommandContext(cmd)
			cfg := cmdCtx.Cfg

			svc, cleanup, err := cmdCtx.Service(ctx, needStore|needModel)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := server.New(server.Config{
				Service:     svc,
				Addr:        addr,
				MaxUploadMB: int(cfg.Server.MaxUploadMB),
				Logger:      cmdCtx.Logger,
			})

			cmdCtx.Renderer.Muted("Listening on " + addr + " (Ctrl+C to stop)")
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")

	return cmd
}
