package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/cli/config"
	"github.com/leapstack-labs/tablescribe/internal/cli/output"
	"github.com/leapstack-labs/tablescribe/internal/cli/review"
	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

// ExtractOptions holds options for the extract command.
type ExtractOptions struct {
	Out    string
	Table  string
	Review bool
	Format string
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Convert a photographed table into CSV",
		Long: `Send a photo or scan of a handwritten table to the configured vision model
and print the table it reads.

With --out the CSV is saved to a file (a name ending in .parquet writes
Parquet instead). With --table the rows are also uploaded: a missing table is
created with inferred column types, an existing one is appended to.`,
		Example: `  # Print the table
  tablescribe extract scan.jpg

  # Save as converted_batch_data.csv
  tablescribe extract scan.jpg --out

  # Save as Parquet and upload into "people" after reviewing it
  tablescribe extract scan.jpg --out batch.parquet --table people --review`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the table to a CSV or .parquet file")
	cmd.Flags().Lookup("out").NoOptDefVal = config.DefaultDownload
	cmd.Flags().StringVar(&opts.Table, "table", "", "Upload the rows into this table")
	cmd.Flags().BoolVar(&opts.Review, "review", false, "Review the table before uploading")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("format", formatCompletion)

	return cmd
}

func runExtract(cmd *cobra.Command, path string, opts *ExtractOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	image, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	n := needModel
	if opts.Table != "" {
		n |= needStore
	}
	svc, cleanup, err := cmdCtx.Service(ctx, n)
	if err != nil {
		return err
	}
	defer cleanup()

	ex, err := svc.ExtractImage(ctx, image)
	if err != nil {
		return err
	}

	if opts.Out != "" {
		out := opts.Out
		if out == config.DefaultDownload && cmdCtx.Cfg.Extract.Output != "" {
			out = cmdCtx.Cfg.Extract.Output
		}
		if err := writeExtractFile(out, ex.Extract); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Saved %d rows to %s", ex.Extract.NumRows(), out))
	} else if err := r.Rows(ex.Extract.Names(), ex.Extract.Rows(), opts.Format); err != nil {
		return err
	}

	if opts.Table == "" {
		return nil
	}

	if opts.Review || cmdCtx.Cfg.Extract.Review {
		if !isTerminal(os.Stdin) {
			return fmt.Errorf("--review needs an interactive terminal")
		}
		ok, err := review.Confirm(ctx, ex.Extract, fmt.Sprintf("Upload to %s?", opts.Table), os.Stdin, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if !ok {
			r.Muted("Upload cancelled")
			return nil
		}
	}

	res, err := svc.Upload(ctx, ex.Extract, opts.Table, filepath.Base(path))
	if err != nil {
		return err
	}
	renderUpload(r, res)
	return nil
}

// writeExtractFile writes CSV, or Parquet when the name ends in .parquet.
func writeExtractFile(path string, e *tabular.Extract) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	write := tabular.WriteCSV
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		write = tabular.WriteParquet
	}
	if err := write(f, e); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// renderUpload reports a reconciliation result.
func renderUpload(r *output.Renderer, res *ingest.Result) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(res)
		return
	}
	if res.Created {
		r.Success(fmt.Sprintf("Created %s with %d rows", res.Table, res.RowsWritten))
	} else {
		r.Success(fmt.Sprintf("Appended %d rows to %s", res.RowsWritten, res.Table))
	}
	if len(res.Dropped) > 0 {
		r.Warning(fmt.Sprintf("columns not in %s were dropped: %s", res.Table, strings.Join(res.Dropped, ", ")))
	}
}

func formatCompletion(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return output.Formats, cobra.ShellCompDirectiveNoFileComp
}
