package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV file into a table",
		Long: `Upload a CSV file into the target database.

A missing table is created with a surrogate primary key and a column per CSV
header, typed from the values. An existing table is appended to; CSV columns
the table does not have are dropped and reported. Use "-" to read stdin.`,
		Example: `  tablescribe upload converted_batch_data.csv --table people
  cat batch.csv | tablescribe upload - --table people`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args[0], table)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Target table (required)")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runUpload(cmd *cobra.Command, path, table string) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)

	var data []byte
	var err error
	source := filepath.Base(path)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		source = "stdin"
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	svc, cleanup, err := cmdCtx.Service(ctx, needStore)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.UploadCSV(ctx, string(data), table, source)
	if err != nil {
		return err
	}
	renderUpload(cmdCtx.Renderer, res)
	return nil
}
