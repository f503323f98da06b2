package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
)

func boolPtr(v bool) *bool { return &v }

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("extract_table",
		mcp.WithDescription("Read a photographed or handwritten table image and return it as CSV. "+
			"Give either a local file path or base64 image data. With a table name the rows are also uploaded."),
		mcp.WithString("path", mcp.Description("Path to a PNG, JPEG or WebP image")),
		mcp.WithString("image_base64", mcp.Description("Base64-encoded image data")),
		mcp.WithString("table", mcp.Description("Table to upload the rows into (optional)")),
	), s.handleExtractTable)

	s.mcp.AddTool(mcp.NewTool("upload_csv",
		mcp.WithDescription("Upload CSV text into a table. A missing table is created with inferred column types; "+
			"columns the existing table lacks are dropped and reported."),
		mcp.WithString("csv", mcp.Description("CSV text with a header row"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Target table name"), mcp.Required()),
	), s.handleUploadCSV)

	s.mcp.AddTool(mcp.NewTool("preview_table",
		mcp.WithDescription("Show the first rows of a table"),
		mcp.WithString("table", mcp.Description("Table name (defaults to the configured table)")),
		mcp.WithNumber("limit", mcp.Description("Number of rows (default 5)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handlePreviewTable)

	s.mcp.AddTool(mcp.NewTool("ask_table",
		mcp.WithDescription("Answer a natural-language question about a table by generating and running SQL"),
		mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name (defaults to the configured table)")),
		mcp.WithBoolean("dry_run", mcp.Description("Only return the generated SQL")),
	), s.handleAskTable)

	s.mcp.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables in the target database"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListTables)
}

func (s *Server) handleExtractTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	encoded := req.GetString("image_base64", "")
	table := req.GetString("table", "")

	var image []byte
	var source string
	switch {
	case path != "":
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return s.errorResult("extract_table", fmt.Errorf("failed to read image: %w", err)), nil
		}
		image, source = data, filepath.Base(path)
	case encoded != "":
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return s.errorResult("extract_table", fmt.Errorf("image_base64 is not valid base64: %w", err)), nil
		}
		image, source = data, "mcp"
	default:
		return s.errorResult("extract_table", fmt.Errorf("either path or image_base64 is required")), nil
	}

	ex, err := s.svc.ExtractImage(ctx, image)
	if err != nil {
		return s.errorResult("extract_table", err), nil
	}
	if table == "" {
		return textResult(ex.Text), nil
	}

	res, err := s.svc.Upload(ctx, ex.Extract, table, source)
	if err != nil {
		return s.errorResult("extract_table", err), nil
	}
	return jsonResult(map[string]any{"csv": ex.Text, "upload": res})
}

func (s *Server) handleUploadCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.UploadCSV(ctx, req.GetString("csv", ""), req.GetString("table", ""), "mcp")
	if err != nil {
		return s.errorResult("upload_csv", err), nil
	}
	return jsonResult(res)
}

func (s *Server) handlePreviewTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rs, err := s.svc.Preview(ctx, req.GetString("table", ""), req.GetInt("limit", 0))
	if err != nil {
		return s.errorResult("preview_table", err), nil
	}
	return jsonResult(rs.Maps())
}

func (s *Server) handleAskTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ans, err := s.svc.Ask(ctx, req.GetString("table", ""), req.GetString("question", ""), req.GetBool("dry_run", false))
	if err != nil {
		if ans != nil && ans.SQL != "" {
			err = fmt.Errorf("%w\nSQL: %s", err, ans.SQL)
		}
		return s.errorResult("ask_table", err), nil
	}

	out := map[string]any{"sql": ans.SQL}
	if ans.Result != nil {
		out["rows"] = ans.Result.Maps()
	}
	return jsonResult(out)
}

func (s *Server) handleListTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tables, err := s.svc.Tables(ctx)
	if err != nil {
		return s.errorResult("list_tables", err), nil
	}
	if tables == nil {
		tables = []string{}
	}
	return jsonResult(tables)
}
