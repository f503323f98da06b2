package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

// Result formats.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// Formats lists the accepted result formats.
var Formats = []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}

// WriteRows renders rows as a table, JSON, CSV or markdown.
func WriteRows(w io.Writer, columns []string, rows [][]any, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, columns, rows)
	case FormatCSV:
		return writeTable(w, columns, rows, func(t table.Writer) { t.RenderCSV() }, false, "")
	case FormatMarkdown, "markdown":
		return writeTable(w, columns, rows, func(t table.Writer) { t.RenderMarkdown() }, true, "NULL")
	case FormatTable, "":
		return writeTable(w, columns, rows, func(t table.Writer) { t.Render() }, true, "NULL")
	default:
		return fmt.Errorf("unknown format %q: must be table, json, csv or md", format)
	}
}

func writeTable(w io.Writer, columns []string, rows [][]any, render func(table.Writer), counted bool, null string) error {
	if counted && len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			if v == nil {
				out[i] = null
				continue
			}
			out[i] = tabular.FormatValue(v)
		}
		t.AppendRow(out)
	}

	render(t)
	if counted {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
	return nil
}

func writeJSON(w io.Writer, columns []string, rows [][]any) error {
	results := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		results = append(results, m)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
