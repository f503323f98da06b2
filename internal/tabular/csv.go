package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseCSV reads delimited text into an extract. The first record is the
// header. Comma is the default delimiter; a header line without commas but
// with tabs or semicolons switches to that delimiter. Blank lines are skipped
// and short rows are padded with nulls. A row with more fields than the
// header, or text with no header at all, is malformed.
//
// Text that holds an HTML table instead of CSV is handed to ParseHTMLTable.
func ParseCSV(text string) (*Extract, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrMalformed)
	}
	if looksLikeHTMLTable(text) {
		return ParseHTMLTable(text)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if isBlankRecord(rec) {
			continue
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrMalformed, line, len(rec), len(header))
		}
		rows = append(rows, rec)
	}

	return FromRecords(header, rows)
}

// WriteCSV writes the extract with a header row.
func WriteCSV(w io.Writer, e *Extract) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(e.Names()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(e.Columns))
	for _, row := range e.Rows() {
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func detectDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	if strings.ContainsRune(first, ',') {
		return ','
	}
	if strings.ContainsRune(first, '\t') {
		return '\t'
	}
	if strings.ContainsRune(first, ';') {
		return ';'
	}
	return ','
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
