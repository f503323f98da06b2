package tabular

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is wrapped by every error caused by text that cannot be read
// as a table.
var ErrMalformed = errors.New("malformed tabular data")

// Column is one named column of an extract.
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// Extract is a parsed table held in memory between recognition and upload.
type Extract struct {
	Columns []Column
}

// FromRecords builds an extract from a header and raw string rows, inferring
// each column's type. Short rows are padded with nulls.
func FromRecords(header []string, rows [][]string) (*Extract, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrMalformed)
	}

	names := uniqueNames(header)
	e := &Extract{Columns: make([]Column, len(names))}

	for col, name := range names {
		raw := make([]string, len(rows))
		for i, r := range rows {
			if col < len(r) {
				raw[i] = r[col]
			}
		}
		typ := InferColumnType(raw)
		values := make([]any, len(raw))
		for i, v := range raw {
			values[i] = ConvertValue(v, typ)
		}
		e.Columns[col] = Column{Name: name, Type: typ, Values: values}
	}

	return e, nil
}

// uniqueNames trims header cells, names blank ones "Unnamed: i" and suffixes
// repeated names with ".1", ".2", ... so that names are unique.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[strings.TrimSpace(h)] = true
	}

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			var candidate string
			for {
				n++
				candidate = name + "." + strconv.Itoa(n)
				if !taken[candidate] {
					break
				}
			}
			seen[name] = n
			taken[candidate] = true
			out[i] = candidate
			continue
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

// Names returns the column names in order.
func (e *Extract) Names() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// NumRows returns the row count, taken from the first column.
func (e *Extract) NumRows() int {
	if e == nil || len(e.Columns) == 0 {
		return 0
	}
	return len(e.Columns[0].Values)
}

// Rows returns the values row by row, in column order.
func (e *Extract) Rows() [][]any {
	n := e.NumRows()
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, len(e.Columns))
		for j, c := range e.Columns {
			row[j] = c.Values[i]
		}
		rows[i] = row
	}
	return rows
}

// Column returns the column with the given name.
func (e *Extract) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks that the extract has at least one column, that names are
// unique and non-empty, and that every column has the same row count.
func (e *Extract) Validate() error {
	if e == nil || len(e.Columns) == 0 {
		return errors.New("extract has no columns")
	}
	seen := make(map[string]bool, len(e.Columns))
	rows := len(e.Columns[0].Values)
	for _, c := range e.Columns {
		if c.Name == "" {
			return errors.New("extract has a column without a name")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Values) != rows {
			return fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), rows)
		}
	}
	return nil
}

// Without returns a copy of the extract with the named columns removed.
// The column values are shared with the receiver.
func (e *Extract) Without(names []string) *Extract {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Extract{Columns: make([]Column, 0, len(e.Columns))}
	for _, c := range e.Columns {
		if !drop[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// FormatValue renders a cell the way the CSV writer does.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
