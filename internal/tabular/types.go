// Package tabular holds the in-memory representation of an extracted table:
// named columns of uniformly typed values, the value-sniffing pass that
// assigns each column its type, and the readers and writers that move
// extracts between CSV, HTML and Parquet.
package tabular

import "strings"

// ColumnType is the inferred type of an extract column.
type ColumnType int

// Inferred column types.
const (
	TypeUnknown ColumnType = iota
	TypeInteger
	TypeFloat
	TypeTimestamp
	TypeBoolean
	TypeText
)

// SQL type names produced by SQLType.
const (
	SQLInteger   = "INTEGER"
	SQLFloat     = "FLOAT"
	SQLTimestamp = "TIMESTAMP"
	SQLBoolean   = "BOOLEAN"
	SQLText      = "TEXT"
)

// String returns the lower-case name of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeTimestamp:
		return "timestamp"
	case TypeBoolean:
		return "boolean"
	case TypeText:
		return "text"
	default:
		return "unknown"
	}
}

// SQLType maps the column type to its SQL type name.
// Every value outside the five known types maps to TEXT.
func (t ColumnType) SQLType() string {
	switch t {
	case TypeInteger:
		return SQLInteger
	case TypeFloat:
		return SQLFloat
	case TypeTimestamp:
		return SQLTimestamp
	case TypeBoolean:
		return SQLBoolean
	default:
		return SQLText
	}
}

// ParseColumnType is the inverse of String. Unrecognised names yield TypeText.
func ParseColumnType(s string) ColumnType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return TypeInteger
	case "float", "double":
		return TypeFloat
	case "timestamp", "datetime":
		return TypeTimestamp
	case "boolean", "bool":
		return TypeBoolean
	default:
		return TypeText
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ColumnType) UnmarshalText(b []byte) error {
	*t = ParseColumnType(string(b))
	return nil
}
