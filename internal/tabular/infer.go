package tabular

import (
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when sniffing and converting timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02.01.2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// InferColumnType runs the value-sniffing pass over one column of raw cells.
// Empty cells are nulls and do not vote. A column with no values is text.
func InferColumnType(values []string) ColumnType {
	var seen bool
	allInt := true
	allFloat := true
	allBool := true
	allTS := true

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, ok := parseFloat(v); !ok {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
		if allTS {
			if _, ok := parseTimestamp(v); !ok {
				allTS = false
			}
		}
		if !allInt && !allFloat && !allBool && !allTS {
			return TypeText
		}
	}

	if !seen {
		return TypeText
	}

	// Prefer the most specific type.
	switch {
	case allInt:
		return TypeInteger
	case allFloat:
		return TypeFloat
	case allBool:
		return TypeBoolean
	case allTS:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// ConvertValue turns a raw cell into the Go value for the column type:
// int64, float64, time.Time, bool or string. Empty cells become nil.
// A cell that does not parse as the column type is kept as its string.
func ConvertValue(raw string, t ColumnType) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch t {
	case TypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case TypeFloat:
		if f, ok := parseFloat(v); ok {
			return f
		}
	case TypeBoolean:
		if b, ok := parseBool(v); ok {
			return b
		}
	case TypeTimestamp:
		if ts, ok := parseTimestamp(v); ok {
			return ts
		}
	}
	return v
}

func parseFloat(v string) (float64, bool) {
	lower := strings.ToLower(v)
	// ParseFloat accepts these spellings but a handwritten table never means them.
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.HasPrefix(lower, "0x") {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseBool accepts only true/false in any case.
func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
