package assistant

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNotReadOnly is returned for generated SQL that could change data.
var ErrNotReadOnly = errors.New("statement is not a read-only query")

var readKeywords = map[string]bool{
	"select":   true,
	"with":     true,
	"values":   true,
	"table":    true,
	"show":     true,
	"explain":  true,
	"describe": true,
	"desc":     true,
}

var writeKeywords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"merge":    true,
	"upsert":   true,
	"drop":     true,
	"create":   true,
	"alter":    true,
	"truncate": true,
	"grant":    true,
	"revoke":   true,
	"attach":   true,
	"detach":   true,
	"copy":     true,
	"call":     true,
	"exec":     true,
	"execute":  true,
	"into":     true,
	"pragma":   true,
	"vacuum":   true,
}

// CheckReadOnly accepts a single statement that starts with a query keyword
// and contains no data-changing keyword outside quotes and comments.
func CheckReadOnly(sql string) error {
	words, statements := scanWords(sql)
	if len(words) == 0 {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}
	if statements > 1 {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if !readKeywords[words[0]] {
		return fmt.Errorf("%w: starts with %s", ErrNotReadOnly, strings.ToUpper(words[0]))
	}
	for _, w := range words[1:] {
		if writeKeywords[w] {
			return fmt.Errorf("%w: contains %s", ErrNotReadOnly, strings.ToUpper(w))
		}
	}
	return nil
}

// scanWords returns the lowercased bare words of sql, skipping string
// literals, quoted identifiers and comments, and counts the non-empty
// statements separated by semicolons.
func scanWords(sql string) ([]string, int) {
	var words []string
	statements := 0
	inStatement := false

	rs := []rune(sql)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			i += 2
			for i+1 < len(rs) && (rs[i] != '*' || rs[i+1] != '/') {
				i++
			}
			i += 2
		case r == '\'' || r == '"' || r == '`' || r == '[':
			closer := r
			if r == '[' {
				closer = ']'
			}
			i++
			for i < len(rs) {
				if rs[i] == closer {
					if i+1 < len(rs) && rs[i+1] == closer {
						i += 2
						continue
					}
					break
				}
				i++
			}
			i++
			if !inStatement {
				inStatement = true
				statements++
			}
		case r == ';':
			inStatement = false
			i++
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]) || rs[i] == '_') {
				i++
			}
			words = append(words, strings.ToLower(string(rs[start:i])))
			if !inStatement {
				inStatement = true
				statements++
			}
		case unicode.IsSpace(r):
			i++
		default:
			if !inStatement {
				inStatement = true
				statements++
			}
			i++
		}
	}
	return words, statements
}
