// Package dialect describes how each supported database spells the SQL that
// tablescribe generates: identifier quoting, parameter placeholders, native
// names for the inferred column types, the auto-increment primary key and
// row-limiting syntax.
//
// Concrete dialects are registered from pkg/adapters/*/dialect packages.
// Those packages carry no driver dependencies, so prompt building and SQL
// rendering can use a dialect without opening a connection.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizationStrategy defines how unquoted identifiers are folded by the database.
type NormalizationStrategy int

const (
	// NormLowercase folds unquoted identifiers to lowercase (PostgreSQL).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase folds unquoted identifiers to uppercase.
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly.
	NormCaseSensitive
	// NormCaseInsensitive compares identifiers without regard to case (DuckDB, SQLite, MySQL, SQL Server).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
	// PlaceholderAtP uses @p1, @p2, etc. (SQL Server).
	PlaceholderAtP
)

// LimitStyle defines how a row limit is written.
type LimitStyle int

const (
	// LimitClause appends LIMIT n.
	LimitClause LimitStyle = iota
	// LimitTop writes SELECT TOP n.
	LimitTop
)

// DefaultMaxParams is the bind parameter limit used when a dialect sets none.
const DefaultMaxParams = 32766

// Dialect holds the SQL spelling rules for one database.
type Dialect struct {
	Name        string
	DisplayName string

	Quote    string
	QuoteEnd string
	Escape   string
	Norm     NormalizationStrategy

	DefaultSchema string
	Placeholder   PlaceholderStyle
	Limit         LimitStyle

	// IdentityColumn is the column definition that follows the quoted name
	// of the surrogate primary key, e.g. "SERIAL PRIMARY KEY".
	IdentityColumn string

	// MaxParams caps bind parameters per statement. Batched inserts are
	// sized so that rows*columns stays below it.
	MaxParams int

	typeNames     map[string]string
	reservedWords map[string]struct{}
}

// QuoteIdent quotes an identifier, doubling any embedded closing quote.
func (d *Dialect) QuoteIdent(name string) string {
	end := d.QuoteEnd
	if end == "" {
		end = d.Quote
	}
	escape := d.Escape
	if escape == "" {
		escape = end + end
	}
	return d.Quote + strings.ReplaceAll(name, end, escape) + end
}

// QuoteIdents quotes each name and joins them with ", ".
func (d *Dialect) QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// QualifiedName returns schema.table with both parts quoted.
// An empty schema yields just the quoted table.
func (d *Dialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// FormatPlaceholder returns the placeholder for the 1-based parameter index.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(index)
	default:
		return "?"
	}
}

// TypeName maps a generic SQL type (INTEGER, FLOAT, TIMESTAMP, BOOLEAN,
// TEXT) to the dialect's native spelling. Unmapped types pass through.
func (d *Dialect) TypeName(generic string) string {
	if native, ok := d.typeNames[strings.ToUpper(generic)]; ok {
		return native
	}
	return strings.ToUpper(generic)
}

// LimitQuery returns SELECT * over the qualified table limited to n rows.
func (d *Dialect) LimitQuery(qualified string, n int) string {
	if d.Limit == LimitTop {
		return fmt.Sprintf("SELECT TOP %d * FROM %s", n, qualified)
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified, n)
}

// BatchSize returns how many rows of the given width fit in one statement.
func (d *Dialect) BatchSize(columns int) int {
	if columns <= 0 {
		return 1
	}
	limit := d.MaxParams
	if limit <= 0 {
		limit = DefaultMaxParams
	}
	n := limit / columns
	if n < 1 {
		return 1
	}
	return n
}

// IsReservedWord reports whether name is reserved in this dialect.
func (d *Dialect) IsReservedWord(name string) bool {
	_, ok := d.reservedWords[strings.ToLower(name)]
	return ok
}

// QuotingHint describes the identifier quoting rule for prompts.
func (d *Dialect) QuotingHint() string {
	var how string
	switch d.Quote {
	case `"`:
		how = "double quotes"
	case "`":
		how = "backticks"
	case "[":
		how = "square brackets"
	default:
		end := d.QuoteEnd
		if end == "" {
			end = d.Quote
		}
		how = d.Quote + end
	}
	return "Always enclose table and column names in " + how + "."
}

// Builder assembles a Dialect.
type Builder struct {
	d *Dialect
}

// NewDialect starts a dialect definition with ANSI defaults.
func NewDialect(name string) *Builder {
	return &Builder{d: &Dialect{
		Name:           name,
		DisplayName:    name,
		Quote:          `"`,
		QuoteEnd:       `"`,
		Escape:         `""`,
		IdentityColumn: "INTEGER PRIMARY KEY",
		typeNames:      make(map[string]string),
		reservedWords:  make(map[string]struct{}),
	}}
}

// DisplayName sets the human-readable database name used in prompts.
func (b *Builder) DisplayName(name string) *Builder {
	b.d.DisplayName = name
	return b
}

// Identifiers sets the quoting and normalization rules.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm NormalizationStrategy) *Builder {
	b.d.Quote = quote
	b.d.QuoteEnd = quoteEnd
	b.d.Escape = escape
	b.d.Norm = norm
	return b
}

// DefaultSchema sets the schema used when none is configured.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.d.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets the parameter placeholder style.
func (b *Builder) PlaceholderStyle(style PlaceholderStyle) *Builder {
	b.d.Placeholder = style
	return b
}

// LimitStyle sets how row limits are written.
func (b *Builder) LimitStyle(style LimitStyle) *Builder {
	b.d.Limit = style
	return b
}

// IdentityColumn sets the surrogate key definition.
func (b *Builder) IdentityColumn(def string) *Builder {
	b.d.IdentityColumn = def
	return b
}

// MaxParams sets the bind parameter limit per statement.
func (b *Builder) MaxParams(n int) *Builder {
	b.d.MaxParams = n
	return b
}

// TypeName maps a generic SQL type to its native spelling.
func (b *Builder) TypeName(generic, native string) *Builder {
	b.d.typeNames[strings.ToUpper(generic)] = native
	return b
}

// WithReservedWords adds words that must be quoted as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.d.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the finished dialect.
func (b *Builder) Build() *Dialect {
	return b.d
}
