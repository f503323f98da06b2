// Package dialect provides the PostgreSQL SQL dialect definition.
// This package has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

func init() {
	dialect.Register(Postgres)
}

// postgresReservedWords contains common PostgreSQL reserved words.
// For a complete list, use pg_get_keywords() at runtime.
var postgresReservedWords = []string{
	"user", "order", "group", "table", "select", "from", "where", "index",
	"all", "and", "any", "array", "as", "asc", "between", "both", "case",
	"cast", "check", "collate", "column", "constraint", "create", "cross",
	"current_date", "current_time", "current_timestamp", "current_user",
	"default", "desc", "distinct", "do", "else", "end", "except", "false",
	"fetch", "for", "foreign", "full", "grant", "having", "in",
	"inner", "intersect", "into", "is", "join", "leading", "left", "like",
	"limit", "not", "null", "offset", "on", "only", "or", "outer", "primary",
	"references", "returning", "right", "some", "then", "to", "true", "union",
	"unique", "using", "when", "window", "with",
}

// Postgres is the PostgreSQL dialect configuration.
var Postgres = dialect.NewDialect("postgres").
	DisplayName("PostgreSQL").
	Identifiers(`"`, `"`, `""`, dialect.NormLowercase).
	DefaultSchema("public").
	PlaceholderStyle(dialect.PlaceholderDollar).
	IdentityColumn("SERIAL PRIMARY KEY").
	TypeName("FLOAT", "DOUBLE PRECISION").
	MaxParams(65535).
	WithReservedWords(postgresReservedWords...).
	Build()
