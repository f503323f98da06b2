// Package dialect provides the DuckDB SQL dialect definition.
// This package has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect configuration. The identity column is
// written by the adapter, which backs it with a sequence.
var DuckDB = dialect.NewDialect("duckdb").
	DisplayName("DuckDB").
	Identifiers(`"`, `"`, `""`, dialect.NormCaseInsensitive).
	DefaultSchema("main").
	PlaceholderStyle(dialect.PlaceholderQuestion).
	IdentityColumn("BIGINT PRIMARY KEY").
	TypeName("FLOAT", "DOUBLE").
	TypeName("TEXT", "VARCHAR").
	WithReservedWords("user", "order", "group", "table", "select", "from", "where", "pivot", "unpivot", "qualify").
	Build()
