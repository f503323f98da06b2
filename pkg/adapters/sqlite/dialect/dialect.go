// Package dialect provides the SQLite SQL dialect definition.
// This package has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

// SQLite is the SQLite dialect configuration. SQLite has no schemas
// beyond the attached database, so DefaultSchema is empty.
var SQLite = dialect.NewDialect("sqlite").
	DisplayName("SQLite").
	Identifiers(`"`, `"`, `""`, dialect.NormCaseInsensitive).
	PlaceholderStyle(dialect.PlaceholderQuestion).
	IdentityColumn("INTEGER PRIMARY KEY AUTOINCREMENT").
	TypeName("FLOAT", "REAL").
	MaxParams(32766).
	WithReservedWords("order", "group", "table", "select", "from", "where", "index", "values").
	Build()
