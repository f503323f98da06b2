// Package dialect provides the MySQL SQL dialect definition.
// This package has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

func init() {
	dialect.Register(MySQL)
}

// MySQL is the MySQL dialect configuration. The schema is the database.
var MySQL = dialect.NewDialect("mysql").
	DisplayName("MySQL").
	Identifiers("`", "`", "``", dialect.NormCaseInsensitive).
	PlaceholderStyle(dialect.PlaceholderQuestion).
	IdentityColumn("BIGINT AUTO_INCREMENT PRIMARY KEY").
	TypeName("FLOAT", "DOUBLE").
	TypeName("TIMESTAMP", "DATETIME").
	MaxParams(65535).
	WithReservedWords("order", "group", "table", "select", "from", "where", "index", "key", "rank").
	Build()
