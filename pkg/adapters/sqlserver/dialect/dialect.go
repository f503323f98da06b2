// Package dialect provides the Microsoft SQL Server dialect definition.
// This package has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/tablescribe/pkg/dialect"
)

func init() {
	dialect.Register(SQLServer)
}

// SQLServer is the SQL Server dialect configuration. The protocol allows
// at most 2100 parameters per request.
var SQLServer = dialect.NewDialect("sqlserver").
	DisplayName("Microsoft SQL Server (T-SQL)").
	Identifiers("[", "]", "]]", dialect.NormCaseInsensitive).
	DefaultSchema("dbo").
	PlaceholderStyle(dialect.PlaceholderAtP).
	LimitStyle(dialect.LimitTop).
	IdentityColumn("BIGINT IDENTITY(1,1) PRIMARY KEY").
	TypeName("INTEGER", "BIGINT").
	TypeName("BOOLEAN", "BIT").
	TypeName("TIMESTAMP", "DATETIME2").
	TypeName("TEXT", "NVARCHAR(MAX)").
	MaxParams(2000).
	WithReservedWords("order", "group", "table", "select", "from", "where", "index", "key", "user").
	Build()
