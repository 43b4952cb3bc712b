package mysql

import (
	"context"
	"database/sql"
	"strings"

	"movieetl/internal/ddl"
	"movieetl/internal/storage"
	"movieetl/internal/storage/sqltier"
	"movieetl/internal/table"
)

// maxParams is the prepared statement placeholder limit.
const maxParams = 65535

// Dialect is the MySQL sqltier.Dialect.
type Dialect struct{}

var _ sqltier.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

// Quote backtick-quotes an identifier, escaping embedded backticks.
func (Dialect) Quote(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func (Dialect) MapType(t table.Type) string {
	switch t {
	case table.Integer:
		return "BIGINT"
	case table.Real:
		return "DOUBLE"
	case table.Boolean:
		return "BOOLEAN"
	case table.Date:
		return "DATE"
	case table.Timestamp:
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}

func (Dialect) Placeholder(int) string { return "?" }

func (d Dialect) EnsureTableSQL(td ddl.TableDef) (string, error) {
	td.IfNotExists = true
	return ddl.BuildCreateTableSQL(td, d.Quote)
}

func (Dialect) Encode(v any, _ table.Type) any {
	if l, ok := v.([]string); ok {
		return storage.EncodeList(l)
	}
	return v
}

func (Dialect) MaxRowsPerInsert(columns int) int {
	if columns <= 0 {
		return 0
	}
	return maxParams / columns
}

func (d Dialect) CopyRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	return sqltier.InsertValues(ctx, tx, d, fqn, columns, rows)
}
