package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"movieetl/internal/ddl"
	"movieetl/internal/storage"
	"movieetl/internal/storage/sqltier"
	"movieetl/internal/table"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER for builds since 3.32.
const maxParams = 32766

// Dialect is the SQLite sqltier.Dialect.
type Dialect struct{}

var _ sqltier.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

// Quote double-quotes an identifier, escaping embedded quotes.
func (Dialect) Quote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// MapType maps logical types onto SQLite declared types. Lists are stored as
// JSON text.
func (Dialect) MapType(t table.Type) string {
	switch t {
	case table.Integer:
		return "INTEGER"
	case table.Real:
		return "REAL"
	case table.Boolean:
		return "BOOLEAN"
	case table.Date:
		return "DATE"
	case table.Timestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (Dialect) Placeholder(int) string { return "?" }

func (d Dialect) EnsureTableSQL(td ddl.TableDef) (string, error) {
	td.IfNotExists = true
	return ddl.BuildCreateTableSQL(td, d.Quote)
}

// Encode stores dates and timestamps as ISO text so values read back
// unchanged whatever the driver's time handling.
func (Dialect) Encode(v any, typ table.Type) any {
	switch x := v.(type) {
	case time.Time:
		if typ == table.Date {
			return x.Format(table.DateLayout)
		}
		return x.UTC().Format(time.RFC3339Nano)
	case []string:
		return storage.EncodeList(x)
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
