package mssql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"

	"movieetl/internal/ddl"
	"movieetl/internal/storage"
	"movieetl/internal/storage/sqltier"
	"movieetl/internal/table"
)

// Dialect is the SQL Server sqltier.Dialect.
type Dialect struct{}

var _ sqltier.Dialect = Dialect{}

func (Dialect) Name() string { return "mssql" }

// Quote brackets an identifier, escaping ].
func (Dialect) Quote(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// MapType maps logical types into SQL Server column types. Lists are stored
// as JSON in NVARCHAR(MAX).
func (Dialect) MapType(t table.Type) string {
	switch t {
	case table.Integer:
		return "BIGINT"
	case table.Real:
		return "FLOAT"
	case table.Boolean:
		return "BIT"
	case table.Date:
		return "DATE"
	case table.Timestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (Dialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// EnsureTableSQL guards CREATE TABLE with OBJECT_ID since SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func (d Dialect) EnsureTableSQL(td ddl.TableDef) (string, error) {
	td.IfNotExists = false
	create, err := ddl.BuildCreateTableSQL(td, d.Quote)
	if err != nil {
		return "", err
	}
	name := strings.ReplaceAll(ddl.QuoteFQN(td.FQN, d.Quote), "'", "''")
	return "IF OBJECT_ID(N'" + name + "', N'U') IS NULL\n" + create, nil
}

func (Dialect) Encode(v any, _ table.Type) any {
	if l, ok := v.([]string); ok {
		return storage.EncodeList(l)
	}
	return v
}

// MaxRowsPerInsert is unbounded: rows go through bulk copy, not bind
// parameters.
func (Dialect) MaxRowsPerInsert(int) int { return 0 }

// CopyRows bulk-loads rows into fqn within tx.
func (Dialect) CopyRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(fqn, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, errors.Wrap(err, "mssql: prepare bulk")
	}
	defer stmt.Close()
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			return 0, errors.Wrapf(err, "mssql: bulk row %d", i)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "mssql: bulk finalize")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "mssql: rows affected")
	}
	return n, nil
}
