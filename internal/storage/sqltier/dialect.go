// Package sqltier implements storage.Repository on top of database/sql. It is
// shared by the SQL backends; each supplies a Dialect for quoting, types,
// placeholders and its bulk insert primitive.
//
// Every location is one table named "<tier>_<name>" with a hidden ordinal
// column that preserves write order. Commits are recorded in etl_commits.
package sqltier

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"movieetl/internal/ddl"
	"movieetl/internal/table"
)

// OrdinalColumn holds the 0-based write position of each row.
const OrdinalColumn = "_ordinal"

// CommitsTable is the name of the commit log table.
const CommitsTable = "etl_commits"

// Dialect captures what differs between SQL backends.
type Dialect interface {
	Name() string

	// Quote quotes a single identifier segment.
	Quote(ident string) string

	// MapType maps a logical column type to a SQL type.
	MapType(t table.Type) string

	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// EnsureTableSQL renders a statement that creates td when missing.
	EnsureTableSQL(td ddl.TableDef) (string, error)

	// Encode converts a pipeline value into a driver value for typ.
	Encode(v any, typ table.Type) any

	// MaxRowsPerInsert bounds rows per insert given the column count.
	MaxRowsPerInsert(columns int) int

	// CopyRows inserts rows into fqn within tx.
	CopyRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error)
}

// InsertValues inserts rows with a single multi-row INSERT statement. Dialects
// without a dedicated bulk API use it as their CopyRows.
func InsertValues(ctx context.Context, tx *sql.Tx, d Dialect, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(rows)*len(columns))
	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, errors.Errorf("%s: row %d has %d values, want %d", d.Name(), i, len(r), len(columns))
		}
		args = append(args, r...)
	}
	res, err := tx.ExecContext(ctx, insertSQL(d, fqn, columns, len(rows)), args...)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: insert", d.Name())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return int64(len(rows)), nil
	}
	return n, nil
}

func insertSQL(d Dialect, fqn string, columns []string, nrows int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", fqn, strings.Join(quoteAll(d, columns), ", "))
	p := 1
	for i := 0; i < nrows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(p))
			p++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

func quoteAll(d Dialect, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Quote(n)
	}
	return out
}
