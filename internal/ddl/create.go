// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it. Dialects supply identifier quoting and the
// logical-to-SQL type mapping; everything else is shared.
package ddl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"movieetl/internal/table"
)

// FromSchema builds a TableDef from a table schema. Every column is nullable
// since tier datasets keep NULLs.
func FromSchema(fqn string, s table.Schema, mapType func(table.Type) string) TableDef {
	td := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(s))}
	for _, c := range s {
		td.Columns = append(td.Columns, ColumnDef{Name: c.Name, SQLType: mapType(c.Type), Nullable: true})
	}
	return td
}

// QuoteFQN quotes each dotted part of name.
func QuoteFQN(name string, quote QuoteFunc) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// BuildCreateTableSQL renders a CREATE TABLE statement.
//
// Rules:
//   - t.FQN must be non-empty.
//   - Each column must have a non-empty Name and SQLType.
//   - Primary-key columns are always NOT NULL and are rendered as a separate
//     PRIMARY KEY clause in declaration order.
//   - IF NOT EXISTS is emitted when t.IfNotExists is set.
func BuildCreateTableSQL(t TableDef, quote QuoteFunc) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", errors.New("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", errors.New("ddl: at least one column is required")
	}
	if quote == nil {
		quote = func(s string) string { return s }
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", errors.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if _, dup := seen[name]; dup {
			return "", errors.Errorf("ddl: duplicate column %s in table %s", name, fqn)
		}
		seen[name] = struct{}{}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", errors.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	head := "CREATE TABLE "
	if t.IfNotExists {
		head += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n)", head, QuoteFQN(fqn, quote), strings.Join(cols, ",\n  ")), nil
}
