// Package table is the in-memory tabular engine the pipeline runs on.
//
// A Table is a typed schema plus an ordered slice of records.Record rows.
// Every operation returns a new Table and never mutates its receiver or the
// rows it holds, so stages can share inputs freely. Rows that pass through an
// operation unchanged are shared between the input and the output.
package table

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"movieetl/pkg/records"
)

// Type is the logical type of a column.
type Type string

const (
	Integer   Type = "integer"
	Real      Type = "real"
	Text      Type = "text"
	Boolean   Type = "boolean"
	Date      Type = "date"
	Timestamp Type = "timestamp"
	TextList  Type = "text[]"
)

// Valid reports whether t is one of the known logical types.
func (t Type) Valid() bool {
	switch t {
	case Integer, Real, Text, Boolean, Date, Timestamp, TextList:
		return true
	}
	return false
}

// Column is a named, typed column.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

// Schema is an ordered list of columns.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the column called name.
func (s Schema) Lookup(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Column{}, false
}

// Has reports whether the schema contains name.
func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Clone returns a copy of s.
func (s Schema) Clone() Schema {
	return append(Schema(nil), s...)
}

// Equal reports whether both schemas hold the same columns in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Table is an immutable typed dataset.
type Table struct {
	schema Schema
	rows   []records.Record
}

// New builds a Table. The table takes ownership of rows; callers must not
// modify them afterwards.
func New(schema Schema, rows []records.Record) *Table {
	if rows == nil {
		rows = []records.Record{}
	}
	return &Table{schema: schema.Clone(), rows: rows}
}

// Empty returns a table with the given schema and no rows.
func Empty(schema Schema) *Table { return New(schema, nil) }

// Schema returns a copy of the table schema.
func (t *Table) Schema() Schema { return t.schema.Clone() }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the rows in order. The returned records must be treated as
// read-only.
func (t *Table) Rows() []records.Record { return t.rows }

// Row returns row i.
func (t *Table) Row(i int) records.Record { return t.rows[i] }

// Values returns every value of column name in row order.
func (t *Table) Values(name string) []any {
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[name]
	}
	return out
}

// CountWhere returns the number of rows matching pred.
func (t *Table) CountWhere(pred func(records.Record) bool) int {
	n := 0
	for _, r := range t.rows {
		if pred(r) {
			n++
		}
	}
	return n
}

// Preview renders the first n rows as an aligned text grid, for logs.
func (t *Table) Preview(n int) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.schema.Names(), "\t"))
	for i, r := range t.rows {
		if i >= n {
			break
		}
		cells := make([]string, len(t.schema))
		for j, c := range t.schema {
			cells[j] = FormatValue(r[c.Name])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	if len(t.rows) > n {
		fmt.Fprintf(&sb, "only showing top %d rows\n", n)
	}
	return sb.String()
}

// FormatValue renders v the way Preview prints it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(DateLayout)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}

// DateLayout is the canonical text form of Date values.
const DateLayout = "2006-01-02"

// mustColumn returns an error naming the missing column.
func (t *Table) mustColumn(name string) (Column, error) {
	c, ok := t.schema.Lookup(name)
	if !ok {
		return Column{}, errors.Errorf("table: unknown column %q (have %v)", name, t.schema.Names())
	}
	return c, nil
}
