package table

import (
	"sort"

	"github.com/pkg/errors"

	"movieetl/pkg/records"
)

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(records.Record) bool) *Table {
	out := make([]records.Record, 0, len(t.rows))
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Table{schema: t.schema.Clone(), rows: out}
}

// DropNulls removes every row holding a NULL in any of cols. With no cols,
// every column of the schema is checked.
func (t *Table) DropNulls(cols ...string) *Table {
	if len(cols) == 0 {
		cols = t.schema.Names()
	}
	return t.Filter(func(r records.Record) bool {
		for _, c := range cols {
			if r.IsNull(c) {
				return false
			}
		}
		return true
	})
}

// WithColumn adds col computed by fn for every row. When a column of the same
// name exists it is replaced in place, keeping its position.
func (t *Table) WithColumn(col Column, fn func(records.Record) any) *Table {
	schema := t.schema.Clone()
	if i := schema.Index(col.Name); i >= 0 {
		schema[i] = col
	} else {
		schema = append(schema, col)
	}
	out := make([]records.Record, len(t.rows))
	for i, r := range t.rows {
		nr := r.Clone()
		nr[col.Name] = fn(r)
		out[i] = nr
	}
	return &Table{schema: schema, rows: out}
}

// Drop removes the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	schema := make(Schema, 0, len(t.schema))
	for _, c := range t.schema {
		if _, ok := drop[c.Name]; !ok {
			schema = append(schema, c)
		}
	}
	if len(schema) == len(t.schema) {
		return &Table{schema: schema, rows: t.rows}
	}
	out := make([]records.Record, len(t.rows))
	for i, r := range t.rows {
		nr := make(records.Record, len(schema))
		for _, c := range schema {
			if v, ok := r[c.Name]; ok {
				nr[c.Name] = v
			}
		}
		out[i] = nr
	}
	return &Table{schema: schema, rows: out}
}

// Rename renames column from to to. Renaming onto an existing column is an
// error.
func (t *Table) Rename(from, to string) (*Table, error) {
	i := t.schema.Index(from)
	if i < 0 {
		return nil, errors.Errorf("table: rename: unknown column %q", from)
	}
	if from == to {
		return t, nil
	}
	if t.schema.Has(to) {
		return nil, errors.Errorf("table: rename: column %q already exists", to)
	}
	schema := t.schema.Clone()
	schema[i].Name = to
	out := make([]records.Record, len(t.rows))
	for j, r := range t.rows {
		nr := r.Clone()
		if v, ok := nr[from]; ok {
			nr[to] = v
			delete(nr, from)
		}
		out[j] = nr
	}
	return &Table{schema: schema, rows: out}, nil
}

// Select projects the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	schema := make(Schema, 0, len(names))
	for _, n := range names {
		c, err := t.mustColumn(n)
		if err != nil {
			return nil, errors.Wrap(err, "select")
		}
		schema = append(schema, c)
	}
	out := make([]records.Record, len(t.rows))
	for i, r := range t.rows {
		nr := make(records.Record, len(schema))
		for _, c := range schema {
			nr[c.Name] = r[c.Name]
		}
		out[i] = nr
	}
	return &Table{schema: schema, rows: out}, nil
}

// Limit keeps the first n rows.
func (t *Table) Limit(n int) *Table {
	if n < 0 || n >= len(t.rows) {
		return &Table{schema: t.schema.Clone(), rows: t.rows}
	}
	return &Table{schema: t.schema.Clone(), rows: t.rows[:n:n]}
}

// InnerJoin joins t (left) with right on the column key, keeping only rows
// whose key is non-NULL and present on both sides. The output schema is the
// key followed by the remaining left columns and then the remaining right
// columns. Output order follows the left table, and for each left row the
// order of its matches in right.
func (t *Table) InnerJoin(right *Table, key string) (*Table, error) {
	lk, err := t.mustColumn(key)
	if err != nil {
		return nil, errors.Wrap(err, "inner join: left")
	}
	rk, err := right.mustColumn(key)
	if err != nil {
		return nil, errors.Wrap(err, "inner join: right")
	}
	if lk.Type != rk.Type && !(isNumeric(lk.Type) && isNumeric(rk.Type)) {
		return nil, errors.Errorf("table: inner join: key %q type mismatch %s vs %s", key, lk.Type, rk.Type)
	}

	schema := Schema{lk}
	for _, c := range t.schema {
		if c.Name != key {
			schema = append(schema, c)
		}
	}
	for _, c := range right.schema {
		if c.Name == key {
			continue
		}
		if schema.Has(c.Name) {
			return nil, errors.Errorf("table: inner join: column %q exists on both sides", c.Name)
		}
		schema = append(schema, c)
	}

	index := make(map[any][]records.Record, len(right.rows))
	for _, r := range right.rows {
		k, ok := joinKey(r[key])
		if !ok {
			continue
		}
		index[k] = append(index[k], r)
	}

	out := make([]records.Record, 0, len(t.rows))
	for _, l := range t.rows {
		k, ok := joinKey(l[key])
		if !ok {
			continue
		}
		for _, r := range index[k] {
			nr := make(records.Record, len(schema))
			for name, v := range l {
				nr[name] = v
			}
			for name, v := range r {
				if name != key {
					nr[name] = v
				}
			}
			out = append(out, nr)
		}
	}
	return &Table{schema: schema, rows: out}, nil
}

// joinKey normalizes a key value so that integer and float encodings of the
// same number land in the same bucket.
func joinKey(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if i, ok := ToInt(v); ok {
		return i, true
	}
	if f, ok := ToFloat(v); ok {
		return f, true
	}
	return v, true
}

// Aggregation computes one output column over the rows of a group.
type Aggregation struct {
	Column Column
	Fn     func(group []records.Record) any
}

// Mean averages the non-NULL numeric values of col. An all-NULL group yields
// NULL.
func Mean(col, as string) Aggregation {
	return Aggregation{
		Column: Column{Name: as, Type: Real},
		Fn: func(group []records.Record) any {
			var sum float64
			n := 0
			for _, r := range group {
				if f, ok := ToFloat(r[col]); ok {
					sum += f
					n++
				}
			}
			if n == 0 {
				return nil
			}
			return sum / float64(n)
		},
	}
}

// Count counts the non-NULL values of col.
func Count(col, as string) Aggregation {
	return Aggregation{
		Column: Column{Name: as, Type: Integer},
		Fn: func(group []records.Record) any {
			var n int64
			for _, r := range group {
				if !r.IsNull(col) {
					n++
				}
			}
			return n
		},
	}
}

// GroupBy groups rows by key and evaluates aggs per group. Groups appear in
// order of their first row; rows with a NULL key form no group.
func (t *Table) GroupBy(key string, aggs ...Aggregation) (*Table, error) {
	kc, err := t.mustColumn(key)
	if err != nil {
		return nil, errors.Wrap(err, "group by")
	}
	schema := Schema{kc}
	for _, a := range aggs {
		if schema.Has(a.Column.Name) {
			return nil, errors.Errorf("table: group by: duplicate output column %q", a.Column.Name)
		}
		schema = append(schema, a.Column)
	}

	var order []any
	groups := make(map[any][]records.Record)
	first := make(map[any]any)
	for _, r := range t.rows {
		k, ok := joinKey(r[key])
		if !ok {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
			first[k] = r[key]
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]records.Record, 0, len(order))
	for _, k := range order {
		g := groups[k]
		nr := records.Record{key: first[k]}
		for _, a := range aggs {
			nr[a.Column.Name] = a.Fn(g)
		}
		out = append(out, nr)
	}
	return &Table{schema: schema, rows: out}, nil
}

// SortKey orders by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Asc and Desc build sort keys.
func Asc(col string) SortKey  { return SortKey{Column: col} }
func Desc(col string) SortKey { return SortKey{Column: col, Desc: true} }

// SortBy orders rows by keys using a stable sort. NULLs sort first ascending
// and last descending.
func (t *Table) SortBy(keys ...SortKey) (*Table, error) {
	for _, k := range keys {
		if _, err := t.mustColumn(k.Column); err != nil {
			return nil, errors.Wrap(err, "sort")
		}
	}
	out := append([]records.Record(nil), t.rows...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			c := Compare(out[i][k.Column], out[j][k.Column])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return &Table{schema: t.schema.Clone(), rows: out}, nil
}

func isNumeric(t Type) bool { return t == Integer || t == Real }
