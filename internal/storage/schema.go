package storage

import (
	"github.com/pkg/errors"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// ResolveSchema returns the schema a write stores at a location whose current
// schema is prev (nil when the location is new).
//
// In merge mode, stored columns keep their position and new columns are
// appended. Integer and real columns widen to real; any other type change is
// a conflict.
func ResolveSchema(prev, next table.Schema, mode SchemaMode) (table.Schema, error) {
	if mode == SchemaOverwrite || len(prev) == 0 {
		return next.Clone(), nil
	}
	out := prev.Clone()
	for _, c := range next {
		i := out.Index(c.Name)
		if i < 0 {
			out = append(out, c)
			continue
		}
		have := out[i].Type
		switch {
		case have == c.Type:
		case have == table.Integer && c.Type == table.Real:
			out[i].Type = table.Real
		case have == table.Real && c.Type == table.Integer:
		default:
			return nil, errors.Errorf("storage: merge conflict on column %q: stored %s, incoming %s", c.Name, have, c.Type)
		}
	}
	return out, nil
}

// Conform reshapes t to s: columns missing from t become NULL and integers
// written into real columns are widened.
func Conform(t *table.Table, s table.Schema) *table.Table {
	if t.Schema().Equal(s) {
		return t
	}
	in := t.Schema()
	rows := make([]records.Record, t.Len())
	for i, r := range t.Rows() {
		out := make(records.Record, len(s))
		for _, c := range s {
			v := r[c.Name]
			if src, ok := in.Lookup(c.Name); ok && src.Type == table.Integer && c.Type == table.Real && v != nil {
				if n, ok := table.ToInt(v); ok {
					v = float64(n)
				}
			}
			out[c.Name] = v
		}
		rows[i] = out
	}
	return table.New(s, rows)
}
