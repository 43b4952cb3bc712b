// Package builtin contains simple, reusable transformers used in the ETL.
package builtin

import "movieetl/internal/table"

// Require removes every row holding a NULL in any of Fields. With no Fields,
// every column is required.
type Require struct {
	Fields []string
}

func (r Require) Apply(in *table.Table) (*table.Table, error) {
	return in.DropNulls(r.Fields...), nil
}
