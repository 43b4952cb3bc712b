package builtin

import (
	"github.com/pkg/errors"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// Derive computes column To from the value of column From. NULL input stays
// NULL without calling Fn. When To already exists it is replaced in place.
type Derive struct {
	From string
	To   table.Column
	Fn   func(v any) any
}

func (d Derive) Apply(in *table.Table) (*table.Table, error) {
	if !in.Schema().Has(d.From) {
		return nil, errors.Errorf("derive %s: unknown column %q", d.To.Name, d.From)
	}
	return in.WithColumn(d.To, func(r records.Record) any {
		v := r[d.From]
		if v == nil {
			return nil
		}
		return d.Fn(v)
	}), nil
}
