// Package transformer defines table-level transforms and how they compose.
package transformer

import (
	"github.com/pkg/errors"

	"movieetl/internal/table"
)

// Transformer maps one table to another. Implementations must not mutate
// their input.
type Transformer interface {
	Apply(*table.Table) (*table.Table, error)
}

// Func adapts a plain function to Transformer.
type Func func(*table.Table) (*table.Table, error)

func (f Func) Apply(in *table.Table) (*table.Table, error) { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every transformer in order and stops at the first error.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, t := range c {
		next, err := t.Apply(out)
		if err != nil {
			return nil, errors.Wrapf(err, "transformer: step %d (%T)", i, t)
		}
		out = next
	}
	return out, nil
}
