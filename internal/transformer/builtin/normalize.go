package builtin

import (
	"strings"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// Normalize trims leading and trailing white space from the text columns in
// Fields, or from every text column when Fields is empty.
type Normalize struct {
	Fields []string
}

func (n Normalize) Apply(in *table.Table) (*table.Table, error) {
	fields := n.Fields
	if len(fields) == 0 {
		for _, c := range in.Schema() {
			if c.Type == table.Text {
				fields = append(fields, c.Name)
			}
		}
	}
	out := in
	for _, f := range fields {
		c, ok := out.Schema().Lookup(f)
		if !ok {
			continue
		}
		name := f
		out = out.WithColumn(c, func(r records.Record) any {
			if s, ok := r[name].(string); ok {
				return strings.TrimSpace(s)
			}
			return r[name]
		})
	}
	return out, nil
}
