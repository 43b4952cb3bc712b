package builtin

import (
	log "github.com/sirupsen/logrus"

	"movieetl/internal/schema"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// Coerce converts raw string cells into the types declared by Schema. A value
// that does not parse becomes NULL. Columns absent from Schema keep their
// current type; declared columns missing from the input are added as NULL.
type Coerce struct {
	Schema table.Schema
}

func (c Coerce) Apply(in *table.Table) (*table.Table, error) {
	if len(c.Schema) == 0 {
		return in, nil
	}
	have := in.Schema()
	out := make(table.Schema, 0, len(have)+len(c.Schema))
	for _, col := range have {
		if d, ok := c.Schema.Lookup(col.Name); ok {
			col.Type = d.Type
		}
		out = append(out, col)
	}
	for _, d := range c.Schema {
		if !out.Has(d.Name) {
			log.Printf("coerce: column=%s missing from input, filling NULL", d.Name)
			out = append(out, d)
		}
	}

	invalid := make(map[string]int)
	rows := make([]records.Record, in.Len())
	for i, r := range in.Rows() {
		nr := make(records.Record, len(out))
		for _, col := range out {
			v := r[col.Name]
			if s, ok := v.(string); ok && c.Schema.Has(col.Name) {
				pv, ok := schema.Parse(s, col.Type)
				if !ok {
					invalid[col.Name]++
					pv = nil
				}
				v = pv
			}
			nr[col.Name] = v
		}
		rows[i] = nr
	}
	for col, n := range invalid {
		log.Debugf("coerce: column=%s invalid=%d set to NULL", col, n)
	}
	return table.New(out, rows), nil
}
