package builtin

import (
	"github.com/pkg/errors"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// Where keeps rows whose numeric Field compares to Value under Op. Rows with a
// NULL or non-numeric Field are dropped.
type Where struct {
	Field string
	Op    string // one of > >= < <= = !=
	Value float64
}

func (w Where) Apply(in *table.Table) (*table.Table, error) {
	if !in.Schema().Has(w.Field) {
		return nil, errors.Errorf("where: unknown column %q", w.Field)
	}
	cmp, err := comparator(w.Op)
	if err != nil {
		return nil, err
	}
	return in.Filter(func(r records.Record) bool {
		f, ok := table.ToFloat(r[w.Field])
		return ok && cmp(f, w.Value)
	}), nil
}

func comparator(op string) (func(a, b float64) bool, error) {
	switch op {
	case ">":
		return func(a, b float64) bool { return a > b }, nil
	case ">=":
		return func(a, b float64) bool { return a >= b }, nil
	case "<":
		return func(a, b float64) bool { return a < b }, nil
	case "<=":
		return func(a, b float64) bool { return a <= b }, nil
	case "=", "==":
		return func(a, b float64) bool { return a == b }, nil
	case "!=", "<>":
		return func(a, b float64) bool { return a != b }, nil
	}
	return nil, errors.Errorf("where: unsupported operator %q", op)
}
