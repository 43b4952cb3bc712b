package parquet

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// arrowType maps a logical type to its Arrow type.
func arrowType(t table.Type) (arrow.DataType, error) {
	switch t {
	case table.Integer:
		return arrow.PrimitiveTypes.Int64, nil
	case table.Real:
		return arrow.PrimitiveTypes.Float64, nil
	case table.Text:
		return arrow.BinaryTypes.String, nil
	case table.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case table.Date:
		return arrow.FixedWidthTypes.Date32, nil
	case table.Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case table.TextList:
		return arrow.ListOf(arrow.BinaryTypes.String), nil
	}
	return nil, errors.Errorf("parquet: unsupported type %q", t)
}

// arrowSchema converts a table schema; every field is nullable.
func arrowSchema(s table.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s))
	for i, c := range s {
		dt, err := arrowType(c.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// buildRecord converts t into a single Arrow record. The caller releases it.
func buildRecord(mem memory.Allocator, sc *arrow.Schema, t *table.Table) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	s := t.Schema()
	for _, r := range t.Rows() {
		for i, c := range s {
			if err := appendValue(b.Field(i), c.Type, r[c.Name]); err != nil {
				return nil, errors.Wrapf(err, "column %s", c.Name)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendValue(fb array.Builder, typ table.Type, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	bad := func() error { return errors.Errorf("value %v (%T) is not %s", v, v, typ) }
	switch typ {
	case table.Integer:
		n, ok := table.ToInt(v)
		if !ok {
			return bad()
		}
		fb.(*array.Int64Builder).Append(n)
	case table.Real:
		f, ok := table.ToFloat(v)
		if !ok {
			return bad()
		}
		fb.(*array.Float64Builder).Append(f)
	case table.Text:
		s, ok := v.(string)
		if !ok {
			return bad()
		}
		fb.(*array.StringBuilder).Append(s)
	case table.Boolean:
		x, ok := v.(bool)
		if !ok {
			return bad()
		}
		fb.(*array.BooleanBuilder).Append(x)
	case table.Date:
		ts, ok := v.(time.Time)
		if !ok {
			return bad()
		}
		fb.(*array.Date32Builder).Append(arrow.Date32FromTime(ts))
	case table.Timestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return bad()
		}
		fb.(*array.TimestampBuilder).Append(arrow.Timestamp(ts.UnixMicro()))
	case table.TextList:
		l, ok := v.([]string)
		if !ok {
			return bad()
		}
		lb := fb.(*array.ListBuilder)
		lb.Append(true)
		vb := lb.ValueBuilder().(*array.StringBuilder)
		for _, s := range l {
			vb.Append(s)
		}
	default:
		return bad()
	}
	return nil
}

// readColumn appends the values of arr into rows[offset:] under name.
func readColumn(arr arrow.Array, col table.Column, rows []records.Record, offset int) error {
	for i := 0; i < arr.Len(); i++ {
		r := rows[offset+i]
		if arr.IsNull(i) {
			r[col.Name] = nil
			continue
		}
		switch a := arr.(type) {
		case *array.Int64:
			r[col.Name] = a.Value(i)
		case *array.Float64:
			r[col.Name] = a.Value(i)
		case *array.String:
			r[col.Name] = a.Value(i)
		case *array.Boolean:
			r[col.Name] = a.Value(i)
		case *array.Date32:
			r[col.Name] = a.Value(i).ToTime()
		case *array.Timestamp:
			r[col.Name] = time.UnixMicro(int64(a.Value(i))).UTC()
		case *array.List:
			start, end := a.ValueOffsets(i)
			vals, ok := a.ListValues().(*array.String)
			if !ok {
				return errors.Errorf("parquet: column %s: list of %s", col.Name, a.ListValues().DataType())
			}
			out := make([]string, 0, end-start)
			for j := start; j < end; j++ {
				out = append(out, vals.Value(int(j)))
			}
			r[col.Name] = out
		default:
			return errors.Errorf("parquet: column %s: unexpected arrow type %s", col.Name, arr.DataType())
		}
	}
	return nil
}
