package builtin

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// EpochToDate derives the calendar date column To from the epoch-seconds
// column From, as observed in Location (UTC when nil). The result is stored
// as midnight UTC of that date. From is dropped unless Keep is set.
type EpochToDate struct {
	From     string
	To       string
	Location *time.Location
	Keep     bool
}

func (e EpochToDate) Apply(in *table.Table) (*table.Table, error) {
	if !in.Schema().Has(e.From) {
		return nil, errors.Errorf("epoch to date: unknown column %q", e.From)
	}
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	out := in.WithColumn(table.Column{Name: e.To, Type: table.Date}, func(r records.Record) any {
		return EpochDate(r[e.From], loc)
	})
	if e.Keep || e.From == e.To {
		return out, nil
	}
	return out.Drop(e.From), nil
}

// EpochDate converts epoch seconds to a date in loc. Non-numeric input yields
// nil.
func EpochDate(v any, loc *time.Location) any {
	f, ok := table.ToFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	sec := math.Floor(f)
	t := time.Unix(int64(sec), 0).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
