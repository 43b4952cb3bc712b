// Package probe samples the head of a raw source and suggests the declared
// columns for it, so a pipeline file can pin types instead of inferring them
// on every run.
package probe

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"movieetl/internal/config"
	"movieetl/internal/datasource"
	"movieetl/internal/parser/csv"
	"movieetl/internal/schema"
	"movieetl/internal/table"
)

// DefaultSampleRows is used when Options.MaxRows is zero.
const DefaultSampleRows = 200

// Options control sampling.
type Options struct {
	// URI is a path, file://, http(s):// or s3:// reference.
	URI string

	// MaxRows bounds the sampled data rows.
	MaxRows int

	// Comma is the field delimiter; zero means ','.
	Comma rune

	Sources datasource.Options
}

// Column describes one sampled column.
type Column struct {
	Name   string
	Type   table.Type
	Nulls  int
	Sample string
}

// Result is the outcome of a probe.
type Result struct {
	Rows    int
	Columns []Column

	// Source is a ready-to-paste pipeline source. It names a built-in schema
	// when the sample matches one exactly and lists columns otherwise.
	Source config.Source
}

// Probe reads up to MaxRows rows of opt.URI and infers a type per column.
func Probe(ctx context.Context, opt Options) (Result, error) {
	if opt.MaxRows <= 0 {
		opt.MaxRows = DefaultSampleRows
	}
	src, err := datasource.Resolve(opt.URI, opt.Sources)
	if err != nil {
		return Result{}, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "probe: open")
	}
	defer rc.Close()

	raw, err := csv.NewParser(csv.Options{HasHeader: true, Comma: opt.Comma, MaxRows: opt.MaxRows}).Parse(rc)
	if err != nil {
		return Result{}, errors.Wrap(err, "probe: parse")
	}

	inferred := schema.Infer(raw.Header, raw.Rows)
	res := Result{Rows: len(raw.Rows), Columns: make([]Column, len(inferred))}
	for i, c := range inferred {
		col := Column{Name: c.Name, Type: c.Type}
		for _, r := range raw.Rows {
			s, ok := r[c.Name].(string)
			if !ok {
				col.Nulls++
				continue
			}
			if col.Sample == "" {
				col.Sample = s
			}
		}
		res.Columns[i] = col
	}

	res.Source = config.Source{URI: opt.URI}
	if name, ok := matchBuiltin(inferred); ok {
		res.Source.Schema = name
	} else {
		res.Source.Columns = inferred
	}
	return res, nil
}

// JSON renders the suggested source as indented JSON.
func (r Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Source, "", "  ")
}

func matchBuiltin(s table.Schema) (string, bool) {
	for _, name := range []string{"movies", "ratings"} {
		if b, ok := schema.Builtin(name); ok && b.Equal(s) {
			return name, true
		}
	}
	return "", false
}
