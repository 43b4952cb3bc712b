// Package loader reads the raw movies and ratings inputs into typed tables.
// Column types come from the declared schema of a source when it has one and
// are inferred from the rows read otherwise.
package loader

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"movieetl/internal/config"
	"movieetl/internal/datasource"
	"movieetl/internal/metrics"
	"movieetl/internal/parser"
	"movieetl/internal/parser/csv"
	"movieetl/internal/schema"
	"movieetl/internal/table"
	"movieetl/internal/transformer/builtin"
)

// Dataset names used in logs and metrics.
const (
	Movies  = "movies"
	Ratings = "ratings"
)

// Options controls how sources are read.
type Options struct {
	// Job labels metrics.
	Job string

	// MaxRows caps the data rows read per source. Zero reads everything.
	MaxRows int

	Parser  config.Parser
	Sources datasource.Options
}

// FromPipeline builds Options from a pipeline file.
func FromPipeline(p config.Pipeline) Options {
	return Options{
		Job:     p.Job,
		MaxRows: p.Runtime.MaxRows,
		Parser:  p.Parser,
		Sources: datasource.Options{
			HTTPTimeout: 30 * time.Second,
			HTTPRetries: 2,
		},
	}
}

// Dataset is one loaded input.
type Dataset struct {
	Name  string
	Table *table.Table

	// Inferred is true when column types were inferred from the data.
	Inferred bool

	Skipped int
	Ragged  int
}

// Result holds both inputs.
type Result struct {
	Movies  Dataset
	Ratings Dataset
}

// Load reads movies and ratings concurrently. Either failure cancels the other
// read and is returned.
func Load(ctx context.Context, src config.Sources, opt Options) (Result, error) {
	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := LoadOne(gctx, Movies, src.Movies, opt)
		res.Movies = d
		return err
	})
	g.Go(func() error {
		d, err := LoadOne(gctx, Ratings, src.Ratings, opt)
		res.Ratings = d
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// LoadOne reads a single source, parses it and types its columns.
func LoadOne(ctx context.Context, name string, src config.Source, opt Options) (Dataset, error) {
	p, err := newParser(opt)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "loader: %s", name)
	}
	ds, err := datasource.Resolve(src.URI, opt.Sources)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "loader: %s", name)
	}
	rc, err := ds.Open(ctx)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "loader: open %s", name)
	}
	defer rc.Close()

	raw, err := p.Parse(rc)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "loader: parse %s", name)
	}

	declared, inferred := Schema(src, raw)
	typed, err := builtin.Coerce{Schema: declared}.Apply(rawTable(raw))
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "loader: coerce %s", name)
	}

	log.Printf("loader: dataset=%s uri=%s rows=%d skipped=%d ragged=%d inferred=%t",
		name, src.URI, typed.Len(), raw.Skipped, raw.Ragged, inferred)
	metrics.RecordRows(opt.Job, name, "read", int64(typed.Len()))
	metrics.RecordRows(opt.Job, name, "skipped", int64(raw.Skipped))

	return Dataset{
		Name:     name,
		Table:    typed,
		Inferred: inferred,
		Skipped:  raw.Skipped,
		Ragged:   raw.Ragged,
	}, nil
}

// Schema picks the column types for a parsed source: inline columns first,
// then a built-in schema, then inference over the rows read. The second
// result reports whether inference was used.
func Schema(src config.Source, raw parser.Result) (table.Schema, bool) {
	if len(src.Columns) > 0 {
		return table.Schema(src.Columns).Clone(), false
	}
	if s, ok := schema.Builtin(src.Schema); ok {
		return s, false
	}
	return schema.Infer(raw.Header, raw.Rows), true
}

// rawTable wraps parsed rows as text columns in header order.
func rawTable(raw parser.Result) *table.Table {
	s := make(table.Schema, len(raw.Header))
	for i, h := range raw.Header {
		s[i] = table.Column{Name: h, Type: table.Text}
	}
	return table.New(s, raw.Rows)
}

func newParser(opt Options) (parser.Parser, error) {
	switch opt.Parser.Kind {
	case "", "csv":
	default:
		return nil, errors.Errorf("unsupported parser kind %q", opt.Parser.Kind)
	}
	o := opt.Parser.Options
	return csv.NewParser(csv.Options{
		HasHeader: o.Bool("has_header", true),
		Comma:     o.Rune("comma", ','),
		TrimSpace: o.Bool("trim_space", false),
		HeaderMap: o.StringMap("header_map"),
		MaxRows:   opt.MaxRows,
	}), nil
}
