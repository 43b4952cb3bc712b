// Package config defines the pipeline file model. Pipeline files are JSON or
// YAML (configs/pipelines/*.json); field names mirror the file structure.
//
// Example (trimmed):
//
//	{
//	  "job": "movie_ratings",
//	  "sources": {
//	    "movies":  { "uri": "data/raw/movies.csv",  "schema": "movies" },
//	    "ratings": { "uri": "s3://bucket/raw/ratings.csv" }
//	  },
//	  "parser":  { "kind": "csv", "options": { "has_header": true } },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:movie.db" } },
//	  "runtime": { "max_rows": 500, "time_zone": "UTC" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"movieetl/internal/table"
)

// Defaults applied by Pipeline.ApplyDefaults.
const (
	DefaultMaxRows         = 500
	DefaultTimeZone        = "UTC"
	DefaultMaxTotalRatings = 50
	DefaultPreviewRows     = 5
	DefaultBatchSize       = 1000
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the pipeline in logs, metrics and commit history.
	Job string `json:"job" yaml:"job"`

	Sources   Sources   `json:"sources" yaml:"sources"`
	Parser    Parser    `json:"parser" yaml:"parser"`
	Storage   Storage   `json:"storage" yaml:"storage"`
	Aggregate Aggregate `json:"aggregate" yaml:"aggregate"`
	Runtime   Runtime   `json:"runtime" yaml:"runtime"`
	Quality   Quality   `json:"quality" yaml:"quality"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
}

// Sources holds the two raw inputs.
type Sources struct {
	Movies  Source `json:"movies" yaml:"movies"`
	Ratings Source `json:"ratings" yaml:"ratings"`
}

// Source identifies one raw input and, optionally, its column types.
type Source struct {
	// URI is a path, file://, http(s):// or s3:// reference.
	URI string `json:"uri" yaml:"uri"`

	// Schema names a built-in declared schema ("movies", "ratings").
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Columns declares column types inline. It wins over Schema. With
	// neither, types are inferred from the data.
	Columns []table.Column `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Parser selects how to parse raw bytes into rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For CSV: has_header (bool),
	// comma (string), trim_space (bool), header_map (object).
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the tier backend.
type Storage struct {
	// Kind is one of sqlite, postgres, mssql, mysql, parquet.
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`

	// Root is the base directory of the parquet backend.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
}

// DBConfig configures the SQL backends.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn" yaml:"dsn"`

	// Schema is an optional database schema prefix for tier tables.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// BatchSize bounds rows per insert statement or copy batch.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

// Aggregate tunes the gold step.
type Aggregate struct {
	// MaxTotalRatings keeps movies with strictly fewer ratings.
	MaxTotalRatings int64 `json:"max_total_ratings" yaml:"max_total_ratings"`
}

// Runtime controls reading and presentation.
type Runtime struct {
	// MaxRows caps data rows read per source.
	MaxRows int `json:"max_rows" yaml:"max_rows"`

	// TimeZone is the IANA zone rating timestamps are converted in.
	TimeZone string `json:"time_zone" yaml:"time_zone"`

	// PreviewRows is the number of rows logged at debug level after each
	// stage. Negative disables previews.
	PreviewRows int `json:"preview_rows" yaml:"preview_rows"`
}

// Quality toggles the post-run report.
type Quality struct {
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// Metrics selects the metrics backend: none, prometheus or datadog.
type Metrics struct {
	Backend string `json:"backend" yaml:"backend"`

	// Target is the Pushgateway URL or DogStatsD address.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// ApplyDefaults fills zero values.
func (p *Pipeline) ApplyDefaults() {
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = "sqlite"
	}
	if p.Storage.DB.BatchSize <= 0 {
		p.Storage.DB.BatchSize = DefaultBatchSize
	}
	if p.Aggregate.MaxTotalRatings == 0 {
		p.Aggregate.MaxTotalRatings = DefaultMaxTotalRatings
	}
	if p.Runtime.MaxRows == 0 {
		p.Runtime.MaxRows = DefaultMaxRows
	}
	if p.Runtime.TimeZone == "" {
		p.Runtime.TimeZone = DefaultTimeZone
	}
	if p.Runtime.PreviewRows == 0 {
		p.Runtime.PreviewRows = DefaultPreviewRows
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
}

// Location resolves Runtime.TimeZone.
func (p Pipeline) Location() (*time.Location, error) {
	tz := p.Runtime.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "config: time zone %q", tz)
	}
	return loc, nil
}

// Load reads a pipeline file. The format follows the extension: .yaml/.yml
// are YAML, everything else is JSON. Defaults are applied.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, errors.Wrap(err, "config: read")
	}
	p, err := Decode(b, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, errors.Wrapf(err, "config: %s", path)
	}
	return p, nil
}

// Decode parses b as JSON or YAML depending on ext and applies defaults.
func Decode(b []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && err != io.EOF {
			return Pipeline{}, errors.Wrap(err, "decode yaml")
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, errors.Wrap(err, "decode json")
		}
	}
	p.ApplyDefaults()
	return p, nil
}

// Options is a small helper to fetch typed values from free-form maps. It
// performs minimal coercion and returns the provided default when a key is
// absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64,
// YAML numbers as int.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if s, ok := o[key].(string); ok && len(s) > 0 {
		return []rune(s)[0]
	}
	return def
}

// StringMap returns the string entries of an object value. Missing keys give
// an empty map. YAML decodes nested mappings as Options, JSON as
// map[string]any.
func (o Options) StringMap(key string) map[string]string {
	var m map[string]any
	switch v := o[key].(type) {
	case map[string]any:
		m = v
	case Options:
		m = v
	}
	res := make(map[string]string, len(m))
	for k, vv := range m {
		if s, ok := vv.(string); ok {
			res[k] = s
		}
	}
	return res
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
