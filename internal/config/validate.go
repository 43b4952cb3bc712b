package config

import (
	"fmt"
	"strings"
	"time"

	"movieetl/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// config, e.g. "sources.movies.uri".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without mutating it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and commits",
		})
	}
	issues = append(issues, validateSource("sources.movies", p.Sources.Movies)...)
	issues = append(issues, validateSource("sources.ratings", p.Sources.Ratings)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime, p.Aggregate)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSource(path string, s Source) []Issue {
	var issues []Issue
	uri := strings.TrimSpace(s.URI)
	if uri == "" {
		issues = append(issues, Issue{SeverityError, path + ".uri", "source uri must not be empty"})
	} else if i := strings.Index(uri, "://"); i > 0 {
		switch strings.ToLower(uri[:i]) {
		case "file", "http", "https", "s3":
		default:
			issues = append(issues, Issue{SeverityError, path + ".uri",
				fmt.Sprintf("unsupported scheme %q; use a path, file://, http(s):// or s3://", uri[:i])})
		}
	}

	if s.Schema != "" {
		if _, ok := schema.Builtin(s.Schema); !ok {
			issues = append(issues, Issue{SeverityError, path + ".schema",
				fmt.Sprintf("unknown built-in schema %q", s.Schema)})
		}
		if len(s.Columns) > 0 {
			issues = append(issues, Issue{SeverityWarning, path + ".schema",
				"both schema and columns are set; columns win"})
		}
	}
	seen := map[string]bool{}
	for i, c := range s.Columns {
		cp := fmt.Sprintf("%s.columns[%d]", path, i)
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, Issue{SeverityError, cp + ".name", "column name must not be empty"})
		}
		if seen[c.Name] {
			issues = append(issues, Issue{SeverityError, cp + ".name", fmt.Sprintf("duplicate column %q", c.Name)})
		}
		seen[c.Name] = true
		if !c.Type.Valid() {
			issues = append(issues, Issue{SeverityError, cp + ".type", fmt.Sprintf("unknown type %q", c.Type)})
		}
	}
	if s.Schema == "" && len(s.Columns) == 0 {
		issues = append(issues, Issue{SeverityWarning, path,
			"no declared schema; column types will be inferred from the data"})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	switch strings.TrimSpace(p.Kind) {
	case "csv":
	case "":
		issues = append(issues, Issue{SeverityError, "parser.kind", "parser.kind must not be empty"})
	default:
		issues = append(issues, Issue{SeverityError, "parser.kind", fmt.Sprintf("unsupported parser kind %q", p.Kind)})
	}
	if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{SeverityError, "parser.options.comma", "comma must be a single character"})
	}
	if !p.Options.Bool("has_header", true) {
		issues = append(issues, Issue{SeverityWarning, "parser.options.has_header",
			"inputs without a header get col_N names; movieId, title and rating will be missing"})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "sqlite", "postgres", "mssql", "mysql":
		if strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "storage.db.dsn",
				fmt.Sprintf("%s storage requires a dsn", s.Kind)})
		}
	case "parquet":
		if strings.TrimSpace(s.Root) == "" {
			issues = append(issues, Issue{SeverityError, "storage.root", "parquet storage requires a root directory"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	default:
		issues = append(issues, Issue{SeverityWarning, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind)})
	}
	if s.DB.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "storage.db.batch_size", "batch_size must not be negative"})
	}
	return issues
}

func validateRuntime(r Runtime, a Aggregate) []Issue {
	var issues []Issue
	if r.MaxRows < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.max_rows", "max_rows must not be negative"})
	}
	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			issues = append(issues, Issue{SeverityError, "runtime.time_zone", fmt.Sprintf("unknown time zone %q", r.TimeZone)})
		}
	}
	if a.MaxTotalRatings < 0 {
		issues = append(issues, Issue{SeverityError, "aggregate.max_total_ratings", "max_total_ratings must not be negative"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "nop":
		return nil
	case "prometheus", "prom", "pushgateway", "datadog", "dogstatsd":
		if m.Target == "" {
			return []Issue{{SeverityWarning, "metrics.target",
				fmt.Sprintf("%s backend without target; environment defaults apply", m.Backend)}}
		}
		return nil
	}
	return []Issue{{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", m.Backend)}}
}
