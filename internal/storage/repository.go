// Package storage defines the tier store contract used by the pipeline and a
// registry of backends keyed by storage kind. Backends register themselves in
// init; importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"movieetl/internal/table"
)

// Tier names.
const (
	Bronze = "bronze"
	Gold   = "gold"
)

// ErrNotFound is returned when a location has never been written.
var ErrNotFound = errors.New("storage: location not found")

// Location addresses a dataset in the store, e.g. bronze/movies.
type Location struct {
	Tier string
	Name string
}

// String returns "tier/name".
func (l Location) String() string { return l.Tier + "/" + l.Name }

// TableName returns the relational table name, "tier_name".
func (l Location) TableName() string { return l.Tier + "_" + l.Name }

// Validate checks that both parts are simple identifiers.
func (l Location) Validate() error {
	for _, part := range []string{l.Tier, l.Name} {
		if part == "" {
			return errors.Errorf("storage: invalid location %q", l.String())
		}
		for _, r := range part {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return errors.Errorf("storage: invalid location %q", l.String())
			}
		}
	}
	return nil
}

// ParseLocation parses "tier/name".
func ParseLocation(s string) (Location, error) {
	tier, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Location{}, errors.Errorf("storage: location %q must be tier/name", s)
	}
	loc := Location{Tier: tier, Name: name}
	return loc, loc.Validate()
}

// SchemaMode controls how a write treats the schema already stored at a
// location.
type SchemaMode int

const (
	// SchemaOverwrite replaces the stored schema with the incoming one.
	SchemaOverwrite SchemaMode = iota
	// SchemaMerge keeps the union of stored and incoming columns. Columns
	// only present in the stored schema are written as NULL.
	SchemaMerge
)

func (m SchemaMode) String() string {
	switch m {
	case SchemaOverwrite:
		return "overwrite"
	case SchemaMerge:
		return "merge"
	}
	return fmt.Sprintf("SchemaMode(%d)", int(m))
}

// ParseSchemaMode is the inverse of SchemaMode.String.
func ParseSchemaMode(s string) (SchemaMode, error) {
	switch s {
	case "overwrite":
		return SchemaOverwrite, nil
	case "merge":
		return SchemaMerge, nil
	}
	return 0, errors.Errorf("storage: unknown schema mode %q", s)
}

// WriteOptions parameterise Overwrite.
type WriteOptions struct {
	Mode  SchemaMode
	RunID string
}

// Commit records one overwrite of a location.
type Commit struct {
	Location  Location
	Version   int64
	RunID     string
	Mode      SchemaMode
	Rows      int64
	Schema    table.Schema
	Checksum  string
	WrittenAt time.Time
}

// Repository is a tier store. Every write fully replaces the contents of a
// location and appends a commit to its history.
type Repository interface {
	// Overwrite replaces the dataset at loc with t. The write is atomic per
	// location: readers see either the previous or the new contents.
	Overwrite(ctx context.Context, loc Location, t *table.Table, opt WriteOptions) (Commit, error)

	// Load returns the latest dataset at loc in write order, or ErrNotFound.
	Load(ctx context.Context, loc Location) (*table.Table, error)

	// History lists the commits of loc, oldest first.
	History(ctx context.Context, loc Location) ([]Commit, error)

	Close() error
}

// Config carries everything a backend factory may need.
type Config struct {
	Kind      string
	DSN       string
	Schema    string
	BatchSize int
	Root      string
}
