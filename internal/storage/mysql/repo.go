// Package mysql implements the tier store on MySQL using go-sql-driver/mysql.
//
// MySQL commits DDL implicitly, so the DROP/CREATE of a location's table is
// not rolled back when a later step of the write fails; the commit log entry
// is only recorded once the rows are in.
package mysql

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"movieetl/internal/storage"
	"movieetl/internal/storage/sqltier"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string // e.g. "etl:secret@tcp(localhost:3306)/medallion?parseTime=true"
	Schema    string // database name prefix; empty uses the DSN's database
	BatchSize int
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, Config{DSN: cfg.DSN, Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	})
}

// NewRepository validates the DSN, connects and returns a tier store.
func NewRepository(ctx context.Context, cfg Config) (*sqltier.Store, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "mysql: dsn")
	}
	mc.ParseTime = true
	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "mysql: open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "mysql: ping")
	}
	store, err := sqltier.Open(ctx, db, Dialect{}, storage.Config{Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
