// Package mssql implements the tier store on Microsoft SQL Server using
// go-mssqldb. Rows are loaded with the bulk copy API inside the write
// transaction.
package mssql

import (
	"context"
	"database/sql"

	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/pkg/errors"

	"movieetl/internal/storage"
	"movieetl/internal/storage/sqltier"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	Schema    string // e.g. "dbo"; empty uses the login's default schema
	BatchSize int
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, Config{DSN: cfg.DSN, Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	})
}

// NewRepository validates the DSN, connects and returns a tier store.
func NewRepository(ctx context.Context, cfg Config) (*sqltier.Store, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, errors.Wrap(err, "mssql: dsn")
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "mssql: ping")
	}
	store, err := sqltier.Open(ctx, db, Dialect{}, storage.Config{Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
