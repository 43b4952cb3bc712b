package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"movieetl/internal/storage"
	"movieetl/internal/storage/sqltier"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, Config{DSN: cfg.DSN, Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	})
}

// NewRepository opens the database at cfg.DSN, creating the parent directory
// of plain file paths, and returns a tier store over it.
func NewRepository(ctx context.Context, cfg Config) (*sqltier.Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}
	if isPlainPath(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.Wrap(err, "sqlite: create data directory")
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	// :memory: databases are private to a connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite: ping")
	}
	if !strings.Contains(dsn, ":memory:") {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "sqlite: set journal mode")
		}
	}

	store, err := sqltier.Open(ctx, db, Dialect{}, storage.Config{Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func isPlainPath(dsn string) bool {
	return !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, ":memory:")
}
