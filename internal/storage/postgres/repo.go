// Package postgres implements the tier store on PostgreSQL using pgx v5.
// Rows are streamed with COPY inside the write transaction and lists map to
// native TEXT[] columns.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/ddl"
	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

const (
	ordinalColumn    = "_ordinal"
	commitsTable     = "etl_commits"
	defaultBatchSize = 5000
)

var commitColumns = []string{"location", "version", "run_id", "mode", "row_count", "schema_json", "checksum", "written_at"}

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	Schema    string // optional schema for tier tables, e.g. "medallion"
	BatchSize int    // rows per COPY call
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
	now  func() time.Time
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, Config{DSN: cfg.DSN, Schema: cfg.Schema, BatchSize: cfg.BatchSize})
	})
}

// NewRepository connects and creates the commit log table when missing.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: pgxpool")
	}
	r := &Repository{pool: pool, cfg: cfg, now: time.Now}

	td := ddl.TableDef{FQN: r.fqn(commitsTable), IfNotExists: true}
	for _, c := range commitColumns {
		typ := "TEXT"
		if c == "version" || c == "row_count" {
			typ = "BIGINT"
		}
		td.Columns = append(td.Columns, ddl.ColumnDef{Name: c, SQLType: typ})
	}
	stmt, err := ddl.BuildCreateTableSQL(td, pgIdent)
	if err == nil {
		_, err = pool.Exec(ctx, stmt)
	}
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(describe(err), "postgres: create commits table")
	}
	return r, nil
}

// MapType maps logical types into Postgres column types.
func MapType(t table.Type) string {
	switch t {
	case table.Integer:
		return "BIGINT"
	case table.Real:
		return "DOUBLE PRECISION"
	case table.Boolean:
		return "BOOLEAN"
	case table.Date:
		return "DATE"
	case table.Timestamp:
		return "TIMESTAMPTZ"
	case table.TextList:
		return "TEXT[]"
	default:
		return "TEXT"
	}
}

func (r *Repository) fqn(name string) string {
	if r.cfg.Schema == "" {
		return name
	}
	return r.cfg.Schema + "." + name
}

// Overwrite implements storage.Repository.
func (r *Repository) Overwrite(ctx context.Context, loc storage.Location, t *table.Table, opt storage.WriteOptions) (storage.Commit, error) {
	if err := loc.Validate(); err != nil {
		return storage.Commit{}, err
	}
	if t.Schema().Has(ordinalColumn) {
		return storage.Commit{}, errors.Errorf("postgres: column %q is reserved", ordinalColumn)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storage.Commit{}, errors.Wrap(err, "postgres: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prev, err := r.latest(ctx, tx, loc)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Commit{}, err
	}
	target, err := storage.ResolveSchema(prev.Schema, t.Schema(), opt.Mode)
	if err != nil {
		return storage.Commit{}, err
	}
	data := storage.Conform(t, target)

	name := r.fqn(loc.TableName())
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgFQN(name)); err != nil {
		return storage.Commit{}, errors.Wrapf(describe(err), "postgres: drop %s", loc)
	}
	td := ddl.FromSchema(name, target, MapType)
	td.Columns = append([]ddl.ColumnDef{{Name: ordinalColumn, SQLType: "BIGINT", PrimaryKey: true}}, td.Columns...)
	create, err := ddl.BuildCreateTableSQL(td, pgIdent)
	if err != nil {
		return storage.Commit{}, err
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return storage.Commit{}, errors.Wrapf(describe(err), "postgres: create %s", loc)
	}

	columns := append([]string{ordinalColumn}, target.Names()...)
	rows := data.Rows()
	in := storage.Stream(ctx, len(rows), func(i int) []any {
		vals := make([]any, len(columns))
		vals[0] = int64(i)
		for j, c := range target {
			vals[j+1] = rows[i][c.Name]
		}
		return vals
	})
	copyFn := func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
		n, err := tx.CopyFrom(ctx, splitFQN(name), cols, pgx.CopyFromRows(chunk))
		return n, describe(err)
	}
	if _, err := storage.LoadBatches(ctx, columns, in, r.cfg.BatchSize, copyFn); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "postgres: copy %s", loc)
	}

	commit := storage.Commit{
		Location:  loc,
		Version:   prev.Version + 1,
		RunID:     opt.RunID,
		Mode:      opt.Mode,
		Rows:      int64(data.Len()),
		Schema:    target,
		Checksum:  storage.Checksum(data),
		WrittenAt: r.now().UTC(),
	}
	schemaJSON, err := json.Marshal(commit.Schema)
	if err != nil {
		return storage.Commit{}, errors.Wrap(err, "postgres: encode schema")
	}
	if _, err := tx.Exec(ctx, insertCommitSQL(r.fqn(commitsTable)),
		loc.String(), commit.Version, commit.RunID, commit.Mode.String(), commit.Rows,
		string(schemaJSON), commit.Checksum, commit.WrittenAt.Format(time.RFC3339Nano)); err != nil {
		return storage.Commit{}, errors.Wrap(describe(err), "postgres: insert commit")
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.Commit{}, errors.Wrapf(describe(err), "postgres: commit %s", loc)
	}
	log.Debugf("postgres: wrote %s version=%d rows=%d mode=%s", loc, commit.Version, commit.Rows, commit.Mode)
	return commit, nil
}

// Load implements storage.Repository.
func (r *Repository) Load(ctx context.Context, loc storage.Location) (*table.Table, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	c, err := r.latest(ctx, r.pool, loc)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(mapIdent(c.Schema.Names()), ", "), pgFQN(r.fqn(loc.TableName())), pgIdent(ordinalColumn))
	rs, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(describe(err), "postgres: select %s", loc)
	}
	defer rs.Close()

	out := make([]records.Record, 0, c.Rows)
	for rs.Next() {
		vals, err := rs.Values()
		if err != nil {
			return nil, errors.Wrapf(err, "postgres: scan %s", loc)
		}
		rec := make(records.Record, len(c.Schema))
		for i, col := range c.Schema {
			v, err := storage.DecodeValue(vals[i], col.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: column %s", loc, col.Name)
			}
			rec[col.Name] = v
		}
		out = append(out, rec)
	}
	if err := rs.Err(); err != nil {
		return nil, errors.Wrapf(describe(err), "postgres: read %s", loc)
	}
	return table.New(c.Schema, out), nil
}

// History implements storage.Repository.
func (r *Repository) History(ctx context.Context, loc storage.Location) ([]storage.Commit, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return r.commits(ctx, r.pool, loc, false)
}

// Close closes the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) latest(ctx context.Context, q querier, loc storage.Location) (storage.Commit, error) {
	cs, err := r.commits(ctx, q, loc, true)
	if err != nil {
		return storage.Commit{}, err
	}
	if len(cs) == 0 {
		return storage.Commit{}, errors.Wrapf(storage.ErrNotFound, "%s", loc)
	}
	return cs[0], nil
}

func (r *Repository) commits(ctx context.Context, q querier, loc storage.Location, newestOnly bool) ([]storage.Commit, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE location = $1 ORDER BY version",
		strings.Join(mapIdent(commitColumns), ", "), pgFQN(r.fqn(commitsTable)))
	if newestOnly {
		stmt += " DESC LIMIT 1"
	}
	rs, err := q.Query(ctx, stmt, loc.String())
	if err != nil {
		return nil, errors.Wrap(describe(err), "postgres: query commits")
	}
	defer rs.Close()

	var out []storage.Commit
	for rs.Next() {
		var location, runID, mode, schemaJSON, checksum, writtenAt string
		c := storage.Commit{Location: loc}
		if err := rs.Scan(&location, &c.Version, &runID, &mode, &c.Rows, &schemaJSON, &checksum, &writtenAt); err != nil {
			return nil, errors.Wrap(err, "postgres: scan commit")
		}
		c.RunID, c.Checksum = runID, checksum
		if c.Mode, err = storage.ParseSchemaMode(mode); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(schemaJSON), &c.Schema); err != nil {
			return nil, errors.Wrapf(err, "%s: commit %d schema", loc, c.Version)
		}
		if c.WrittenAt, err = time.Parse(time.RFC3339Nano, writtenAt); err != nil {
			return nil, errors.Wrapf(err, "%s: commit %d timestamp", loc, c.Version)
		}
		out = append(out, c)
	}
	return out, errors.Wrap(describe(rs.Err()), "postgres: read commits")
}

func insertCommitSQL(fqn string) string {
	ph := make([]string, len(commitColumns))
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(fqn), strings.Join(mapIdent(commitColumns), ", "), strings.Join(ph, ", "))
}

// describe surfaces the server detail of a *pgconn.PgError.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return errors.Errorf("%s: %s (%s)", pgErr.Message, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name.
func pgFQN(name string) string { return ddl.QuoteFQN(name, pgIdent) }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// splitFQN converts "schema.table" into a pgx.Identifier.
func splitFQN(fqn string) pgx.Identifier {
	return pgx.Identifier(strings.Split(fqn, "."))
}
