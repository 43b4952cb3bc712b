package sqltier

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/ddl"
	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// DefaultBatchSize is used when the configured batch size is not positive.
const DefaultBatchSize = 1000

var commitColumns = []string{"location", "version", "run_id", "mode", "row_count", "schema_json", "checksum", "written_at"}

// Store is a storage.Repository over a *sql.DB.
type Store struct {
	db        *sql.DB
	d         Dialect
	schema    string
	batchSize int
	now       func() time.Time
}

var _ storage.Repository = (*Store)(nil)

// Open wraps db and creates the commit log table when missing. Store owns db
// and closes it in Close.
func Open(ctx context.Context, db *sql.DB, d Dialect, cfg storage.Config) (*Store, error) {
	s := &Store{db: db, d: d, schema: cfg.Schema, batchSize: cfg.BatchSize, now: time.Now}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	text, integer := d.MapType(table.Text), d.MapType(table.Integer)
	td := ddl.TableDef{FQN: s.fqn(CommitsTable), IfNotExists: true}
	for _, c := range commitColumns {
		typ := text
		if c == "version" || c == "row_count" {
			typ = integer
		}
		td.Columns = append(td.Columns, ddl.ColumnDef{Name: c, SQLType: typ})
	}
	stmt, err := d.EnsureTableSQL(td)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, errors.Wrapf(err, "%s: create %s", d.Name(), CommitsTable)
	}
	return s, nil
}

// fqn returns the unquoted, optionally schema-qualified table name.
func (s *Store) fqn(name string) string {
	if s.schema == "" {
		return name
	}
	return s.schema + "." + name
}

func (s *Store) quoted(name string) string { return ddl.QuoteFQN(s.fqn(name), s.d.Quote) }

// Overwrite implements storage.Repository.
func (s *Store) Overwrite(ctx context.Context, loc storage.Location, t *table.Table, opt storage.WriteOptions) (storage.Commit, error) {
	if err := loc.Validate(); err != nil {
		return storage.Commit{}, err
	}
	if t.Schema().Has(OrdinalColumn) {
		return storage.Commit{}, errors.Errorf("%s: column %q is reserved", s.d.Name(), OrdinalColumn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Commit{}, errors.Wrapf(err, "%s: begin tx", s.d.Name())
	}
	commit, err := s.overwrite(ctx, tx, loc, t, opt)
	if err != nil {
		_ = tx.Rollback()
		return storage.Commit{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "%s: commit %s", s.d.Name(), loc)
	}
	log.Debugf("%s: wrote %s version=%d rows=%d mode=%s", s.d.Name(), loc, commit.Version, commit.Rows, commit.Mode)
	return commit, nil
}

func (s *Store) overwrite(ctx context.Context, tx *sql.Tx, loc storage.Location, t *table.Table, opt storage.WriteOptions) (storage.Commit, error) {
	prev, err := latest(ctx, tx, s, loc)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Commit{}, err
	}
	target, err := storage.ResolveSchema(prev.Schema, t.Schema(), opt.Mode)
	if err != nil {
		return storage.Commit{}, err
	}
	data := storage.Conform(t, target)

	fqn := s.quoted(loc.TableName())
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+fqn); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "%s: drop %s", s.d.Name(), loc)
	}
	td := ddl.FromSchema(s.fqn(loc.TableName()), target, s.d.MapType)
	td.Columns = append([]ddl.ColumnDef{{Name: OrdinalColumn, SQLType: s.d.MapType(table.Integer), PrimaryKey: true}}, td.Columns...)
	create, err := ddl.BuildCreateTableSQL(td, s.d.Quote)
	if err != nil {
		return storage.Commit{}, err
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "%s: create %s", s.d.Name(), loc)
	}

	columns := append([]string{OrdinalColumn}, target.Names()...)
	rows := data.Rows()
	in := storage.Stream(ctx, len(rows), func(i int) []any {
		vals := make([]any, len(columns))
		vals[0] = int64(i)
		for j, c := range target {
			vals[j+1] = s.d.Encode(rows[i][c.Name], c.Type)
		}
		return vals
	})
	batch := s.batchSize
	if limit := s.d.MaxRowsPerInsert(len(columns)); limit > 0 && limit < batch {
		batch = limit
	}
	copyFn := func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
		return s.d.CopyRows(ctx, tx, fqn, cols, chunk)
	}
	if _, err := storage.LoadBatches(ctx, columns, in, batch, copyFn); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "%s: load %s", s.d.Name(), loc)
	}

	commit := storage.Commit{
		Location:  loc,
		Version:   prev.Version + 1,
		RunID:     opt.RunID,
		Mode:      opt.Mode,
		Rows:      int64(data.Len()),
		Schema:    target,
		Checksum:  storage.Checksum(data),
		WrittenAt: s.now().UTC(),
	}
	if err := insertCommit(ctx, tx, s, commit); err != nil {
		return storage.Commit{}, err
	}
	return commit, nil
}

// Load implements storage.Repository.
func (s *Store) Load(ctx context.Context, loc storage.Location) (*table.Table, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	c, err := latest(ctx, s.db, s, loc)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoteAll(s.d, c.Schema.Names()), ", "), s.quoted(loc.TableName()), s.d.Quote(OrdinalColumn))
	rs, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: select %s", s.d.Name(), loc)
	}
	defer rs.Close()

	out := make([]records.Record, 0, c.Rows)
	vals := make([]any, len(c.Schema))
	ptrs := make([]any, len(c.Schema))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rs.Next() {
		if err := rs.Scan(ptrs...); err != nil {
			return nil, errors.Wrapf(err, "%s: scan %s", s.d.Name(), loc)
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
		return nil, errors.Wrapf(err, "%s: read %s", s.d.Name(), loc)
	}
	return table.New(c.Schema, out), nil
}

// History implements storage.Repository.
func (s *Store) History(ctx context.Context, loc storage.Location) ([]storage.Commit, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return commits(ctx, s.db, s, loc, false)
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func latest(ctx context.Context, q querier, s *Store, loc storage.Location) (storage.Commit, error) {
	cs, err := commits(ctx, q, s, loc, true)
	if err != nil {
		return storage.Commit{}, err
	}
	if len(cs) == 0 {
		return storage.Commit{}, errors.Wrapf(storage.ErrNotFound, "%s", loc)
	}
	return cs[0], nil
}

func commits(ctx context.Context, q querier, s *Store, loc storage.Location, newestFirst bool) ([]storage.Commit, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s %s",
		strings.Join(quoteAll(s.d, commitColumns), ", "), s.quoted(CommitsTable),
		s.d.Quote("location"), s.d.Placeholder(1), s.d.Quote("version"), order)
	rs, err := q.QueryContext(ctx, stmt, loc.String())
	if err != nil {
		return nil, errors.Wrapf(err, "%s: query commits", s.d.Name())
	}
	defer rs.Close()

	var out []storage.Commit
	for rs.Next() {
		var (
			location, runID, mode, schemaJSON, checksum, writtenAt string
			version, rowCount                                      int64
		)
		if err := rs.Scan(&location, &version, &runID, &mode, &rowCount, &schemaJSON, &checksum, &writtenAt); err != nil {
			return nil, errors.Wrapf(err, "%s: scan commit", s.d.Name())
		}
		c := storage.Commit{Location: loc, Version: version, RunID: runID, Rows: rowCount, Checksum: checksum}
		if c.Mode, err = storage.ParseSchemaMode(mode); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(schemaJSON), &c.Schema); err != nil {
			return nil, errors.Wrapf(err, "%s: commit %d schema", loc, version)
		}
		if c.WrittenAt, err = time.Parse(time.RFC3339Nano, writtenAt); err != nil {
			return nil, errors.Wrapf(err, "%s: commit %d timestamp", loc, version)
		}
		out = append(out, c)
		if newestFirst {
			break
		}
	}
	return out, errors.Wrapf(rs.Err(), "%s: read commits", s.d.Name())
}

func insertCommit(ctx context.Context, q querier, s *Store, c storage.Commit) error {
	schemaJSON, err := json.Marshal(c.Schema)
	if err != nil {
		return errors.Wrap(err, "encode schema")
	}
	stmt := insertSQL(s.d, s.quoted(CommitsTable), commitColumns, 1)
	_, err = q.ExecContext(ctx, stmt,
		c.Location.String(), c.Version, c.RunID, c.Mode.String(), c.Rows,
		string(schemaJSON), c.Checksum, c.WrittenAt.Format(time.RFC3339Nano))
	return errors.Wrapf(err, "%s: insert commit", s.d.Name())
}
