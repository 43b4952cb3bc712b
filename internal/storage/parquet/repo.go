// Package parquet implements the tier store as versioned Parquet files with a
// JSON commit log per location, written through Apache Arrow:
//
//	<root>/<tier>/<name>/part-00001.parquet
//	<root>/<tier>/<name>/_commits.json
//
// A write lands a new part file and then atomically replaces the commit log;
// readers follow the latest commit. Earlier parts stay on disk as history.
package parquet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

const commitLog = "_commits.json"

func init() {
	storage.Register("parquet", func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(cfg.Root)
	})
}

// commitEntry is the on-disk form of a storage.Commit.
type commitEntry struct {
	Version   int64        `json:"version"`
	RunID     string       `json:"run_id"`
	Mode      string       `json:"mode"`
	Rows      int64        `json:"rows"`
	Schema    table.Schema `json:"schema"`
	Checksum  string       `json:"checksum"`
	WrittenAt time.Time    `json:"written_at"`
	File      string       `json:"file"`
}

// Repository is a filesystem-backed storage.Repository.
type Repository struct {
	root string
	mem  memory.Allocator
	now  func() time.Time

	// mu serialises writers within the process.
	mu sync.Mutex
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository returns a store rooted at root, creating it when missing.
func NewRepository(root string) (*Repository, error) {
	if root == "" {
		return nil, errors.New("parquet: root directory must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "parquet: create root")
	}
	return &Repository{root: root, mem: memory.NewGoAllocator(), now: time.Now}, nil
}

func (r *Repository) dir(loc storage.Location) string {
	return filepath.Join(r.root, loc.Tier, loc.Name)
}

// Overwrite implements storage.Repository.
func (r *Repository) Overwrite(ctx context.Context, loc storage.Location, t *table.Table, opt storage.WriteOptions) (storage.Commit, error) {
	if err := loc.Validate(); err != nil {
		return storage.Commit{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readLog(loc)
	if err != nil {
		return storage.Commit{}, err
	}
	var prev commitEntry
	if n := len(entries); n > 0 {
		prev = entries[n-1]
	}
	target, err := storage.ResolveSchema(prev.Schema, t.Schema(), opt.Mode)
	if err != nil {
		return storage.Commit{}, err
	}
	data := storage.Conform(t, target)

	if err := ctx.Err(); err != nil {
		return storage.Commit{}, err
	}
	dir := r.dir(loc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "parquet: create %s", loc)
	}
	entry := commitEntry{
		Version:   prev.Version + 1,
		RunID:     opt.RunID,
		Mode:      opt.Mode.String(),
		Rows:      int64(data.Len()),
		Schema:    target,
		Checksum:  storage.Checksum(data),
		WrittenAt: r.now().UTC(),
	}
	entry.File = fmt.Sprintf("part-%05d.parquet", entry.Version)
	if err := r.writeFile(filepath.Join(dir, entry.File), data); err != nil {
		return storage.Commit{}, errors.Wrapf(err, "parquet: write %s", loc)
	}
	if err := r.writeLog(loc, append(entries, entry)); err != nil {
		return storage.Commit{}, err
	}
	log.Debugf("parquet: wrote %s version=%d rows=%d mode=%s", loc, entry.Version, entry.Rows, entry.Mode)
	return toCommit(loc, entry)
}

func (r *Repository) writeFile(path string, t *table.Table) error {
	sc, err := arrowSchema(t.Schema())
	if err != nil {
		return err
	}
	rec, err := buildRecord(r.mem, sc, t)
	if err != nil {
		return err
	}
	defer rec.Release()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	props := pq.NewWriterProperties(pq.WithCompression(compress.Codecs.Snappy), pq.WithAllocator(r.mem))
	fw, err := pqarrow.NewFileWriter(sc, tmp, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}
	_ = tmp.Close()
	return os.Rename(tmp.Name(), path)
}

// Load implements storage.Repository.
func (r *Repository) Load(ctx context.Context, loc storage.Location) (*table.Table, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	entries, err := r.readLog(loc)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(storage.ErrNotFound, "%s", loc)
	}
	last := entries[len(entries)-1]

	f, err := os.Open(filepath.Join(r.dir(loc), last.File))
	if err != nil {
		return nil, errors.Wrapf(err, "parquet: open %s", loc)
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(ctx, f, pq.NewReaderProperties(r.mem), pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, errors.Wrapf(err, "parquet: read %s", loc)
	}
	defer tbl.Release()

	if int(tbl.NumCols()) != len(last.Schema) {
		return nil, errors.Errorf("parquet: %s has %d columns, commit declares %d", loc, tbl.NumCols(), len(last.Schema))
	}
	rows := make([]records.Record, tbl.NumRows())
	for i := range rows {
		rows[i] = make(records.Record, len(last.Schema))
	}
	for i, col := range last.Schema {
		offset := 0
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			if err := readColumn(chunk, col, rows, offset); err != nil {
				return nil, err
			}
			offset += chunk.Len()
		}
	}
	return table.New(last.Schema, rows), nil
}

// History implements storage.Repository.
func (r *Repository) History(_ context.Context, loc storage.Location) ([]storage.Commit, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	entries, err := r.readLog(loc)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Commit, 0, len(entries))
	for _, e := range entries {
		c, err := toCommit(loc, e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Close is a no-op.
func (r *Repository) Close() error { return nil }

func (r *Repository) readLog(loc storage.Location) ([]commitEntry, error) {
	b, err := os.ReadFile(filepath.Join(r.dir(loc), commitLog))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parquet: read commit log of %s", loc)
	}
	var entries []commitEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, errors.Wrapf(err, "parquet: decode commit log of %s", loc)
	}
	return entries, nil
}

func (r *Repository) writeLog(loc storage.Location, entries []commitEntry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "parquet: encode commit log")
	}
	path := filepath.Join(r.dir(loc), commitLog)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "parquet: write commit log of %s", loc)
	}
	return errors.Wrapf(os.Rename(tmp, path), "parquet: commit %s", loc)
}

func toCommit(loc storage.Location, e commitEntry) (storage.Commit, error) {
	mode, err := storage.ParseSchemaMode(e.Mode)
	if err != nil {
		return storage.Commit{}, err
	}
	return storage.Commit{
		Location:  loc,
		Version:   e.Version,
		RunID:     e.RunID,
		Mode:      mode,
		Rows:      e.Rows,
		Schema:    e.Schema,
		Checksum:  e.Checksum,
		WrittenAt: e.WrittenAt,
	}, nil
}
