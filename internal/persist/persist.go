// Package persist writes and reads tier datasets through a storage
// repository, stamping every commit with the run id and reporting row counts.
package persist

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/metrics"
	"movieetl/internal/storage"
	"movieetl/internal/table"
)

// Persister is bound to one run of one job.
type Persister struct {
	repo  storage.Repository
	job   string
	runID string
}

// New returns a Persister over repo.
func New(repo storage.Repository, job, runID string) *Persister {
	return &Persister{repo: repo, job: job, runID: runID}
}

// Write fully replaces the dataset at loc with t.
func (p *Persister) Write(ctx context.Context, loc storage.Location, t *table.Table, mode storage.SchemaMode) (storage.Commit, error) {
	start := time.Now()
	c, err := p.repo.Overwrite(ctx, loc, t, storage.WriteOptions{Mode: mode, RunID: p.runID})
	if err != nil {
		return storage.Commit{}, errors.Wrapf(err, "persist: write %s", loc)
	}
	metrics.RecordRows(p.job, loc.String(), "written", c.Rows)
	metrics.RecordCommit(p.job, loc.String())
	log.WithFields(log.Fields{
		"location": loc.String(),
		"version":  c.Version,
		"rows":     c.Rows,
		"mode":     mode.String(),
		"checksum": c.Checksum,
		"took":     time.Since(start).Truncate(time.Millisecond),
	}).Info("persist: committed")
	return c, nil
}

// Read loads the latest dataset at loc in write order.
func (p *Persister) Read(ctx context.Context, loc storage.Location) (*table.Table, error) {
	t, err := p.repo.Load(ctx, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "persist: read %s", loc)
	}
	metrics.RecordRows(p.job, loc.String(), "reloaded", int64(t.Len()))
	log.Debugf("persist: read %s rows=%d", loc, t.Len())
	return t, nil
}

// History returns the commits of loc, oldest first.
func (p *Persister) History(ctx context.Context, loc storage.Location) ([]storage.Commit, error) {
	cs, err := p.repo.History(ctx, loc)
	return cs, errors.Wrapf(err, "persist: history %s", loc)
}
