// Package pipeline runs the movie ratings job: load, clean, parse titles,
// persist bronze, reload, aggregate, persist gold and report quality.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/config"
	"movieetl/internal/persist"
	"movieetl/internal/storage"
)

// Session is the execution context of one run. It owns the storage
// repository and is passed explicitly to every step.
type Session struct {
	Pipeline config.Pipeline
	RunID    string
	Location *time.Location

	repo    storage.Repository
	persist *persist.Persister
}

// StorageConfig maps the storage section of a pipeline file to a backend
// configuration.
func StorageConfig(p config.Pipeline) storage.Config {
	return storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DB.DSN,
		Schema:    p.Storage.DB.Schema,
		BatchSize: p.Storage.DB.BatchSize,
		Root:      p.Storage.Root,
	}
}

// Open validates p, resolves its time zone, opens the storage repository and
// assigns a fresh run id. Close must be called when the run ends.
func Open(ctx context.Context, p config.Pipeline) (*Session, error) {
	if issues := config.ValidatePipeline(p); config.HasErrors(issues) {
		msgs := make([]string, 0, len(issues))
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				msgs = append(msgs, iss.Error())
			}
		}
		return nil, errors.Errorf("pipeline: invalid config: %s", strings.Join(msgs, "; "))
	}
	loc, err := p.Location()
	if err != nil {
		return nil, errors.Wrap(err, "pipeline")
	}
	repo, err := storage.New(ctx, StorageConfig(p))
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: open storage")
	}
	runID := uuid.NewString()
	log.WithFields(log.Fields{
		"job":     p.Job,
		"run_id":  runID,
		"storage": p.Storage.Kind,
		"tz":      loc.String(),
	}).Info("pipeline: session opened")
	return &Session{
		Pipeline: p,
		RunID:    runID,
		Location: loc,
		repo:     repo,
		persist:  persist.New(repo, p.Job, runID),
	}, nil
}

// Persister returns the tier writer bound to this run.
func (s *Session) Persister() *persist.Persister { return s.persist }

// Close releases the storage repository.
func (s *Session) Close() error {
	if s == nil || s.repo == nil {
		return nil
	}
	err := s.repo.Close()
	s.repo = nil
	if err != nil {
		return errors.Wrap(err, "pipeline: close storage")
	}
	return nil
}

func (s *Session) String() string {
	return fmt.Sprintf("%s/%s", s.Pipeline.Job, s.RunID)
}
