package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/aggregate"
	"movieetl/internal/cleaner"
	"movieetl/internal/loader"
	"movieetl/internal/metrics"
	"movieetl/internal/quality"
	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/internal/titles"
	"movieetl/pkg/records"
)

// Step names, in execution order.
const (
	StepLoad         = "load"
	StepClean        = "clean"
	StepParseTitles  = "parse_titles"
	StepWriteBronze  = "write_bronze"
	StepReloadBronze = "reload_bronze"
	StepAggregate    = "aggregate"
	StepWriteGold    = "write_gold"
	StepQuality      = "quality"
)

// StepResult describes one executed step.
type StepResult struct {
	Name     string
	Summary  string
	Err      error
	Duration time.Duration
}

// Result is the outcome of a run. Steps lists every step that started; a
// failed run ends with the failing step.
type Result struct {
	RunID   string
	Steps   []StepResult
	Commits []storage.Commit
	Quality *quality.Report
}

// Gold returns the gold commit of the run, if it got that far.
func (r Result) Gold() (storage.Commit, bool) {
	for _, c := range r.Commits {
		if c.Location == quality.GoldRatings {
			return c, true
		}
	}
	return storage.Commit{}, false
}

type runner struct {
	s   *Session
	res Result
}

// step runs fn, records its metrics and appends its result.
func (r *runner) step(name string, fn func() (string, error)) error {
	start := time.Now()
	summary, err := fn()
	d := time.Since(start)
	metrics.RecordStep(r.s.Pipeline.Job, name, err, d)
	r.res.Steps = append(r.res.Steps, StepResult{Name: name, Summary: summary, Err: err, Duration: d})
	if err != nil {
		log.Errorf("pipeline: step=%s failed after %s: %v", name, d.Truncate(time.Millisecond), err)
		return err
	}
	log.Printf("pipeline: step=%s %s (%s)", name, summary, d.Truncate(time.Millisecond))
	return nil
}

func (r *runner) preview(label string, t *table.Table) {
	n := r.s.Pipeline.Runtime.PreviewRows
	if n <= 0 || t == nil || !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	log.Debugf("pipeline: preview %s (%d of %d rows)\n%s", label, min(n, t.Len()), t.Len(), t.Preview(n))
}

// Run executes the job once. Source and tier write failures stop the run and
// are returned; quality problems only show up in Result.Quality. Rerunning is
// safe because every tier write replaces the previous contents.
func Run(ctx context.Context, s *Session) (Result, error) {
	r := &runner{s: s, res: Result{RunID: s.RunID}}
	p := s.Pipeline
	w := s.Persister()

	var raw loader.Result
	if err := r.step(StepLoad, func() (string, error) {
		var err error
		raw, err = loader.Load(ctx, p.Sources, loader.FromPipeline(p))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("movies=%d ratings=%d", raw.Movies.Table.Len(), raw.Ratings.Table.Len()), nil
	}); err != nil {
		return r.res, err
	}

	var movies, ratings *table.Table
	if err := r.step(StepClean, func() (string, error) {
		var err error
		if movies, err = cleaner.CleanMovies(raw.Movies.Table); err != nil {
			return "", err
		}
		if ratings, err = cleaner.CleanRatings(raw.Ratings.Table, s.Location); err != nil {
			return "", err
		}
		dm := raw.Movies.Table.Len() - movies.Len()
		dr := raw.Ratings.Table.Len() - ratings.Len()
		metrics.RecordRows(p.Job, loader.Movies, "dropped", int64(dm))
		metrics.RecordRows(p.Job, loader.Ratings, "dropped", int64(dr))
		return fmt.Sprintf("movies=%d (-%d) ratings=%d (-%d)", movies.Len(), dm, ratings.Len(), dr), nil
	}); err != nil {
		return r.res, err
	}

	var parsed *table.Table
	if err := r.step(StepParseTitles, func() (string, error) {
		var err error
		parsed, err = titles.Parse(movies)
		if err != nil {
			return "", errors.Wrap(err, "titles")
		}
		years := parsed.CountWhere(func(rec records.Record) bool { return rec["year"] != nil })
		return fmt.Sprintf("movies=%d with_year=%d", parsed.Len(), years), nil
	}); err != nil {
		return r.res, err
	}

	if err := r.step(StepWriteBronze, func() (string, error) {
		mc, err := w.Write(ctx, quality.BronzeMovies, parsed, storage.SchemaMerge)
		if err != nil {
			return "", err
		}
		r.res.Commits = append(r.res.Commits, mc)
		rc, err := w.Write(ctx, quality.BronzeRatings, ratings, storage.SchemaMerge)
		if err != nil {
			return "", err
		}
		r.res.Commits = append(r.res.Commits, rc)
		return fmt.Sprintf("%s v%d rows=%d, %s v%d rows=%d",
			mc.Location, mc.Version, mc.Rows, rc.Location, rc.Version, rc.Rows), nil
	}); err != nil {
		return r.res, err
	}

	var bronzeMovies, bronzeRatings *table.Table
	if err := r.step(StepReloadBronze, func() (string, error) {
		var err error
		if bronzeMovies, err = w.Read(ctx, quality.BronzeMovies); err != nil {
			return "", err
		}
		if bronzeRatings, err = w.Read(ctx, quality.BronzeRatings); err != nil {
			return "", err
		}
		return fmt.Sprintf("movies=%d ratings=%d", bronzeMovies.Len(), bronzeRatings.Len()), nil
	}); err != nil {
		return r.res, err
	}
	r.preview("bronze movies", bronzeMovies)
	r.preview("bronze ratings", bronzeRatings)

	var agg aggregate.Result
	if err := r.step(StepAggregate, func() (string, error) {
		var err error
		agg, err = aggregate.Build(bronzeMovies, bronzeRatings, aggregate.Options{
			MaxTotalRatings: p.Aggregate.MaxTotalRatings,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("joined=%d movies=%d gold=%d", agg.Joined.Len(), agg.Stats.Len(), agg.Gold.Len()), nil
	}); err != nil {
		return r.res, err
	}
	r.preview("joined", agg.Joined)
	r.preview("gold", agg.Gold)

	if err := r.step(StepWriteGold, func() (string, error) {
		c, err := w.Write(ctx, quality.GoldRatings, agg.Gold, storage.SchemaOverwrite)
		if err != nil {
			return "", err
		}
		r.res.Commits = append(r.res.Commits, c)
		return fmt.Sprintf("%s v%d rows=%d checksum=%s", c.Location, c.Version, c.Rows, c.Checksum), nil
	}); err != nil {
		return r.res, err
	}

	if p.Quality.Disabled {
		log.Debugf("pipeline: quality disabled")
		return r.res, nil
	}
	_ = r.step(StepQuality, func() (string, error) {
		rep := quality.NewReporter(w, p.Job).Run(ctx, quality.Inputs{
			RawMovies:       raw.Movies.Table,
			RawRatings:      raw.Ratings.Table,
			CleanMovies:     parsed,
			CleanRatings:    ratings,
			MaxTotalRatings: p.Aggregate.MaxTotalRatings,
		})
		r.res.Quality = &rep
		return summarize(rep), nil
	})
	return r.res, nil
}

// Quality runs the checks that only need persisted tiers.
func Quality(ctx context.Context, s *Session) quality.Report {
	return quality.NewReporter(s.Persister(), s.Pipeline.Job).Run(ctx, quality.Inputs{
		MaxTotalRatings: s.Pipeline.Aggregate.MaxTotalRatings,
	})
}

func summarize(rep quality.Report) string {
	flagged := 0
	for _, c := range rep.Checks {
		if c.Flagged {
			flagged++
		}
	}
	return fmt.Sprintf("checks=%d flagged=%d warnings=%d", len(rep.Checks), flagged, len(rep.Warnings))
}
