// Package quality computes best-effort data quality checks after a run. Checks
// only observe: a failing check becomes a warning in the report and never an
// error for the caller.
package quality

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"movieetl/internal/aggregate"
	"movieetl/internal/bitmap"
	"movieetl/internal/metrics"
	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// Tier locations read by the reporter.
var (
	BronzeMovies  = storage.Location{Tier: storage.Bronze, Name: "movies"}
	BronzeRatings = storage.Location{Tier: storage.Bronze, Name: "ratings"}
	GoldRatings   = storage.Location{Tier: storage.Gold, Name: "movie_ratings"}
)

// Reader loads a persisted dataset.
type Reader interface {
	Read(ctx context.Context, loc storage.Location) (*table.Table, error)
}

// Inputs are the in-memory datasets of the run. Any of them may be nil, in
// which case the checks that need it are skipped; the standalone quality
// command only has persisted tiers.
type Inputs struct {
	RawMovies    *table.Table
	RawRatings   *table.Table
	CleanMovies  *table.Table
	CleanRatings *table.Table

	// MaxTotalRatings is the gold threshold; zero skips the threshold check.
	MaxTotalRatings int64
}

// Check is one named measurement. Flagged marks values that indicate a
// problem.
type Check struct {
	Name    string
	Value   float64
	Flagged bool
}

// Report collects checks and the warnings of checks that could not run.
type Report struct {
	Checks   []Check
	Warnings []string
}

// Value returns the value of the named check.
func (r Report) Value(name string) (float64, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

// Flagged reports whether any check is flagged.
func (r Report) Flagged() bool {
	for _, c := range r.Checks {
		if c.Flagged {
			return true
		}
	}
	return false
}

// Reporter runs checks against persisted tiers.
type Reporter struct {
	src Reader
	job string
}

// NewReporter returns a Reporter reading tiers from src.
func NewReporter(src Reader, job string) *Reporter {
	return &Reporter{src: src, job: job}
}

// Run computes every check it can. It never panics and never fails.
func (r *Reporter) Run(ctx context.Context, in Inputs) Report {
	var rep Report
	loaded := map[storage.Location]*table.Table{}

	load := func(loc storage.Location) (*table.Table, error) {
		if t, ok := loaded[loc]; ok {
			return t, nil
		}
		t, err := r.src.Read(ctx, loc)
		if err != nil {
			return nil, err
		}
		loaded[loc] = t
		return t, nil
	}
	run := func(name string, fn func() (float64, bool, error)) {
		defer func() {
			if p := recover(); p != nil {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: panic: %v", name, p))
			}
		}()
		v, flagged, err := fn()
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: %v", name, err))
			return
		}
		rep.Checks = append(rep.Checks, Check{Name: name, Value: v, Flagged: flagged})
	}
	count := func(loc storage.Location) func() (float64, bool, error) {
		return func() (float64, bool, error) {
			t, err := load(loc)
			if err != nil {
				return 0, false, err
			}
			return float64(t.Len()), false, nil
		}
	}

	if in.RawMovies != nil {
		run("raw_movies_rows", rows(in.RawMovies))
	}
	if in.RawRatings != nil {
		run("raw_ratings_rows", rows(in.RawRatings))
	}
	if in.CleanMovies != nil {
		run("clean_movies_rows", rows(in.CleanMovies))
	}
	if in.CleanRatings != nil {
		run("clean_ratings_rows", rows(in.CleanRatings))
	}
	if in.RawMovies != nil && in.CleanMovies != nil {
		run("movies_dropped", delta(in.RawMovies, in.CleanMovies))
	}
	if in.RawRatings != nil && in.CleanRatings != nil {
		run("ratings_dropped", delta(in.RawRatings, in.CleanRatings))
	}

	run("bronze_movies_rows", count(BronzeMovies))
	run("bronze_ratings_rows", count(BronzeRatings))
	run("gold_rows", count(GoldRatings))

	if in.CleanMovies != nil {
		run("bronze_movies_mismatch", func() (float64, bool, error) {
			t, err := load(BronzeMovies)
			if err != nil {
				return 0, false, err
			}
			d := math.Abs(float64(in.CleanMovies.Len() - t.Len()))
			return d, d != 0, nil
		})
	}
	run("orphan_ratings", func() (float64, bool, error) {
		movies, err := load(BronzeMovies)
		if err != nil {
			return 0, false, err
		}
		ratings, err := load(BronzeRatings)
		if err != nil {
			return 0, false, err
		}
		return float64(orphans(movies, ratings)), false, nil
	})
	run("null_ratings", func() (float64, bool, error) {
		t, err := load(BronzeRatings)
		if err != nil {
			return 0, false, err
		}
		n := t.CountWhere(func(rec records.Record) bool { return rec.IsNull("rating") })
		return float64(n), n > 0, nil
	})
	if in.MaxTotalRatings > 0 {
		run("gold_threshold_violations", func() (float64, bool, error) {
			t, err := load(GoldRatings)
			if err != nil {
				return 0, false, err
			}
			n := t.CountWhere(func(rec records.Record) bool {
				v, ok := table.ToInt(rec[aggregate.TotalRating])
				return !ok || v >= in.MaxTotalRatings
			})
			return float64(n), n > 0, nil
		})
	}
	run("gold_order_violations", func() (float64, bool, error) {
		t, err := load(GoldRatings)
		if err != nil {
			return 0, false, err
		}
		n := 0
		vals := t.Values(aggregate.TotalRating)
		for i := 1; i < len(vals); i++ {
			if table.Compare(vals[i-1], vals[i]) < 0 {
				n++
			}
		}
		return float64(n), n > 0, nil
	})

	r.publish(rep)
	return rep
}

func (r *Reporter) publish(rep Report) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("job", r.job).Warnf("quality: publish: panic: %v", p)
		}
	}()
	for _, c := range rep.Checks {
		metrics.SetQuality(r.job, c.Name, c.Value)
		entry := log.WithFields(log.Fields{"job": r.job, "check": c.Name, "value": c.Value})
		if c.Flagged {
			entry.Warn("quality: check flagged")
		} else {
			entry.Info("quality: check")
		}
	}
	for _, w := range rep.Warnings {
		log.WithField("job", r.job).Warnf("quality: skipped %s", w)
	}
}

// orphans counts ratings whose movieId has no movie. The inner join drops
// them without a trace.
func orphans(movies, ratings *table.Table) int {
	known := bitmap.New(0)
	for _, v := range movies.Values(aggregate.JoinKey) {
		if id, ok := table.ToInt(v); ok {
			known.Add(id)
		}
	}
	return ratings.CountWhere(func(rec records.Record) bool {
		id, ok := table.ToInt(rec[aggregate.JoinKey])
		return !ok || !known.Has(id)
	})
}

func rows(t *table.Table) func() (float64, bool, error) {
	return func() (float64, bool, error) { return float64(t.Len()), false, nil }
}

func delta(before, after *table.Table) func() (float64, bool, error) {
	return func() (float64, bool, error) { return float64(before.Len() - after.Len()), false, nil }
}
