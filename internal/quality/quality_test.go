package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/metrics"
	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

type fakeReader struct {
	tables map[storage.Location]*table.Table
	reads  int
	panic  bool
}

func (f *fakeReader) Read(_ context.Context, loc storage.Location) (*table.Table, error) {
	f.reads++
	if f.panic {
		panic("disk on fire")
	}
	t, ok := f.tables[loc]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func ints(col string, vals ...any) *table.Table {
	rows := make([]records.Record, len(vals))
	for i, v := range vals {
		rows[i] = records.Record{col: v}
	}
	return table.New(table.Schema{{Name: col, Type: table.Integer}}, rows)
}

func ratingsWith(vals ...any) *table.Table {
	rows := make([]records.Record, len(vals))
	for i, v := range vals {
		rows[i] = records.Record{"rating": v}
	}
	return table.New(table.Schema{{Name: "rating", Type: table.Real}}, rows)
}

func TestRunComputesChecks(t *testing.T) {
	t.Parallel()

	src := &fakeReader{tables: map[storage.Location]*table.Table{
		BronzeMovies:  ints("movieId", int64(1), int64(2)),
		BronzeRatings: ratingsWith(4.0, nil, 3.5),
		GoldRatings:   ints("totalRating", int64(3), int64(3), int64(1)),
	}}
	in := Inputs{
		RawMovies:       ints("movieId", int64(1), int64(2), int64(3)),
		CleanMovies:     ints("movieId", int64(1), int64(2)),
		RawRatings:      ratingsWith(4.0, 3.5, 0.0, nil),
		CleanRatings:    ratingsWith(4.0, 3.5),
		MaxTotalRatings: 50,
	}

	rep := NewReporter(src, "movie_ratings").Run(context.Background(), in)
	require.Empty(t, rep.Warnings)

	want := map[string]float64{
		"raw_movies_rows":           3,
		"clean_movies_rows":         2,
		"movies_dropped":            1,
		"ratings_dropped":           2,
		"bronze_movies_rows":        2,
		"bronze_ratings_rows":       3,
		"gold_rows":                 3,
		"bronze_movies_mismatch":    0,
		"null_ratings":              1,
		"gold_threshold_violations": 0,
		"gold_order_violations":     0,
	}
	for name, v := range want {
		got, ok := rep.Value(name)
		require.True(t, ok, name)
		assert.Equal(t, v, got, name)
	}
	assert.True(t, rep.Flagged(), "null rating should flag")
	assert.Equal(t, 3, src.reads, "each location is read once")
}

func TestRunFlagsGoldViolations(t *testing.T) {
	t.Parallel()

	src := &fakeReader{tables: map[storage.Location]*table.Table{
		BronzeMovies:  ints("movieId"),
		BronzeRatings: ratingsWith(),
		GoldRatings:   ints("totalRating", int64(1), int64(60), int64(2)),
	}}
	rep := NewReporter(src, "j").Run(context.Background(), Inputs{MaxTotalRatings: 50})

	v, _ := rep.Value("gold_threshold_violations")
	assert.Equal(t, 1.0, v)
	v, _ = rep.Value("gold_order_violations")
	assert.Equal(t, 1.0, v)
	_, ok := rep.Value("raw_movies_rows")
	assert.False(t, ok)
}

func TestRunSurvivesMissingTiers(t *testing.T) {
	t.Parallel()

	rep := NewReporter(&fakeReader{}, "j").Run(context.Background(), Inputs{RawMovies: ints("movieId", int64(1))})

	v, ok := rep.Value("raw_movies_rows")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.NotEmpty(t, rep.Warnings)
	for _, w := range rep.Warnings {
		assert.Contains(t, w, storage.ErrNotFound.Error())
	}
}

func TestRunRecoversPanics(t *testing.T) {
	t.Parallel()

	var rep Report
	assert.NotPanics(t, func() {
		rep = NewReporter(&fakeReader{panic: true}, "j").Run(context.Background(), Inputs{})
	})
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "panic: disk on fire")
	assert.False(t, rep.Flagged())
}

type panickingBackend struct{}

func (panickingBackend) IncCounter(string, float64, metrics.Labels)       {}
func (panickingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (panickingBackend) SetGauge(string, float64, metrics.Labels)         { panic("gauge exploded") }
func (panickingBackend) Flush() error                                     { return nil }

// Not parallel: swaps the process-wide metrics backend.
func TestRunSurvivesPanickingMetricsBackend(t *testing.T) {
	metrics.SetBackend(panickingBackend{})
	t.Cleanup(func() { metrics.SetBackend(nil) })

	src := &fakeReader{tables: map[storage.Location]*table.Table{
		GoldRatings: ints("totalRating", int64(3), int64(1)),
	}}
	var rep Report
	require.NotPanics(t, func() {
		rep = NewReporter(src, "movie_ratings").Run(context.Background(), Inputs{})
	})
	v, ok := rep.Value("gold_rows")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestReportValueMissing(t *testing.T) {
	t.Parallel()

	_, ok := Report{}.Value("nope")
	assert.False(t, ok)
}

func TestOrphanRatings(t *testing.T) {
	t.Parallel()

	ratings := table.New(
		table.Schema{{Name: "movieId", Type: table.Integer}, {Name: "rating", Type: table.Real}},
		[]records.Record{
			{"movieId": int64(1), "rating": 4.0},
			{"movieId": int64(99), "rating": 4.0},
			{"movieId": int64(2), "rating": 3.0},
		},
	)
	src := &fakeReader{tables: map[storage.Location]*table.Table{
		BronzeMovies:  ints("movieId", int64(1), int64(2), int64(3)),
		BronzeRatings: ratings,
	}}
	rep := NewReporter(src, "j").Run(context.Background(), Inputs{})

	v, ok := rep.Value("orphan_ratings")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}
