// Package aggregate joins cleaned movies with their ratings and attaches
// per-movie rating statistics to every detail row.
package aggregate

import (
	"github.com/pkg/errors"

	"movieetl/internal/cleaner"
	"movieetl/internal/table"
	"movieetl/internal/transformer/builtin"
)

const (
	// JoinKey is the only column movies and ratings are joined on.
	JoinKey = "movieId"

	AvgRating   = "avgRating"
	TotalRating = "totalRating"

	// DefaultMaxTotalRatings excludes movies with this many ratings or more.
	DefaultMaxTotalRatings = 50
)

// Options tunes the gold output.
type Options struct {
	// MaxTotalRatings keeps rows whose movie has strictly fewer ratings.
	// Zero selects DefaultMaxTotalRatings.
	MaxTotalRatings int64
}

// Result holds the intermediate and final tables of one aggregation.
type Result struct {
	Joined *table.Table
	Stats  *table.Table
	Gold   *table.Table
}

// leading is the guaranteed column order at the front of the gold table.
var leading = []string{JoinKey, "title", "year", AvgRating, TotalRating}

// Join inner joins movies and ratings on movieId. Rows without a partner on
// the other side are dropped.
func Join(movies, ratings *table.Table) (*table.Table, error) {
	out, err := movies.InnerJoin(ratings, JoinKey)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate: join")
	}
	return out, nil
}

// Stats computes avgRating and totalRating per movie over the joined rows.
func Stats(joined *table.Table) (*table.Table, error) {
	out, err := joined.GroupBy(JoinKey,
		table.Mean("rating", AvgRating),
		table.Count("rating", TotalRating),
	)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate: stats")
	}
	return out, nil
}

// Build runs the full aggregation: join, per-movie stats, re-join onto the
// detail rows, order by totalRating descending and keep movies under the
// rating threshold. Ties are ordered by movieId, userId, ratingDate and rating
// so the output is deterministic.
func Build(movies, ratings *table.Table, opt Options) (Result, error) {
	limit := opt.MaxTotalRatings
	if limit <= 0 {
		limit = DefaultMaxTotalRatings
	}

	joined, err := Join(movies, ratings)
	if err != nil {
		return Result{}, err
	}
	stats, err := Stats(joined)
	if err != nil {
		return Result{}, err
	}
	detail, err := stats.InnerJoin(joined, JoinKey)
	if err != nil {
		return Result{}, errors.Wrap(err, "aggregate: rejoin")
	}

	keys := []table.SortKey{table.Desc(TotalRating), table.Asc(JoinKey)}
	for _, c := range []string{"userId", cleaner.RatingDateColumn, "rating"} {
		if detail.Schema().Has(c) {
			keys = append(keys, table.Asc(c))
		}
	}
	sorted, err := detail.SortBy(keys...)
	if err != nil {
		return Result{}, errors.Wrap(err, "aggregate: order")
	}
	kept, err := builtin.Where{Field: TotalRating, Op: "<", Value: float64(limit)}.Apply(sorted)
	if err != nil {
		return Result{}, errors.Wrap(err, "aggregate: filter")
	}
	gold, err := kept.Select(goldOrder(kept.Schema())...)
	if err != nil {
		return Result{}, errors.Wrap(err, "aggregate: project")
	}
	return Result{Joined: joined, Stats: stats, Gold: gold}, nil
}

// goldOrder puts the leading columns first, followed by every other column
// in its existing order.
func goldOrder(s table.Schema) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, c := range leading {
		if s.Has(c) {
			out = append(out, c)
			seen[c] = true
		}
	}
	for _, c := range s {
		if !seen[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}
