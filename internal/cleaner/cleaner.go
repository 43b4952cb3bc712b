// Package cleaner drops incomplete and invalid rows from the raw inputs.
package cleaner

import (
	"time"

	"github.com/pkg/errors"

	"movieetl/internal/table"
	"movieetl/internal/transformer"
	"movieetl/internal/transformer/builtin"
)

// RatingDateColumn is derived from the epoch timestamp of each rating.
const RatingDateColumn = "ratingDate"

// CleanMovies drops every movie row holding a NULL in any column.
func CleanMovies(movies *table.Table) (*table.Table, error) {
	out, err := builtin.Require{}.Apply(movies)
	if err != nil {
		return nil, errors.Wrap(err, "cleaner: movies")
	}
	return out, nil
}

// CleanRatings drops rows holding a NULL in any column and rows rated zero or
// below, then replaces timestamp with ratingDate, the calendar date of the
// rating in loc (UTC when nil).
func CleanRatings(ratings *table.Table, loc *time.Location) (*table.Table, error) {
	out, err := transformer.Chain{
		builtin.Require{},
		builtin.Where{Field: "rating", Op: ">", Value: 0},
		builtin.EpochToDate{From: "timestamp", To: RatingDateColumn, Location: loc},
	}.Apply(ratings)
	if err != nil {
		return nil, errors.Wrap(err, "cleaner: ratings")
	}
	return out, nil
}
