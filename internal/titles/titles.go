// Package titles splits "Title (Year)" strings into their parts and turns the
// pipe separated genres field into a list.
package titles

import (
	"regexp"
	"strconv"
	"strings"

	"movieetl/internal/table"
	"movieetl/internal/transformer"
	"movieetl/internal/transformer/builtin"
)

var (
	// yearRe matches a parenthesized four digit year closing the title.
	yearRe = regexp.MustCompile(`\((\d{4})\)$`)
	// cleanRe always matches; group 1 is everything before an optional
	// " (YYYY)" suffix.
	cleanRe = regexp.MustCompile(`(?s)^(.*?)(?:\s\(\d{4}\))?$`)
)

// GenreSeparator separates genres in the raw genres field.
const GenreSeparator = "|"

// ExtractYear returns the year closing the trimmed title, if any.
func ExtractYear(title string) (int64, bool) {
	m := yearRe.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return 0, false
	}
	y, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return y, true
}

// ExtractCleanTitle returns the trimmed title without its " (YYYY)" suffix.
// Inner parenthesized text is kept.
func ExtractCleanTitle(title string) string {
	m := cleanRe.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ""
	}
	return m[1]
}

// SplitGenres splits the raw genres field on the literal separator. Order and
// duplicates are preserved; an empty input yields one empty genre.
func SplitGenres(genres string) []string {
	return strings.Split(genres, GenreSeparator)
}

// Parse adds year and genresArray to a movies table and replaces title with
// its clean form.
func Parse(movies *table.Table) (*table.Table, error) {
	return transformer.Chain{
		builtin.Normalize{Fields: []string{"title"}},
		builtin.Derive{
			From: "title",
			To:   table.Column{Name: "year", Type: table.Integer},
			Fn: func(v any) any {
				if y, ok := ExtractYear(asString(v)); ok {
					return y
				}
				return nil
			},
		},
		builtin.Derive{
			From: "title",
			To:   table.Column{Name: "title", Type: table.Text},
			Fn:   func(v any) any { return ExtractCleanTitle(asString(v)) },
		},
		builtin.Derive{
			From: "genres",
			To:   table.Column{Name: "genresArray", Type: table.TextList},
			Fn:   func(v any) any { return SplitGenres(asString(v)) },
		},
	}.Apply(movies)
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return table.FormatValue(v)
}
