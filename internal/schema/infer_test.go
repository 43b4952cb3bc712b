package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want table.Type
	}{
		{"empty column", []string{"", " "}, table.Text},
		{"integers", []string{"1", "-2", "1995"}, table.Integer},
		{"ints and floats", []string{"1", "2.5"}, table.Real},
		{"epoch seconds", []string{"964982703", "964981247"}, table.Integer},
		{"booleans", []string{"true", "F", "yes"}, table.Boolean},
		{"dates", []string{"2024-01-02", "20240103"}, table.Date},
		{"dates and timestamps", []string{"2024-01-02", "2024-01-02 10:00:00"}, table.Timestamp},
		{"titles", []string{"Toy Story (1995)", "Heat (1995)"}, table.Text},
		{"ignores blanks", []string{"", "3"}, table.Integer},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InferType(tc.in))
		})
	}
}

func TestInferSkipsNulls(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{"movieId": "1", "title": "Toy Story (1995)", "genres": nil},
		{"movieId": "2", "title": nil, "genres": "Comedy"},
	}
	got := Infer([]string{"movieId", "title", "genres"}, rows)
	assert.Equal(t, table.Schema{
		{Name: "movieId", Type: table.Integer},
		{Name: "title", Type: table.Text},
		{Name: "genres", Type: table.Text},
	}, got)
}

func TestParse(t *testing.T) {
	t.Parallel()

	v, ok := Parse(" 42 ", table.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = Parse("3.5", table.Real)
	require.True(t, ok)
	assert.Equal(t, 3.5, v)

	_, ok = Parse("abc", table.Real)
	assert.False(t, ok)

	v, ok = Parse("2024-02-29", table.Date)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), v)

	v, ok = Parse("2024-02-29 23:10:00", table.Date)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), v)

	v, ok = Parse("2024-02-29T23:10:00+02:00", table.Timestamp)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 21, 10, 0, 0, time.UTC), v)

	v, ok = Parse("2024-02-29", table.Timestamp)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), v)

	v, ok = Parse("no", table.Boolean)
	require.True(t, ok)
	assert.Equal(t, false, v)

	v, ok = Parse(" keep spaces ", table.Text)
	require.True(t, ok)
	assert.Equal(t, " keep spaces ", v)

	_, ok = Parse("a|b", table.TextList)
	assert.False(t, ok)
}

func TestConforms(t *testing.T) {
	t.Parallel()

	s := append(GoldContract.Clone(), table.Column{Name: "genres", Type: table.Text})
	assert.True(t, Conforms(s, GoldContract))
	assert.False(t, Conforms(Movies, GoldContract))

	_, ok := Builtin("movies")
	assert.True(t, ok)
	_, ok = Builtin("nope")
	assert.False(t, ok)
}
