package builtin

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/table"
	"movieetl/internal/transformer"
	"movieetl/pkg/records"
)

func rawRatings() *table.Table {
	return table.New(table.Schema{
		{Name: "userId", Type: table.Text},
		{Name: "rating", Type: table.Text},
		{Name: "timestamp", Type: table.Text},
	}, []records.Record{
		{"userId": "1", "rating": "4.0", "timestamp": "964982703"},
		{"userId": "2", "rating": "oops", "timestamp": "964982224"},
		{"userId": nil, "rating": "0", "timestamp": "0"},
	})
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	c := Coerce{Schema: table.Schema{
		{Name: "userId", Type: table.Integer},
		{Name: "rating", Type: table.Real},
		{Name: "timestamp", Type: table.Integer},
		{Name: "extra", Type: table.Text},
	}}
	out, err := c.Apply(rawRatings())
	require.NoError(t, err)

	assert.Equal(t, []string{"userId", "rating", "timestamp", "extra"}, out.Schema().Names())
	assert.Equal(t, int64(1), out.Row(0)["userId"])
	assert.Equal(t, 4.0, out.Row(0)["rating"])
	assert.Nil(t, out.Row(1)["rating"], "unparsable value becomes NULL")
	assert.Nil(t, out.Row(2)["userId"])
	assert.Nil(t, out.Row(0)["extra"])

	same, err := Coerce{}.Apply(rawRatings())
	require.NoError(t, err)
	assert.Equal(t, "4.0", same.Row(0)["rating"])
}

func TestRequire(t *testing.T) {
	t.Parallel()

	out, err := Require{}.Apply(rawRatings())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())

	out, err = Require{Fields: []string{"rating"}}.Apply(rawRatings())
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
}

func TestWhere(t *testing.T) {
	t.Parallel()

	in := table.New(table.Schema{{Name: "rating", Type: table.Real}}, []records.Record{
		{"rating": 0.0}, {"rating": -1.0}, {"rating": 0.5}, {"rating": nil}, {"rating": int64(3)},
	})

	tests := []struct {
		op   string
		val  float64
		want int
	}{
		{">", 0, 2},
		{">=", 0, 3},
		{"<", 0.5, 2},
		{"<=", 0.5, 3},
		{"=", 3, 1},
		{"!=", 0, 3},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			out, err := Where{Field: "rating", Op: tc.op, Value: tc.val}.Apply(in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Len())
		})
	}

	_, err := Where{Field: "rating", Op: "~"}.Apply(in)
	require.Error(t, err)
	_, err = Where{Field: "nope", Op: ">"}.Apply(in)
	require.Error(t, err)
}

func TestEpochToDate(t *testing.T) {
	t.Parallel()

	in := table.New(table.Schema{
		{Name: "id", Type: table.Integer},
		{Name: "timestamp", Type: table.Integer},
	}, []records.Record{
		{"id": int64(1), "timestamp": int64(964982703)}, // 2000-07-30 18:45:03 UTC
		{"id": int64(2), "timestamp": int64(0)},
		{"id": int64(3), "timestamp": nil},
	})

	out, err := EpochToDate{From: "timestamp", To: "ratingDate"}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "ratingDate"}, out.Schema().Names())
	assert.Equal(t, time.Date(2000, 7, 30, 0, 0, 0, 0, time.UTC), out.Row(0)["ratingDate"])
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), out.Row(1)["ratingDate"])
	assert.Nil(t, out.Row(2)["ratingDate"])

	tokyo := time.FixedZone("JST", 9*3600)
	out, err = EpochToDate{From: "timestamp", To: "ratingDate", Location: tokyo, Keep: true}.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2000, 7, 31, 0, 0, 0, 0, time.UTC), out.Row(0)["ratingDate"])
	assert.True(t, out.Schema().Has("timestamp"))
}

func TestDeriveAndNormalizeChain(t *testing.T) {
	t.Parallel()

	in := table.New(table.Schema{
		{Name: "name", Type: table.Text},
		{Name: "n", Type: table.Integer},
	}, []records.Record{
		{"name": "  heat ", "n": int64(1)},
		{"name": nil, "n": int64(2)},
	})

	called := 0
	c := transformer.Chain{
		Normalize{},
		Derive{From: "name", To: table.Column{Name: "upper", Type: table.Text}, Fn: func(v any) any {
			called++
			return strings.ToUpper(v.(string))
		}},
	}
	out, err := c.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, "heat", out.Row(0)["name"])
	assert.Equal(t, "HEAT", out.Row(0)["upper"])
	assert.Nil(t, out.Row(1)["upper"])
	assert.Equal(t, 1, called, "NULL input never reaches Fn")
	assert.Equal(t, "  heat ", in.Row(0)["name"])

	_, err = Derive{From: "missing", To: table.Column{Name: "x", Type: table.Text}}.Apply(in)
	require.Error(t, err)
}
