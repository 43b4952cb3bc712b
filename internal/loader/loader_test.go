package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/config"
	_ "movieetl/internal/datasource/all"
	"movieetl/internal/parser"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

func testdata(name string) string { return filepath.Join("..", "..", "testdata", name) }

func sources() config.Sources {
	return config.Sources{
		Movies:  config.Source{URI: testdata("movies.csv"), Schema: "movies"},
		Ratings: config.Source{URI: testdata("ratings.csv"), Schema: "ratings"},
	}
}

func TestLoadDeclaredSchemas(t *testing.T) {
	t.Parallel()

	res, err := Load(context.Background(), sources(), Options{Job: "test"})
	require.NoError(t, err)

	m := res.Movies.Table
	require.Equal(t, 15, m.Len())
	assert.False(t, res.Movies.Inferred)
	assert.Equal(t, table.Schema{
		{Name: "movieId", Type: table.Integer},
		{Name: "title", Type: table.Text},
		{Name: "genres", Type: table.Text},
	}, m.Schema())
	assert.Equal(t, int64(1), m.Row(0)["movieId"])
	assert.Equal(t, "American President, The (1995)", m.Row(10)["title"])
	assert.Nil(t, m.Row(7)["title"])

	r := res.Ratings.Table
	require.Equal(t, 20, r.Len())
	assert.Equal(t, 4.0, r.Row(0)["rating"])
	assert.Equal(t, int64(964982703), r.Row(0)["timestamp"])
	assert.Nil(t, r.Row(9)["rating"])
	assert.Nil(t, r.Row(19)["movieId"])
}

func TestLoadInfersWithoutSchema(t *testing.T) {
	t.Parallel()

	src := config.Source{URI: testdata("ratings.csv")}
	d, err := LoadOne(context.Background(), Ratings, src, Options{})
	require.NoError(t, err)

	assert.True(t, d.Inferred)
	s := d.Table.Schema()
	for name, typ := range map[string]table.Type{
		"userId":    table.Integer,
		"movieId":   table.Integer,
		"rating":    table.Real,
		"timestamp": table.Integer,
	} {
		c, ok := s.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, typ, c.Type, name)
	}
}

func TestLoadHonorsMaxRows(t *testing.T) {
	t.Parallel()

	res, err := Load(context.Background(), sources(), Options{MaxRows: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Movies.Table.Len())
	assert.Equal(t, 4, res.Ratings.Table.Len())
}

func TestLoadInlineColumnsWin(t *testing.T) {
	t.Parallel()

	src := config.Source{
		URI:    testdata("movies.csv"),
		Schema: "movies",
		Columns: []table.Column{
			{Name: "movieId", Type: table.Text},
		},
	}
	d, err := LoadOne(context.Background(), Movies, src, Options{})
	require.NoError(t, err)
	assert.Equal(t, "1", d.Table.Row(0)["movieId"])
}

func TestLoadHeaderMapAndComma(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "movies.tsv")
	require.NoError(t, os.WriteFile(path, []byte("id;name;genres\n1;Heat (1995);Action\n"), 0o644))

	opt := Options{Parser: config.Parser{Kind: "csv", Options: config.Options{
		"comma":      ";",
		"header_map": map[string]any{"id": "movieId", "name": "title"},
	}}}
	d, err := LoadOne(context.Background(), Movies, config.Source{URI: path, Schema: "movies"}, opt)
	require.NoError(t, err)
	require.Equal(t, 1, d.Table.Len())
	assert.Equal(t, int64(1), d.Table.Row(0)["movieId"])
	assert.Equal(t, "Heat (1995)", d.Table.Row(0)["title"])
}

func TestLoadOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("movieId,title,genres\n7,Sabrina (1995),Comedy|Romance\n"))
	}))
	defer srv.Close()

	d, err := LoadOne(context.Background(), Movies, config.Source{URI: srv.URL + "/movies.csv", Schema: "movies"}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, d.Table.Len())
	assert.Equal(t, int64(7), d.Table.Row(0)["movieId"])
}

func TestLoadFailures(t *testing.T) {
	t.Parallel()

	src := sources()
	src.Ratings.URI = filepath.Join(t.TempDir(), "missing.csv")
	_, err := Load(context.Background(), src, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratings")

	_, err = LoadOne(context.Background(), Movies, sources().Movies, Options{Parser: config.Parser{Kind: "xml"}})
	require.Error(t, err)
}

func TestSchemaPrecedence(t *testing.T) {
	t.Parallel()

	raw := parser.Result{
		Header: []string{"a"},
		Rows:   []records.Record{{"a": "1"}, {"a": "2.5"}},
	}
	s, inferred := Schema(config.Source{}, raw)
	assert.True(t, inferred)
	assert.Equal(t, table.Schema{{Name: "a", Type: table.Real}}, s)

	s, inferred = Schema(config.Source{Schema: "movies"}, raw)
	assert.False(t, inferred)
	assert.Equal(t, "movieId", s[0].Name)
}
