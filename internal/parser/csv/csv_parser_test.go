package csv_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pcsv "movieetl/internal/parser/csv"
)

func TestParseSample(t *testing.T) {
	path := filepath.Join("..", "..", "..", "testdata", "movies.csv")
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	res, err := pcsv.NewParser(pcsv.Options{HasHeader: true}).Parse(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"movieId", "title", "genres"}, res.Header)
	require.NotEmpty(t, res.Rows)
	assert.Equal(t, "1", res.Rows[0]["movieId"])
	assert.Equal(t, "Toy Story (1995)", res.Rows[0]["title"])
}

func TestParseQuotedAndEmpty(t *testing.T) {
	t.Parallel()

	in := "\uFEFFmovieId,title,genres\n" +
		"11,\"American President, The (1995)\",Comedy|Drama|Romance\n" +
		"12,,Comedy\n"
	res, err := pcsv.NewParser(pcsv.Options{HasHeader: true}).Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "movieId", res.Header[0], "BOM stripped")
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "American President, The (1995)", res.Rows[0]["title"])
	assert.Nil(t, res.Rows[1]["title"], "empty field is NULL")
}

func TestParseMaxRows(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("userId,movieId,rating,timestamp\n")
	for i := 0; i < 1000; i++ {
		sb.WriteString("1,1,4.0,964982703\n")
	}
	res, err := pcsv.NewParser(pcsv.Options{HasHeader: true, MaxRows: 500}).Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 500)

	res, err = pcsv.NewParser(pcsv.Options{HasHeader: true}).Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1000)
}

func TestParseRaggedRows(t *testing.T) {
	t.Parallel()

	in := "a,b,c\n1,2\n1,2,3,4\n x , y , z \n"
	res, err := pcsv.NewParser(pcsv.Options{HasHeader: true, TrimSpace: true}).Parse(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, 2, res.Ragged)
	assert.Nil(t, res.Rows[0]["c"])
	_, has := res.Rows[1]["col_3"]
	assert.False(t, has)
	assert.Equal(t, "y", res.Rows[2]["b"])
}

func TestParseHeaderHandling(t *testing.T) {
	t.Parallel()

	_, err := pcsv.NewParser(pcsv.Options{HasHeader: true}).Parse(strings.NewReader(""))
	require.Error(t, err)

	_, err = pcsv.NewParser(pcsv.Options{HasHeader: true}).Parse(strings.NewReader("a,a\n1,2\n"))
	require.Error(t, err)

	res, err := pcsv.NewParser(pcsv.Options{
		HasHeader: true,
		Comma:     ';',
		HeaderMap: map[string]string{"Movie ID": "movieId"},
	}).Parse(strings.NewReader("Movie ID;title\n1;Heat (1995)\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"movieId", "title"}, res.Header)

	res, err = pcsv.NewParser(pcsv.Options{}).Parse(strings.NewReader("1,2\n3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"col_0", "col_1"}, res.Header)
	assert.Len(t, res.Rows, 2)
}

// resetReader serves body once and then fails every read.
type resetReader struct {
	body string
	done bool
}

func (r *resetReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.body), nil
	}
	return 0, errors.New("connection reset")
}

func TestParseStopsOnReadError(t *testing.T) {
	t.Parallel()

	type outcome struct {
		rows int
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := pcsv.NewParser(pcsv.Options{HasHeader: true, MaxRows: 500}).Parse(&resetReader{body: "a,b\n1,2\n"})
		done <- outcome{len(res.Rows), err}
	}()

	select {
	case got := <-done:
		require.Error(t, got.err)
		assert.Contains(t, got.err.Error(), "connection reset")
		assert.Equal(t, 1, got.rows)
	case <-time.After(5 * time.Second):
		t.Fatal("Parse kept reading after a persistent read error")
	}
}

func TestParseSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	in := "a,b\n1,2\n3,\"bad\"x\n4,5\n"
	res, err := pcsv.NewParser(pcsv.Options{HasHeader: true}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "4", res.Rows[1]["a"])
}
