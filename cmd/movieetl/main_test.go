package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePipeline writes a pipeline file reading the repository test data into
// a sqlite database under dir.
func writePipeline(t *testing.T, dir string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("..", "..", "testdata"))
	require.NoError(t, err)
	body := `{
  "job": "movie_ratings",
  "sources": {
    "movies":  { "uri": "` + filepath.ToSlash(filepath.Join(abs, "movies.csv")) + `", "schema": "movies" },
    "ratings": { "uri": "` + filepath.ToSlash(filepath.Join(abs, "ratings.csv")) + `", "schema": "ratings" }
  },
  "parser": { "kind": "csv", "options": { "has_header": true } },
  "storage": { "kind": "sqlite", "db": { "dsn": "` + filepath.ToSlash(filepath.Join(dir, "tiers.db")) + `" } }
}`
	path := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(&stdout, &stderr)
	rc.SetArgs(args)
	err := rc.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "movieetl v0.0.0")
}

func TestValidate(t *testing.T) {
	cfg := writePipeline(t, t.TempDir())
	out, err := execute(t, "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"job": "", "sources": {}}`), 0o644))
	out, err = execute(t, "validate", "-c", bad)
	require.Error(t, err)
	assert.Contains(t, out, "sources.movies.uri")
}

func TestRunThenHistoryAndQuality(t *testing.T) {
	dir := t.TempDir()
	cfg := writePipeline(t, dir)

	out, err := execute(t, "run", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "write_gold")
	assert.Contains(t, out, "gold_rows")
	assert.NotContains(t, out, "failed")

	out, err = execute(t, "history", "-c", cfg, "gold/movie_ratings")
	require.NoError(t, err)
	assert.Contains(t, out, "gold/movie_ratings")
	assert.Contains(t, out, "overwrite")

	out, err = execute(t, "quality", "-c", cfg, "--fail-on-flag")
	require.NoError(t, err)
	assert.Contains(t, out, "null_ratings")
}

func TestRunFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := writePipeline(t, dir)
	other := filepath.Join(dir, "other.db")

	_, err := execute(t, "run", "-c", cfg, "--dsn", other, "--max-rows", "3")
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err)
}

func TestProbe(t *testing.T) {
	out, err := execute(t, "probe", filepath.Join("..", "..", "testdata", "movies.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "movieId")
	assert.Contains(t, out, `"schema": "movies"`)
}

func TestHistoryRejectsBadLocation(t *testing.T) {
	cfg := writePipeline(t, t.TempDir())
	_, err := execute(t, "history", "-c", cfg, "nolocation")
	require.Error(t, err)
}

func TestSetAllConfigReadsEnvironment(t *testing.T) {
	t.Setenv("MOVIEETL_MAX_ROWS", "7")
	t.Setenv("MOVIEETL_TIME_ZONE", "Europe/Prague")

	o := &globalOptions{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.IntVar(&o.MaxRows, "max-rows", 0, "")
	fs.StringVar(&o.TimeZone, "time-zone", "", "")
	fs.StringVar(&o.DSN, "dsn", "default.db", "")
	require.NoError(t, fs.Parse([]string{"--time-zone", "UTC"}))

	require.NoError(t, setAllConfig(viper.New(), fs, envPrefix))
	assert.Equal(t, 7, o.MaxRows)
	assert.Equal(t, "UTC", o.TimeZone)
	assert.Equal(t, "default.db", o.DSN)
}

func TestSetupLoggingRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, setupLogging(&globalOptions{LogFormat: "xml"}, &buf))
	require.NoError(t, setupLogging(&globalOptions{LogFormat: "json"}, &buf))
	require.NoError(t, setupLogging(&globalOptions{}, &buf))
}
