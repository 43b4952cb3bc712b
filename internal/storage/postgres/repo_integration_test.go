//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movieetl/internal/storage"
	"movieetl/internal/table"
	"movieetl/pkg/records"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping Postgres integration tests")
	}
	return dsn
}

func TestOverwriteLoadIntegration(t *testing.T) {
	dsn := getTestDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := NewRepository(ctx, Config{DSN: dsn, BatchSize: 1})
	require.NoError(t, err)
	defer repo.Close()

	loc := storage.Location{Tier: "it", Name: "ratings"}
	day := time.Date(2010, 5, 6, 0, 0, 0, 0, time.UTC)
	in := table.New(
		table.Schema{{Name: "userId", Type: table.Integer}, {Name: "rating", Type: table.Real}, {Name: "ratingDate", Type: table.Date}, {Name: "genresArray", Type: table.TextList}},
		[]records.Record{
			{"userId": int64(1), "rating": 4.5, "ratingDate": day, "genresArray": []string{"Drama"}},
			{"userId": int64(2), "rating": nil, "ratingDate": nil, "genresArray": []string{"a", "b"}},
		},
	)
	c1, err := repo.Overwrite(ctx, loc, in, storage.WriteOptions{RunID: "it"})
	require.NoError(t, err)
	c2, err := repo.Overwrite(ctx, loc, in, storage.WriteOptions{RunID: "it"})
	require.NoError(t, err)
	assert.Equal(t, c1.Version+1, c2.Version)
	assert.Equal(t, c1.Checksum, c2.Checksum)

	out, err := repo.Load(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, in.Rows(), out.Rows())
}
