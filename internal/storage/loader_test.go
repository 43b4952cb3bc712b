package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsOf(n int) <-chan []any {
	return Stream(context.Background(), n, func(i int) []any { return []any{int64(i), "x"} })
}

func TestLoadBatchesGroupsRows(t *testing.T) {
	t.Parallel()

	var sizes []int
	copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
		assert.Equal(t, []string{"c1", "c2"}, cols)
		sizes = append(sizes, len(rows))
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c1", "c2"}, rowsOf(7), 3, copyFn)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestLoadBatchesPreservesOrder(t *testing.T) {
	t.Parallel()

	var got []int64
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		for _, r := range rows {
			got = append(got, r[0].(int64))
		}
		return int64(len(rows)), nil
	}

	_, err := LoadBatches(context.Background(), []string{"c"}, rowsOf(5), 2, copyFn)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, got)
}

func TestLoadBatchesStopsOnError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("copy failed")
	calls := 0
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		calls++
		return 0, wantErr
	}

	total, err := LoadBatches(context.Background(), []string{"c"}, rowsOf(5), 2, copyFn)
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, 1, calls)
}

func TestLoadBatchesRejectsBadArgs(t *testing.T) {
	t.Parallel()

	_, err := LoadBatches(context.Background(), nil, rowsOf(0), 0, func(context.Context, []string, [][]any) (int64, error) { return 0, nil })
	require.Error(t, err)
	_, err = LoadBatches(context.Background(), nil, rowsOf(0), 1, nil)
	require.Error(t, err)
}

func TestLoadBatchesEmptyInput(t *testing.T) {
	t.Parallel()

	calls := 0
	total, err := LoadBatches(context.Background(), []string{"c"}, rowsOf(0), 10, func(context.Context, []string, [][]any) (int64, error) {
		calls++
		return 0, nil
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, calls)
}

func TestLoadBatchesCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := make(chan []any)
	_, err := LoadBatches(ctx, []string{"c"}, in, 1, func(context.Context, []string, [][]any) (int64, error) { return 0, nil })
	require.ErrorIs(t, err, context.Canceled)
}
