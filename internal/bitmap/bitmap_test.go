package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		maxID   int64
		wantLen int
	}{
		{name: "non-positive allocates nothing", maxID: 0, wantLen: 0},
		{name: "single word", maxID: 63, wantLen: 1},
		{name: "64 needs a second word", maxID: 64, wantLen: 2},
		{name: "movie ids", maxID: 209171, wantLen: 209171/64 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, New(tt.maxID).data, tt.wantLen)
		})
	}
}

func TestAddAndHas(t *testing.T) {
	t.Parallel()

	bm := New(200)
	assert.False(t, bm.Has(0))

	for _, id := range []int64{0, 63, 64, 199, 200} {
		bm.Add(id)
	}
	for _, id := range []int64{0, 63, 64, 199, 200} {
		assert.True(t, bm.Has(id), id)
	}
	assert.False(t, bm.Has(1))
	assert.False(t, bm.Has(-1))
	assert.False(t, bm.Has(100000))
	assert.Equal(t, 5, bm.Len())
}

func TestAddGrowsAndIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	var bm Bitmap
	bm.Add(5000)
	bm.Add(5000)
	bm.Add(-3)
	assert.True(t, bm.Has(5000))
	assert.False(t, bm.Has(4999))
	assert.Equal(t, 1, bm.Len())
}
