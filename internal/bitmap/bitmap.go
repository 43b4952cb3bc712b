// Package bitmap provides a dense set of non-negative integer IDs, used for
// fast membership checks such as "does this rating point at a known movie".
package bitmap

// Bitmap is a bitset backed by 64-bit words. It grows on Add, so the zero
// value is an empty set ready to use.
type Bitmap struct {
	data []uint64
	n    int
}

// New preallocates room for IDs in [0, maxID]. Non-positive maxID allocates
// nothing.
func New(maxID int64) *Bitmap {
	if maxID <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{data: make([]uint64, maxID/64+1)}
}

// Add inserts id. Negative ids are ignored.
func (b *Bitmap) Add(id int64) {
	if id < 0 {
		return
	}
	word := int(id / 64)
	if word >= len(b.data) {
		grown := make([]uint64, word+1)
		copy(grown, b.data)
		b.data = grown
	}
	bit := uint64(1) << uint(id%64)
	if b.data[word]&bit == 0 {
		b.data[word] |= bit
		b.n++
	}
}

// Has reports whether id is in the set.
func (b *Bitmap) Has(id int64) bool {
	if id < 0 {
		return false
	}
	word := int(id / 64)
	if word >= len(b.data) {
		return false
	}
	return b.data[word]&(uint64(1)<<uint(id%64)) != 0
}

// Len returns the number of distinct IDs added.
func (b *Bitmap) Len() int { return b.n }
