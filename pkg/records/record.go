// Package records defines the loosely typed row shared by the parser,
// transformers and storage backends.
package records

// Record is a single row keyed by column name. A missing key and a nil value
// are both NULL.
type Record map[string]any

// IsNull reports whether key is absent or nil.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	return !ok || v == nil
}

// Clone returns a shallow copy of r. Values are shared; slices stored in a
// Record are treated as immutable by every stage.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
