package storage

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"

	"movieetl/internal/table"
)

// Checksum returns a hex xxh3 digest of the schema and rows of t in order.
// Identical tables always hash identically regardless of backend.
func Checksum(t *table.Table) string {
	h := xxh3.New()
	var buf []byte
	s := t.Schema()
	for _, c := range s {
		buf = append(buf, c.Name...)
		buf = append(buf, 0x1f)
		buf = append(buf, c.Type...)
		buf = append(buf, 0x1e)
	}
	_, _ = h.Write(buf)

	for _, r := range t.Rows() {
		buf = buf[:0]
		for _, c := range s {
			buf = appendValue(buf, r[c.Name])
			buf = append(buf, 0x1f)
		}
		buf = append(buf, 0x1e)
		_, _ = h.Write(buf)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func appendValue(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 0)
	case int64:
		return strconv.AppendInt(append(buf, 'i'), x, 10)
	case int:
		return strconv.AppendInt(append(buf, 'i'), int64(x), 10)
	case float64:
		return strconv.AppendUint(append(buf, 'f'), math.Float64bits(x), 16)
	case string:
		buf = strconv.AppendInt(append(buf, 's'), int64(len(x)), 10)
		return append(append(buf, ':'), x...)
	case bool:
		return strconv.AppendBool(append(buf, 'b'), x)
	case time.Time:
		return x.UTC().AppendFormat(append(buf, 't'), time.RFC3339Nano)
	case []string:
		buf = strconv.AppendInt(append(buf, 'l'), int64(len(x)), 10)
		for _, e := range x {
			buf = strconv.AppendInt(append(buf, ':'), int64(len(e)), 10)
			buf = append(append(buf, ':'), e...)
		}
		return buf
	default:
		return append(append(buf, '?'), fmt.Sprint(x)...)
	}
}
