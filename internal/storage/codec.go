package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"movieetl/internal/table"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// EncodeList renders a text list as a JSON array for backends without an
// array type.
func EncodeList(v []string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// DecodeValue converts a driver value read back from a backend into the
// pipeline's representation for typ.
func DecodeValue(v any, typ table.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch typ {
	case table.Integer:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case int:
			return int64(x), nil
		case float64:
			if x == math.Trunc(x) {
				return int64(x), nil
			}
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n, nil
			}
		}
	case table.Real:
		if f, ok := table.ToFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
	case table.Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case table.Boolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		}
	case table.Date:
		if t, ok := decodeTime(v); ok {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	case table.Timestamp:
		if t, ok := decodeTime(v); ok {
			return t.UTC(), nil
		}
	case table.TextList:
		switch x := v.(type) {
		case []string:
			return append([]string(nil), x...), nil
		case []any:
			out := make([]string, len(x))
			for i, e := range x {
				s, ok := e.(string)
				if !ok {
					return nil, errors.Errorf("storage: decode %s: element %T", typ, e)
				}
				out[i] = s
			}
			return out, nil
		case string:
			var out []string
			if err := json.Unmarshal([]byte(x), &out); err != nil {
				return nil, errors.Wrapf(err, "storage: decode %s", typ)
			}
			return out, nil
		}
	}
	return nil, errors.Errorf("storage: cannot decode %T as %s", v, typ)
}

func decodeTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
