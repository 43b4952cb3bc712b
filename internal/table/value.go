package table

import (
	"math"
	"strings"
	"time"
)

// ToInt converts integral values to int64. Floats are accepted only when they
// hold a whole number.
func ToInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case float32:
		f := float64(x)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

// ToFloat converts any numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := ToInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Compare orders two values of the same logical type. NULL is smaller than
// every other value. Values of unrelated types compare by type rank so the
// order stays total.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := ToFloat(a); ok {
		if fb, ok := ToFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case []string:
		if y, ok := b.([]string); ok {
			for i := 0; i < len(x) && i < len(y); i++ {
				if c := strings.Compare(x[i], y[i]); c != 0 {
					return c
				}
			}
			switch {
			case len(x) < len(y):
				return -1
			case len(x) > len(y):
				return 1
			}
			return 0
		}
	}
	ra, rb := typeRank(a), typeRank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case bool:
		return 1
	case int, int8, int16, int32, int64, uint8, uint16, uint32, float32, float64:
		return 2
	case string:
		return 3
	case time.Time:
		return 4
	case []string:
		return 5
	}
	return 6
}
