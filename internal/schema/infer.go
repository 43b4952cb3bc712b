// Package schema infers column types from raw delimited-text values and
// parses raw values into the typed values a table.Table holds.
package schema

import (
	"strconv"
	"strings"
	"time"

	"movieetl/internal/table"
	"movieetl/pkg/records"
)

// dateLayouts are the accepted calendar date formats, most specific first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"20060102",
}

// timestampLayouts carry a time component.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// Infer returns one column per header with the narrowest type every non-NULL
// value of that column satisfies. Raw values are strings or nil.
func Infer(header []string, rows []records.Record) table.Schema {
	out := make(table.Schema, len(header))
	vals := make([]string, 0, len(rows))
	for i, name := range header {
		vals = vals[:0]
		for _, r := range rows {
			if s, ok := r[name].(string); ok {
				vals = append(vals, s)
			}
		}
		out[i] = table.Column{Name: name, Type: InferType(vals)}
	}
	return out
}

// InferType picks among integer, real, boolean, date, timestamp and text.
// Empty strings are ignored; a column with no values is text.
func InferType(values []string) table.Type {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	if len(nonEmpty) == 0 {
		return table.Text
	}
	if allMatch(nonEmpty, isInt) {
		return table.Integer
	}
	if allMatch(nonEmpty, isNumber) {
		return table.Real
	}
	if allMatch(nonEmpty, isBool) {
		return table.Boolean
	}
	if allMatch(nonEmpty, isDate) {
		return table.Date
	}
	if allMatch(nonEmpty, func(s string) bool { return isDate(s) || isTimestamp(s) }) {
		return table.Timestamp
	}
	return table.Text
}

// Parse converts raw into a value of type typ. ok is false when raw does not
// satisfy the type; callers store NULL in that case.
func Parse(raw string, typ table.Type) (any, bool) {
	s := strings.TrimSpace(raw)
	switch typ {
	case table.Integer:
		i, err := strconv.ParseInt(s, 10, 64)
		return i, err == nil
	case table.Real:
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case table.Boolean:
		return parseBool(s)
	case table.Date:
		if t, ok := parseLayouts(s, dateLayouts); ok {
			return t, true
		}
		if t, ok := parseTime(s, timestampLayouts); ok {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
		return nil, false
	case table.Timestamp:
		if t, ok := parseTime(s, timestampLayouts); ok {
			return t.UTC(), true
		}
		return parseLayouts(s, dateLayouts)
	case table.Text:
		return raw, true
	}
	return nil, false
}

func parseLayouts(s string, layouts []string) (any, bool) {
	t, ok := parseTime(s, layouts)
	if !ok {
		return nil, false
	}
	return t, true
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBool(s string) bool {
	_, ok := parseBool(s)
	return ok
}

func parseBool(s string) (any, bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	}
	return nil, false
}

func isDate(s string) bool {
	_, ok := parseTime(s, dateLayouts)
	return ok
}

func isTimestamp(s string) bool {
	_, ok := parseTime(s, timestampLayouts)
	return ok
}
