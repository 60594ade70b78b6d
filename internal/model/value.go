package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are accepted by ParseValue for time columns, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a user-supplied time literal. Times without a zone are UTC.
func ParseTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %q", text)
}

// ParseValue converts user input into a typed value for the given column.
// An empty string or "null" yields nil for nullable columns.
func ParseValue(col Column, text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		if !col.Nullable {
			return nil, fmt.Errorf("column %s is not nullable", col.Key)
		}
		return nil, nil
	}

	switch col.Type {
	case ColumnInteger:
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer for %s: %q", col.Key, text)
		}
		return v, nil
	case ColumnReal:
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(v) {
			return nil, fmt.Errorf("invalid number for %s: %q", col.Key, text)
		}
		return v, nil
	case ColumnTime:
		t, err := ParseTime(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", col.Key, err)
		}
		return t, nil
	case ColumnEnum:
		if !slices.Contains(col.Enum, trimmed) {
			return nil, fmt.Errorf("invalid value for %s: %q (allowed: %s)", col.Key, trimmed, strings.Join(col.Enum, ", "))
		}
		return trimmed, nil
	default:
		return text, nil
	}
}

// ValuesEqual reports whether two cell values are equal. Times compare by
// timestamp and numbers compare numerically regardless of representation.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

// CompareValues orders two non-nil values of the same column. The boolean is
// false when the values are not comparable.
func CompareValues(a, b any) (int, bool) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok1 := a.(string)
	sb, ok2 := b.(string)
	if !ok1 || !ok2 {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// FormatValue renders a value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

// DecodeValue converts a JSON-decoded wire value into a typed value for the
// column. Time columns are transmitted as epoch seconds.
func DecodeValue(col Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch col.Type {
	case ColumnTime:
		switch v := raw.(type) {
		case json.Number:
			secs, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", col.Key, err)
			}
			return epochToTime(secs), nil
		case float64:
			return epochToTime(v), nil
		case int64:
			return time.Unix(v, 0).UTC(), nil
		case string:
			return ParseTime(v)
		case time.Time:
			return v.UTC(), nil
		}
	case ColumnInteger:
		switch v := raw.(type) {
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return i, nil
			}
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", col.Key, err)
			}
			return int64(f), nil
		case float64:
			return int64(v), nil
		case int64:
			return v, nil
		}
	case ColumnReal:
		switch v := raw.(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", col.Key, err)
			}
			return f, nil
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
	default:
		switch v := raw.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		}
		return fmt.Sprint(raw), nil
	}
	return nil, fmt.Errorf("decoding %s: unexpected %T for %s column", col.Key, raw, col.Type)
}

// EncodeValue converts a typed value into its wire form.
func EncodeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Unix()
	}
	return v
}

func epochToTime(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// ColumnIndex returns the position of the column with the given key, or -1.
func ColumnIndex(columns []Column, key string) int {
	for i, c := range columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}
