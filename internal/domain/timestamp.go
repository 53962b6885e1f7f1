package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MillisecondThreshold separates epoch seconds from epoch milliseconds. In seconds it is
// the year 2286, so any larger value is treated as milliseconds.
const MillisecondThreshold = 10_000_000_000

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// NormalizeTimestamp converts a timestamp of unknown representation into epoch seconds.
// Zone-less date strings are read in time.Local.
func NormalizeTimestamp(v any) (int64, error) {
	return NormalizeTimestampIn(v, time.Local)
}

// NormalizeTimestampIn is NormalizeTimestamp with an explicit location for zone-less strings.
//
// Rules: numbers above MillisecondThreshold are milliseconds and are floored to seconds;
// other numbers are already seconds; strings holding a number follow the numeric rule;
// any other string is parsed as a calendar date-time.
func NormalizeTimestampIn(v any, loc *time.Location) (int64, error) {
	switch t := v.(type) {
	case int64:
		return normalizeInt(t), nil
	case int:
		return normalizeInt(int64(t)), nil
	case int32:
		return normalizeInt(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, NewValidationError("timestamp", "out of range")
		}
		return normalizeInt(int64(t)), nil
	case float64:
		return normalizeFloat(t)
	case float32:
		return normalizeFloat(float64(t))
	case json.Number:
		return NormalizeTimestampIn(string(t), loc)
	case time.Time:
		return t.Unix(), nil
	case *time.Time:
		if t == nil {
			return 0, NewValidationError("timestamp", "missing")
		}
		return t.Unix(), nil
	case string:
		return normalizeString(t, loc)
	case nil:
		return 0, NewValidationError("timestamp", "missing")
	default:
		return 0, NewValidationError("timestamp", fmt.Sprintf("unsupported type %T", v))
	}
}

func normalizeInt(t int64) int64 {
	if t > MillisecondThreshold {
		// floor division; t is positive here
		return t / 1000
	}
	return t
}

func normalizeFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, NewValidationError("timestamp", "not a finite number")
	}
	if f > MillisecondThreshold {
		f = f / 1000
	}
	f = math.Floor(f)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, NewValidationError("timestamp", "out of range")
	}
	return int64(f), nil
}

func normalizeString(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("timestamp", "empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return normalizeInt(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return normalizeFloat(f)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, NewValidationError("timestamp", fmt.Sprintf("unrecognized date-time %q", s))
}

// NormalizeOptionalTimestamp is NormalizeTimestamp for nullable columns; nil and "" stay nil.
func NormalizeOptionalTimestamp(v *string, loc *time.Location) (*int64, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	n, err := NormalizeTimestampIn(*v, loc)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
