package ports

import (
	"fmt"
	"strings"
	"time"
)

// MatchRecord reports whether a record satisfies every filter. Store
// implementations share it so server-side and client-side filtering agree.
func MatchRecord(record Record, filters []Filter) bool {
	for _, f := range filters {
		got := record[f.Field]
		switch f.Op {
		case OpEq:
			if CompareValues(got, f.Value) != 0 {
				return false
			}
		case OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return false
			}
			str, _ := got.(string)
			found := false
			for _, v := range values {
				if v == str {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpGe:
			if CompareValues(got, f.Value) < 0 {
				return false
			}
		case OpLe:
			if CompareValues(got, f.Value) > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// CompareValues compares two loosely-typed record values: numbers as
// float64, RFC 3339 strings and time.Time as instants, everything else by
// string form. Returns -1, 0 or 1.
func CompareValues(a, b any) int {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// CloneRecord deep-copies a record so callers never alias stored state.
func CloneRecord(record Record) Record {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
