package store

import (
	"reflect"
	"time"
)

// Fields is the schemaless body of a record: field name to any JSON-like
// scalar or nested value (map[string]any, []any).
type Fields map[string]any

// Record is a keyed, field-structured value persisted within a collection.
type Record struct {
	Key       string
	Fields    Fields
	UpdatedAt time.Time
}

// Filter selects records in Query. A nil Filter matches every record.
type Filter func(Record) bool

// Match reports whether r satisfies f
func (f Filter) Match(r Record) bool {
	return f == nil || f(r)
}

// FieldEquals matches records whose field name equals value.
func FieldEquals(name string, value any) Filter {
	return func(r Record) bool {
		v, ok := r.Fields[name]
		return ok && reflect.DeepEqual(v, value)
	}
}

// UpdatedSince matches records written at or after t.
func UpdatedSince(t time.Time) Filter {
	return func(r Record) bool {
		return !r.UpdatedAt.Before(t)
	}
}

// And matches records satisfying every filter.
func And(filters ...Filter) Filter {
	return func(r Record) bool {
		for _, f := range filters {
			if !f.Match(r) {
				return false
			}
		}
		return true
	}
}

// Clone returns a deep copy of f. Nested maps and slices are copied so the
// caller and the store never share mutable state.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return t.Clone()
	case map[string]any:
		return map[string]any(Fields(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case map[string]float64:
		out := make(map[string]float64, len(t))
		for k, n := range t {
			out[k] = n
		}
		return out
	default:
		return v
	}
}
