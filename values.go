package queryset

import (
	"cmp"
	"reflect"
	"strings"
	"time"
)

// DateLayout is accepted for date operands given as strings.
const DateLayout = "2006-01-02"

// normalize converts v to the canonical Go type of kind:
// int64 for KindInt and KindRef, float64, string, time.Time and bool.
func normalize(kind Kind, v any) (any, bool) {
	if v == nil {
		return nil, true
	}

	switch kind {
	case KindInt, KindRef:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint()), true
		}
	case KindFloat:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, true
		}
	case KindDate:
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			parsed, err := time.Parse(DateLayout, t)
			if err == nil {
				return parsed, true
			}
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, true
		}
	}

	return nil, false
}

// compareValues orders two non-nil normalized values of the same kind.
func compareValues(a, b any) int {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y)
		case float64:
			return cmp.Compare(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmp.Compare(x, y)
		case int64:
			return cmp.Compare(x, float64(y))
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}

	return 0
}

// compareNullable orders nil before every other value.
func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return compareValues(a, b)
	}
}

func equalValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return compareNullable(a, b) == 0 && (a == nil) == (b == nil)
}

// groupKey makes equal dates equal map keys.
func groupKey(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}
