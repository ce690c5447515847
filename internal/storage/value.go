package storage

import (
	"math"
	"strconv"
	"strings"
)

// ToNumber coerces a JSON value to a number the way loose comparisons do:
// booleans become 0/1, numeric strings parse, nil becomes 0.
// The second result is false when the value has no numeric reading.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsNumber reports whether v holds a numeric JSON value.
func IsNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

// LooseEqual compares two JSON values with number/string/bool coercion.
// nil only equals nil. Objects and arrays are never equal to anything.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	case map[string]any, Record, []any:
		return false
	}
	switch b.(type) {
	case map[string]any, Record, []any:
		return false
	}
	x, ok1 := ToNumber(a)
	y, ok2 := ToNumber(b)
	return ok1 && ok2 && x == y
}

// StrictEqual compares scalars by type and value. Numbers of different Go
// types are compared numerically.
func StrictEqual(a, b any) bool {
	if IsNumber(a) && IsNumber(b) {
		x, _ := ToNumber(a)
		y, _ := ToNumber(b)
		return x == y
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// Truthy reports the boolean reading of a JSON value.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// String renders a scalar the way it would appear when joined into a key.
// nil renders as the empty string.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = String(x)
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

// matchValue is the equality used by Query: case-insensitive for two
// strings, loose otherwise.
func matchValue(want, got any) bool {
	ws, ok1 := want.(string)
	gs, ok2 := got.(string)
	if ok1 && ok2 {
		return strings.EqualFold(ws, gs)
	}
	return LooseEqual(want, got)
}
