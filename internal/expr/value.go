package expr

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Unknown marks a value that is only known after apply.
type Unknown struct{}

func (Unknown) String() string { return "(known after apply)" }

// UnknownValue is the canonical unknown value.
var UnknownValue = Unknown{}

// IsUnknown reports whether v itself is unknown.
func IsUnknown(v any) bool {
	_, ok := v.(Unknown)
	return ok
}

// ContainsUnknown reports whether v or any nested element is unknown.
func ContainsUnknown(v any) bool {
	switch t := v.(type) {
	case Unknown:
		return true
	case []any:
		for _, e := range t {
			if ContainsUnknown(e) {
				return true
			}
		}
	case map[string]any:
		for _, e := range t {
			if ContainsUnknown(e) {
				return true
			}
		}
	}
	return false
}

// Normalize converts decoder output (ints, typed slices and maps, YAML maps
// keyed by any) into the JSON shapes the engine works with.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, Unknown:
		return t
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	default:
		return t
	}
}

// Stringify converts a primitive value for string interpolation.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return FormatNumber(t), nil
	case []any:
		return "", fmt.Errorf("cannot interpolate a list into a string")
	case map[string]any:
		return "", fmt.Errorf("cannot interpolate a map into a string")
	default:
		return fmt.Sprint(t), nil
	}
}

// FormatNumber renders integral numbers without a decimal point.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// AsInt converts a number (or numeric string) into an int.
func AsInt(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%v is not a whole number", t)
		}
		return int(t), nil
	case string:
		i, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", t)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected a number, got %s", TypeName(v))
	}
}

// TypeName names the type of a value in user-facing messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
