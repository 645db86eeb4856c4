package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Values maps field keys to their configured values. Keys are unique across
// nested groups, so the map is flat.
type Values map[string]any

// Clone returns a shallow copy; a nil receiver yields nil.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// String returns the value of key formatted as a string; missing keys yield "".
func (v Values) String(key string) string {
	return formatValue(v[key])
}

// formatValue renders a value the way a user typed it. JSON numbers with no
// fraction print as integers, so 5551234567 is not shown in exponent form.
func formatValue(val any) string {
	switch x := val.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e18 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return formatValue(float64(x))
	}
	return fmt.Sprintf("%v", val)
}

// Bool returns the boolean value of key. Strings "true"/"false" are accepted.
func (v Values) Bool(key string) bool {
	b, _ := toBool(v[key])
	return b
}

func isEmpty(val any) bool {
	switch x := val.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func toBool(val any) (bool, bool) {
	switch x := val.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	return false, false
}

func toInt(val any) (int64, bool) {
	switch x := val.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// sameValue compares choice values loosely so "200" from a form and 200 from
// JSON decoding select the same option.
func sameValue(a, b any) bool {
	return formatValue(a) == formatValue(b)
}
