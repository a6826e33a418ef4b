package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseValue turns a raw text cell into int64, float64 or a trimmed string.
// NaN and infinities stay strings.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, ok := parseFinite(s); ok {
		return f
	}
	return s
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Numeric converts supported scalar types to float64. The bool is false when
// v is not a finite number and cannot be parsed as one.
func Numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), finite(float64(val))
	case float64:
		return val, finite(val)
	case string:
		return parseFinite(strings.TrimSpace(val))
	default:
		return 0, false
	}
}

// Text renders a scalar for flat-file output. nil becomes the empty string.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
