package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/pkg/utils"
)

const dateLayout = "2006-01-02"

var knownTypes = map[string]bool{"string": true, "int": true, "float": true, "bool": true, "date": true}

// missingRequired returns the first required field that is absent, nil or blank.
func missingRequired(rec model.Record, required []string) (string, bool) {
	for _, field := range required {
		v, ok := rec.Get(field)
		if !ok || v == nil {
			return field, true
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return field, true
		}
	}
	return "", false
}

// coerce converts v to the named type. nil passes through untouched.
func coerce(v any, typ string) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch typ {
	case "string":
		return utils.Text(v), nil
	case "int":
		switch val := v.(type) {
		case int64:
			return val, nil
		case int:
			return int64(val), nil
		case float64:
			if math.IsInf(val, 0) || val != math.Trunc(val) {
				return nil, fmt.Errorf("%v is not a whole number", val)
			}
			return int64(val), nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to int", val)
			}
			return i, nil
		}
	case "float":
		if f, ok := utils.Numeric(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("cannot convert %v (%T) to float", v, v)
	case "bool":
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to bool", val)
			}
			return b, nil
		}
	case "date":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cannot convert %v (%T) to date", v, v)
		}
		s = strings.TrimSpace(s)
		if d, err := time.Parse(dateLayout, s); err == nil {
			return d.Format(dateLayout), nil
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.Format(dateLayout), nil
		}
		return nil, fmt.Errorf("cannot parse %q as date", s)
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}
	return nil, fmt.Errorf("cannot convert %v (%T) to %s", v, v, typ)
}
