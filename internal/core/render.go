package core

import (
	"fmt"
	"math"
	"strconv"
)

// FormatCell renders a cell to its canonical string form.
// nil renders as "", booleans as "true"/"false", and floats without
// trailing zeros or exponent ("3", "2.5", "1000000").
func FormatCell(v Cell) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RenderRecord renders every cell of a record.
func RenderRecord(r Record) []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = FormatCell(v)
	}
	return out
}
