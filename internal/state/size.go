package state

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

var (
	sizeWithUnit = regexp.MustCompile(`(?i)(\d+)\s*ml`)
	digitRun     = regexp.MustCompile(`\d+`)
)

// ParseSize normalizes the heterogeneous volume representations found in
// stored carts and add-to-cart requests to whole milliliters.
//
// Numbers are truncated down and floored at zero. Strings yield the first
// run of digits followed by an optional space and the unit marker "ml"
// (case-insensitive), falling back to the first run of digits anywhere in
// the string. Anything else parses to 0.
func ParseSize(v any) int {
	switch s := v.(type) {
	case int:
		if s < 0 {
			return 0
		}
		return s
	case int64:
		if s < 0 {
			return 0
		}
		return int(s)
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return 0
		}
		n := int(math.Floor(s))
		if n < 0 {
			return 0
		}
		return n
	case json.Number:
		f, err := s.Float64()
		if err != nil {
			return ParseSize(s.String())
		}
		return ParseSize(f)
	case string:
		if m := sizeWithUnit.FindStringSubmatch(s); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
		if m := digitRun.FindString(s); m != "" {
			n, _ := strconv.Atoi(m)
			return n
		}
		return 0
	default:
		return 0
	}
}
