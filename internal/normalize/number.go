package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var decimalRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Number coerces a handwritten quantity to a typed number: thousands spaces
// stripped, comma decimal separator accepted, integral values as int. Returns
// false for anything that is not fully numeric.
func Number(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case float64:
		if v == float64(int64(v)) {
			return int(v), true
		}
		return v, true
	case int:
		return v, true
	}

	s, ok := stringValue(value)
	if !ok {
		return nil, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if !decimalRe.MatchString(s) {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	if f == float64(int64(f)) {
		return int(f), true
	}
	return f, true
}

// NumberValue extracts a float from either a typed number or a numeric
// string, for comparisons where the representation does not matter.
func NumberValue(value any) (float64, bool) {
	n, ok := Number(value)
	if !ok {
		return 0, false
	}
	switch v := n.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
