package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var nonDigitsRe = regexp.MustCompile(`[^0-9]`)

// UAP canonicalizes a production-zone code to a 1-3 digit numeral string.
// Numbers must fall in (0, 1000); strings are stripped of a literal "UAP"
// prefix and all other non-digit characters before the length check.
func UAP(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case float64:
		iv := int(v)
		if iv > 0 && iv < 1000 {
			return strconv.Itoa(iv), true
		}
		return "", false
	case int:
		if v > 0 && v < 1000 {
			return strconv.Itoa(v), true
		}
		return "", false
	}

	s, ok := stringValue(value)
	if !ok {
		return "", false
	}
	s = strings.ToUpper(s)
	s = strings.TrimSpace(strings.ReplaceAll(s, "UAP", ""))
	s = nonDigitsRe.ReplaceAllString(s, "")
	if s == "" || len(s) > 3 {
		return "", false
	}
	return s, true
}
