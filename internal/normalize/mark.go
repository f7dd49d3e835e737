package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	plainDigitsRe = regexp.MustCompile(`^\d+$`)
	countTimesRe  = regexp.MustCompile(`^(\d+)X$`)
	tallyRe       = regexp.MustCompile(`^[X✓✔]+$`)
)

// MarkCount parses a raw handwritten defect mark into a tally count.
// "3" -> 3, "2X" -> 2, "XXX" -> 3, "✔✔" -> 2; anything else has no count.
func MarkCount(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case nil:
		return 0, false
	}

	s, ok := stringValue(value)
	if !ok {
		return 0, false
	}
	s = strings.ToUpper(s)

	if plainDigitsRe.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if m := countTimesRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if tallyRe.MatchString(s) {
		return utf8.RuneCountInString(s), true
	}
	return 0, false
}
