package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Dates arrive as handwriting transcriptions: any delimiter, two- or
// four-digit years, concatenated DDMMYYYY, or a French month name. Everything
// valid is canonicalized to zero-padded DD/MM/YYYY.

type datePattern struct {
	re     *regexp.Regexp
	layout string // dmy, ymd, dmy2, french
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`), "dmy"},
	{regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`), "dmy"},
	{regexp.MustCompile(`^(\d{1,2})\s+(\d{1,2})\s+(\d{4})$`), "dmy"},
	{regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`), "ymd"},
	{regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d{1,2})$`), "ymd"},
	{regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2})$`), "dmy2"},
	{regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2})$`), "dmy2"},
	{regexp.MustCompile(`^(\d{2})(\d{2})(\d{4})$`), "dmy"},
	{regexp.MustCompile(`(?i)^(\d{1,2})\s+(janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre)\s+(\d{4})$`), "french"},
}

var frenchMonths = map[string]int{
	"janvier": 1, "février": 2, "fevrier": 2, "mars": 3,
	"avril": 4, "mai": 5, "juin": 6, "juillet": 7,
	"août": 8, "aout": 8, "septembre": 9, "octobre": 10,
	"novembre": 11, "décembre": 12, "decembre": 12,
}

var digitsOnlyRe = regexp.MustCompile(`^\d+$`)

// Date normalizes a date value to DD/MM/YYYY. Bare numeric strings of up to
// five digits are too ambiguous to interpret and come back unchanged. The
// second return is false when the input is empty or unparseable.
func Date(value any) (string, bool) {
	s, ok := stringValue(value)
	if !ok {
		return "", false
	}

	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var day, month, year int
		var err error
		switch p.layout {
		case "dmy", "dmy2":
			day, month, year, err = atoiTriple(m[1], m[2], m[3])
			if err == nil && p.layout == "dmy2" {
				if year < 50 {
					year += 2000
				} else {
					year += 1900
				}
			}
		case "ymd":
			year, month, day, err = atoiTriple(m[1], m[2], m[3])
		case "french":
			day, err = strconv.Atoi(m[1])
			month = frenchMonths[strings.ToLower(m[2])]
			var yerr error
			year, yerr = strconv.Atoi(m[3])
			if err == nil {
				err = yerr
			}
		}
		if err != nil {
			continue
		}
		if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
			continue
		}
		if !isRealDate(day, month, year) {
			continue
		}
		return fmt.Sprintf("%02d/%02d/%04d", day, month, year), true
	}

	// A bare short number could be a day-of-month or a week number; there is
	// no way to disambiguate, so it passes through untouched.
	if digitsOnlyRe.MatchString(s) && len(s) <= 5 {
		return s, true
	}
	return "", false
}

func atoiTriple(a, b, c string) (int, int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, 0, err
	}
	z, err := strconv.Atoi(c)
	if err != nil {
		return 0, 0, 0, err
	}
	return x, y, z, nil
}

// isRealDate rejects calendar impossibilities like 31/02.
func isRealDate(day, month, year int) bool {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month && t.Year() == year
}

// stringValue coerces a raw extracted value to a trimmed string, reporting
// false for null-ish input (nil, "", "null").
func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "null") {
			return "", false
		}
		return s, true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v)), true
	}
}
