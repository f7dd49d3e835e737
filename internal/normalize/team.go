package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// RomanNumerals maps team numbers 1-10 to their canonical Roman form.
var RomanNumerals = map[int]string{
	1: "I", 2: "II", 3: "III", 4: "IV", 5: "V",
	6: "VI", 7: "VII", 8: "VIII", 9: "IX", 10: "X",
}

var validRomans = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RomanNumerals))
	for _, r := range RomanNumerals {
		m[r] = struct{}{}
	}
	return m
}()

var nonRomanCharsRe = regexp.MustCompile(`[^IVXLCDM]`)

// Equipe canonicalizes a team/shift identifier to a Roman numeral I..X.
// Accepts numbers 1-10, digit strings, or an already-valid Roman numeral;
// "EQUIPE"/"ÉQUIPE"/"TEAM" labels are stripped first. Anything else is null.
func Equipe(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case float64:
		if r, ok := RomanNumerals[int(v)]; ok && v == float64(int(v)) {
			return r, true
		}
		return "", false
	case int:
		if r, ok := RomanNumerals[v]; ok {
			return r, true
		}
		return "", false
	}

	s, ok := stringValue(value)
	if !ok {
		return "", false
	}
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "É", "E")
	s = strings.ReplaceAll(s, "EQUIPE", "")
	s = strings.ReplaceAll(s, "TEAM", "")
	s = strings.TrimSpace(s)

	if n, err := strconv.Atoi(s); err == nil {
		if r, ok := RomanNumerals[n]; ok {
			return r, true
		}
		return "", false
	}

	s = nonRomanCharsRe.ReplaceAllString(s, "")
	if _, ok := validRomans[s]; ok {
		return s, true
	}
	return "", false
}
