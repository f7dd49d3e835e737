package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/schema"
)

var (
	teamIDRe   = regexp.MustCompile(`^(I{1,3}|IV|V|VI{0,3}|IX|X|[1-9]|10)$`)
	romanRe    = regexp.MustCompile(`^(I{1,3}|IV|V|VI{0,3}|IX|X)$`)
	weekRe     = regexp.MustCompile(`^\d{1,2}$`)
	refRe      = regexp.MustCompile(`^[A-Z0-9\-/]{1,20}$`)
	uapDigits  = regexp.MustCompile(`^\d{1,3}$`)
	japDigits  = regexp.MustCompile(`^\d{1,4}$`)
	nonDigitRe = regexp.MustCompile(`[^\d]`)
)

type templateRule struct {
	field string
	re    *regexp.Regexp
	kind  string
}

// Expected field shapes per document type. Rules of kind "number" get a
// mechanical digit-strip autocorrect when the raw value fails the pattern.
var templateRules = map[constants.DocType][]templateRule{
	constants.Kosu: {
		{"Equipe", teamIDRe, "team_id"},
		{"Code ligne", digitsOnlyRe, "number"},
		{"Semaine", weekRe, "week_number"},
		{"Numéro OF", refRe, "reference"},
	},
	constants.NPT: {
		{"uap", uapDigits, "number"},
		{"equipe", romanRe, "roman_numeral"},
	},
	constants.Rebut: {
		{"equipe", romanRe, "roman_numeral"},
		{"jap", japDigits, "number"},
	},
}

// templateTarget returns the mapping the rules apply to: Kosu keeps header
// fields at the root, Rebut and NPT nest them under "header".
func templateTarget(rec map[string]any, docType constants.DocType) map[string]any {
	if docType == constants.Rebut || docType == constants.NPT {
		if h, ok := rec["header"].(map[string]any); ok {
			return h
		}
	}
	return rec
}

// validateAgainstTemplate checks fields against their expected patterns and
// returns human-readable warnings. Number fields get non-digits stripped in
// place when that yields something usable.
func validateAgainstTemplate(rec map[string]any, docType constants.DocType) []string {
	target := templateTarget(rec, docType)
	var warnings []string
	for _, rule := range templateRules[docType] {
		raw, isStr := target[rule.field].(string)
		if !isStr || raw == "" {
			continue
		}
		if rule.re.MatchString(strings.TrimSpace(raw)) {
			continue
		}
		warnings = append(warnings,
			fmt.Sprintf("Field '%s' value '%s' doesn't match expected %s pattern", rule.field, raw, rule.kind))
		if rule.kind == "number" {
			if clean := nonDigitRe.ReplaceAllString(raw, ""); clean != "" {
				target[rule.field] = clean
				warnings = append(warnings, fmt.Sprintf("  -> Auto-corrected to '%s'", clean))
			}
		}
	}
	return warnings
}

// crossValidateFields enforces the relationships between fields that single
// field checks cannot see: type rules for the Kosu line name/code pair, the
// same value leaking into several header boxes, and digit-only identifiers.
// Each fix is recorded as a correction message on the record.
func crossValidateFields(rec map[string]any, docType constants.DocType, logger *slog.Logger) map[string]any {
	var corrections []string

	switch docType {
	case constants.Kosu:
		corrections = crossValidateKosu(rec)
	case constants.NPT:
		if header, ok := rec["header"].(map[string]any); ok {
			corrections = cleanDigitField(header, "uap", uapDigits, "UAP")
		}
	case constants.Rebut:
		if header, ok := rec["header"].(map[string]any); ok {
			corrections = cleanDigitField(header, "jap", japDigits, "JAP")
		}
	}

	if len(corrections) > 0 {
		rec[keyCorrections] = corrections
		logger.Info("crossval.corrections", "doc_type", string(docType), "count", len(corrections))
	}
	return rec
}

func crossValidateKosu(rec map[string]any) []string {
	var corrections []string

	// Code ligne must be numeric
	switch code := rec["Code ligne"].(type) {
	case string:
		if code != "" {
			numeric := nonDigitRe.ReplaceAllString(strings.TrimSpace(code), "")
			switch {
			case numeric == "":
				corrections = append(corrections,
					fmt.Sprintf("INVALID: Code ligne '%s' must be numeric - clearing value", code))
				rec["Code ligne"] = nil
			case numeric != strings.TrimSpace(code):
				corrections = append(corrections,
					fmt.Sprintf("CLEANED: Code ligne '%s' -> '%s' (extracted numbers)", code, numeric))
				rec["Code ligne"] = numeric
			}
		}
	case nil, float64, int:
		// numbers are fine as-is
	default:
		corrections = append(corrections,
			fmt.Sprintf("INVALID: Code ligne '%v' must be numeric - clearing value", code))
		rec["Code ligne"] = nil
	}

	// Nom Ligne must be descriptive text, not a bare number
	switch nom := rec["Nom Ligne"].(type) {
	case string:
		if s, numeric := isDigitString(nom); numeric {
			corrections = append(corrections,
				fmt.Sprintf("INVALID: Nom Ligne '%s' should be descriptive text, not a number", nom))
			if schema.IsEmpty(rec["Code ligne"]) {
				corrections = append(corrections,
					fmt.Sprintf("MOVED: '%s' moved from Nom Ligne to Code ligne", nom))
				rec["Code ligne"] = s
			}
			rec["Nom Ligne"] = nil
		}
	case float64:
		corrections = append(corrections,
			fmt.Sprintf("INVALID: Nom Ligne '%v' should be text, not numeric", nom))
		if schema.IsEmpty(rec["Code ligne"]) {
			moved := strconv.FormatFloat(nom, 'f', -1, 64)
			corrections = append(corrections,
				fmt.Sprintf("MOVED: '%v' moved from Nom Ligne to Code ligne", nom))
			rec["Code ligne"] = moved
		}
		rec["Nom Ligne"] = nil
	case int:
		corrections = append(corrections,
			fmt.Sprintf("INVALID: Nom Ligne '%v' should be text, not numeric", nom))
		if schema.IsEmpty(rec["Code ligne"]) {
			corrections = append(corrections,
				fmt.Sprintf("MOVED: '%v' moved from Nom Ligne to Code ligne", nom))
			rec["Code ligne"] = strconv.Itoa(nom)
		}
		rec["Nom Ligne"] = nil
	}

	// same value in both line fields: the name is the suspect one
	if nom, ok := rec["Nom Ligne"].(string); ok {
		if code, ok := rec["Code ligne"].(string); ok &&
			strings.EqualFold(strings.TrimSpace(nom), strings.TrimSpace(code)) && strings.TrimSpace(nom) != "" {
			corrections = append(corrections,
				fmt.Sprintf("DUPLICATE: Same value '%s' in both Nom Ligne and Code ligne - clearing Nom Ligne", nom))
			rec["Nom Ligne"] = nil
		}
	}

	// duplicate scan across the remaining header fields, first seen wins
	seen := map[string]string{}
	for _, field := range []string{"Equipe", "Jour", "Semaine", "Numéro OF", "Ref PF"} {
		v, ok := rec[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(v))
		if first, dup := seen[key]; dup {
			corrections = append(corrections,
				fmt.Sprintf("DUPLICATE VALUE: '%s' appears in both '%s' and '%s'", v, first, field))
			rec[field] = nil
		} else {
			seen[key] = field
		}
	}

	if equipe, ok := rec["Equipe"].(string); ok && equipe != "" && !teamIDRe.MatchString(strings.TrimSpace(equipe)) {
		corrections = append(corrections,
			fmt.Sprintf("INVALID TEAM ID: '%s' - should be Roman numeral I-X or digit 1-10", equipe))
		rec["Equipe"] = nil
	}

	if semaine, ok := rec["Semaine"].(string); ok && semaine != "" {
		if digits := nonDigitRe.ReplaceAllString(semaine, ""); digits != "" {
			if week, err := strconv.Atoi(digits); err == nil && (week < 1 || week > 53) {
				corrections = append(corrections,
					fmt.Sprintf("INVALID WEEK: '%s' - should be 1-53", semaine))
				rec["Semaine"] = nil
			}
		}
	}
	return corrections
}

// cleanDigitField salvages digits from a polluted identifier, or nulls it
// when nothing salvageable remains.
func cleanDigitField(target map[string]any, field string, re *regexp.Regexp, label string) []string {
	v, ok := target[field].(string)
	if !ok || v == "" || re.MatchString(strings.TrimSpace(v)) {
		return nil
	}
	if clean := nonDigitRe.ReplaceAllString(v, ""); clean != "" {
		target[field] = clean
		return []string{fmt.Sprintf("CLEANED %s: '%s' -> '%s'", label, v, clean)}
	}
	target[field] = nil
	return []string{fmt.Sprintf("INVALID %s: '%s' - should be digits only", label, v)}
}

// finalSanityCheck is the last gate before the record leaves the pipeline:
// re-enforce the type and uniqueness rules in case a later pass (recovery,
// re-extraction) reintroduced a violation.
func finalSanityCheck(rec map[string]any, docType constants.DocType, logger *slog.Logger) map[string]any {
	var issues []string

	switch docType {
	case constants.Kosu:
		switch code := rec["Code ligne"].(type) {
		case nil, float64, int:
		case string:
			if code != "" && !digitsOnlyRe.MatchString(strings.TrimSpace(code)) {
				issues = append(issues, fmt.Sprintf("CRITICAL: Code ligne '%s' must be numeric only", code))
				rec["Code ligne"] = nil
			}
		default:
			issues = append(issues, fmt.Sprintf("CRITICAL: Code ligne '%v' has invalid type", code))
			rec["Code ligne"] = nil
		}

		switch nom := rec["Nom Ligne"].(type) {
		case string:
			if _, numeric := isDigitString(nom); numeric {
				issues = append(issues, fmt.Sprintf("CRITICAL: Nom Ligne '%s' should be text, not numbers", nom))
				rec["Nom Ligne"] = nil
			}
		case float64, int:
			issues = append(issues, fmt.Sprintf("CRITICAL: Nom Ligne '%v' should be text, not numeric", nom))
			rec["Nom Ligne"] = nil
		}

		seen := map[string]string{}
		for _, field := range []string{"Nom Ligne", "Code ligne", "Equipe"} {
			v, ok := rec[field].(string)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(v))
			if first, dup := seen[key]; dup {
				issues = append(issues, fmt.Sprintf("CRITICAL: Duplicate value '%s' in '%s' and '%s'", v, field, first))
				rec[field] = nil
			} else {
				seen[key] = field
			}
		}

		if equipe := rec["Equipe"]; !schema.IsEmpty(equipe) &&
			!teamIDRe.MatchString(strings.TrimSpace(fmt.Sprint(equipe))) {
			issues = append(issues, fmt.Sprintf("INVALID: Equipe '%v' should be Roman numeral I-X or digit 1-10", equipe))
			rec["Equipe"] = nil
		}

	case constants.NPT:
		if header, ok := rec["header"].(map[string]any); ok {
			if uap := header["uap"]; !schema.IsEmpty(uap) &&
				!uapDigits.MatchString(strings.TrimSpace(fmt.Sprint(uap))) {
				issues = append(issues, fmt.Sprintf("INVALID: UAP '%v' must be 1-3 digits only", uap))
				header["uap"] = nil
			}
		}

	case constants.Rebut:
		if header, ok := rec["header"].(map[string]any); ok {
			if jap := header["jap"]; !schema.IsEmpty(jap) &&
				!japDigits.MatchString(strings.TrimSpace(fmt.Sprint(jap))) {
				issues = append(issues, fmt.Sprintf("INVALID: JAP '%v' must be digits only", jap))
				header["jap"] = nil
			}
		}
	}

	if len(issues) > 0 {
		rec[keySanityIssues] = issues
		logger.Info("sanity.issues", "doc_type", string(docType), "count", len(issues))
	}
	return rec
}
