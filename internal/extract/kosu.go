package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm"
	"github.com/atelierflow/formscan/internal/normalize"
	"github.com/atelierflow/formscan/internal/schema"
)

// verifyKosuTableRows caps the hourly rows sent for verification; the form
// has eight tracked hours.
const verifyKosuTableRows = 8

var digitsOnlyRe = regexp.MustCompile(`^\d+$`)

func (e *Extractor) kosuPasses(base *imaging.Page) []pass {
	return []pass{
		{"kosu.verify_header", func(ctx context.Context, rec map[string]any) map[string]any {
			return e.verifyKosuHeader(ctx, base, rec)
		}},
		{"kosu.recover_header", func(ctx context.Context, rec map[string]any) map[string]any {
			return e.recoverKosuHeader(ctx, base, rec)
		}},
		{"kosu.verify_table", func(ctx context.Context, rec map[string]any) map[string]any {
			return e.verifyKosuTable(ctx, base, rec)
		}},
		{"kosu.post_process", func(_ context.Context, rec map[string]any) map[string]any {
			return postProcessKosu(rec)
		}},
	}
}

func isDigitString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != "" && digitsOnlyRe.MatchString(s)
}

// verifyKosuHeader fixes the classic Nom Ligne / Code ligne swap mechanically
// first, then asks the model to re-check the header only when fields are
// duplicated or still empty. A clean header skips the model call.
func (e *Extractor) verifyKosuHeader(ctx context.Context, base *imaging.Page, rec map[string]any) map[string]any {
	// mechanical pre-fix: a purely numeric Nom Ligne belongs in Code ligne
	if s, numeric := isDigitString(rec["Nom Ligne"]); numeric {
		if schema.IsEmpty(rec["Code ligne"]) || rec["Code ligne"] == rec["Nom Ligne"] {
			e.logger.Info("kosu.prefix.numeric_nom_ligne", "value", s)
			rec["Code ligne"] = s
			rec["Nom Ligne"] = nil
		}
	}
	// and a lettered Code ligne belongs in Nom Ligne
	if s, ok := rec["Code ligne"].(string); ok && strings.TrimSpace(s) != "" && !digitsOnlyRe.MatchString(strings.TrimSpace(s)) {
		if schema.IsEmpty(rec["Nom Ligne"]) {
			e.logger.Info("kosu.prefix.text_code_ligne", "value", s)
			rec["Nom Ligne"] = strings.TrimSpace(s)
			rec["Code ligne"] = nil
		}
	}

	summary := make(map[string]any, len(schema.KosuHeaderFields))
	for _, f := range schema.KosuHeaderFields {
		summary[f] = rec[f]
	}

	// flag the same value appearing under several header labels
	var duplicateIssues []string
	byValue := map[string][]string{}
	for _, f := range schema.KosuHeaderFields {
		if v := summary[f]; !schema.IsEmpty(v) {
			key := fmt.Sprint(v)
			byValue[key] = append(byValue[key], f)
		}
	}
	var dupValues []string
	for v, fields := range byValue {
		if len(fields) > 1 {
			dupValues = append(dupValues, v)
		}
	}
	sort.Strings(dupValues)
	for _, v := range dupValues {
		duplicateIssues = append(duplicateIssues,
			fmt.Sprintf("SUSPICIOUS: '%s' appears in multiple fields: %v", v, byValue[v]))
	}

	if len(duplicateIssues) == 0 && !schema.IsEmpty(rec["Nom Ligne"]) && !schema.IsEmpty(rec["Code ligne"]) {
		e.logger.Debug("kosu.header_ok_skip_verify")
		return rec
	}

	issueNote := "Some fields are empty"
	if len(duplicateIssues) > 0 {
		issueNote = strings.Join(duplicateIssues, "; ")
	}
	prompt := "Verify EACH header field separately in this Kosu form. Current extraction: " + mustJSON(summary) + "\n" +
		"ATTENTION: Issues detected: " + issueNote + "\n" +
		"Look at the form and verify EACH field independently:\n" +
		"- 'Nom Ligne': MUST be descriptive TEXT (like 'A41S', 'Ligne A', 'Production' etc) - NOT just numbers\n" +
		"- 'Code ligne': MUST be NUMERIC ONLY (like '7', '15', '25' etc) - NOT text\n" +
		"- 'Equipe': Team identifier (roman numeral or number)\n" +
		"- Other fields: Check actual handwritten values\n\n" +
		"Return JSON only: {\"header_corrections\": [{\"field\": \"field_name\", \"extracted_value\": \"current\", \"correct_value\": \"actual_handwritten_or_null\", \"reason\": \"why_correcting\"}]}\n" +
		"CRITICAL RULES:\n" +
		"- Look at EACH field location separately on the form (check the form field labels)\n" +
		"- If two fields have same value, one of them is WRONG - find the correct value for each field location\n" +
		"- Copy EXACTLY what is handwritten in each specific field location\n" +
		"- If field is blank/illegible -> null\n" +
		"- 'Nom Ligne' and 'Code ligne' are DIFFERENT fields and MUST have DIFFERENT values with DIFFERENT types"

	text, err := e.gw.Generate(ctx, prompt, []*imaging.Page{base})
	if err != nil {
		e.logger.Warn("kosu.verify_header.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "kosu.verify_header", e.logger)
	for _, c := range rowMaps(parsed["header_corrections"]) {
		field, _ := c["field"].(string)
		if _, present := rec[field]; !present {
			continue
		}
		e.logger.Info("kosu.header_corrected",
			"field", field, "old", c["extracted_value"], "new", c["correct_value"], "reason", c["reason"])
		rec[field] = c["correct_value"]
	}
	return rec
}

// recoverKosuHeader asks for values only for header fields still empty.
func (e *Extractor) recoverKosuHeader(ctx context.Context, base *imaging.Page, rec map[string]any) map[string]any {
	current := make(map[string]any, len(schema.KosuHeaderFields))
	empty := map[string]struct{}{}
	var emptyList []string
	for _, f := range schema.KosuHeaderFields {
		current[f] = rec[f]
		if schema.IsEmpty(rec[f]) {
			empty[f] = struct{}{}
			emptyList = append(emptyList, f)
		}
	}
	if len(empty) == 0 {
		return rec
	}

	prompt := "Find handwritten values for these empty header fields: " + mustJSON(emptyList) + "\n" +
		"Current values: " + mustJSON(current) + "\n" +
		"Return JSON only: {\"recovered_fields\": [{\"field\": \"field_name\", \"value\": \"handwritten_value_or_null\"}]}\n" +
		"RULES: Extract EXACTLY what is handwritten. No guessing or interpretation."

	text, err := e.gw.Generate(ctx, prompt, []*imaging.Page{base})
	if err != nil {
		e.logger.Warn("kosu.recover_header.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "kosu.recover_header", e.logger)
	for _, r := range rowMaps(parsed["recovered_fields"]) {
		field, _ := r["field"].(string)
		if _, wanted := empty[field]; !wanted || schema.IsEmpty(r["value"]) {
			continue
		}
		e.logger.Info("kosu.header_recovered", "field", field, "value", r["value"])
		rec[field] = r["value"]
	}
	return rec
}

// verifyKosuTable re-checks the populated hourly rows against the scan and
// applies per-cell corrections. Only existing cells may be corrected.
func (e *Extractor) verifyKosuTable(ctx context.Context, base *imaging.Page, rec map[string]any) map[string]any {
	suivi := rowMaps(rec["Suivi horaire"])
	if len(suivi) == 0 {
		return rec
	}

	type tableRow struct {
		RowIndex int            `json:"row_index"`
		Heure    any            `json:"heure"`
		HasData  bool           `json:"has_data"`
		Values   map[string]any `json:"values"`
	}
	var summary []tableRow
	limit := len(suivi)
	if limit > verifyKosuTableRows {
		limit = verifyKosuTableRows
	}
	for i := 0; i < limit; i++ {
		values := map[string]any{}
		for k, v := range suivi[i] {
			if k != "Heure" && !schema.IsEmpty(v) {
				values[k] = v
			}
		}
		if len(values) > 0 {
			summary = append(summary, tableRow{i, suivi[i]["Heure"], true, values})
		}
	}

	prompt := "Verify handwritten table data for Suivi horaire. Current extraction: " + mustJSON(summary) + "\n" +
		"Check if the extracted values match actual handwriting in the hourly tracking table.\n" +
		"Return JSON only: {\"table_corrections\": [{\"row_index\": i, \"field\": \"field_name\", \"correct_value\": \"actual_handwritten_or_null\"}]}\n" +
		"RULES: Only extract what is clearly handwritten. No calculations or interpretations."

	text, err := e.gw.Generate(ctx, prompt, []*imaging.Page{base})
	if err != nil {
		e.logger.Warn("kosu.verify_table.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "kosu.verify_table", e.logger)
	for _, c := range rowMaps(parsed["table_corrections"]) {
		idxF, ok := numericOf(c["row_index"])
		if !ok {
			continue
		}
		idx := int(idxF)
		field, _ := c["field"].(string)
		if idx < 0 || idx >= len(suivi) || c["correct_value"] == nil {
			continue
		}
		if _, present := suivi[idx][field]; present {
			suivi[idx][field] = c["correct_value"]
		}
	}
	return rec
}

// postProcessKosu does the mechanical cleanup that needs no model: Equipe
// digits become Roman numerals, hourly rows without any data are dropped, and
// plain digit strings in the shift totals become ints. Values that resist
// conversion are kept as extracted.
func postProcessKosu(rec map[string]any) map[string]any {
	switch v := rec["Equipe"].(type) {
	case string:
		if s, numeric := isDigitString(v); numeric {
			if n, err := strconv.Atoi(s); err == nil {
				if r, ok := normalize.RomanNumerals[n]; ok {
					rec["Equipe"] = r
				}
			}
		}
	case float64:
		if r, ok := normalize.RomanNumerals[int(v)]; ok {
			rec["Equipe"] = r
		}
	case int:
		if r, ok := normalize.RomanNumerals[v]; ok {
			rec["Equipe"] = r
		}
	}

	if rows, ok := rec["Suivi horaire"].([]any); ok {
		kept := make([]any, 0, len(rows))
		for _, r := range rows {
			row, isMap := r.(map[string]any)
			if !isMap {
				continue
			}
			for _, v := range row {
				if !schema.IsEmpty(v) {
					kept = append(kept, row)
					break
				}
			}
		}
		rec["Suivi horaire"] = kept
	}

	if totals, ok := rec["Total / Equipe"].(map[string]any); ok {
		for k, v := range totals {
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			s = strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), " ", "")
			if digitsOnlyRe.MatchString(s) {
				if n, err := strconv.Atoi(s); err == nil {
					totals[k] = n
				}
			}
		}
	}
	return rec
}
