package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm"
	"github.com/atelierflow/formscan/internal/normalize"
	"github.com/atelierflow/formscan/internal/schema"
)

// defautsMaxCount is the sanity cap for a single cell: more than this many
// marks in one cell is a misread, and the count is nulled while the raw mark
// stays.
const defautsMaxCount = 50

var defautsCodeRe = regexp.MustCompile(`^[A-Z0-9\-]{1,10}$`)

// extractDefauts runs the Défauts grid path: a single primary call (the tally
// grid gains nothing from whole-document retries), then verify, recover,
// re-verify, normalize, refine, and daily totals.
func (e *Extractor) extractDefauts(ctx context.Context, req Request) *Result {
	pages := []*imaging.Page{req.Page}
	if req.SourcePath != "" {
		pages = append(pages, imaging.GatherSiblingCrops(req.SourcePath, e.logger)...)
	}

	text, err := e.gw.Generate(ctx, defautsPrompt, pages)
	if err != nil {
		e.logger.Warn("defauts.primary_failed", "error", err)
		return errorResult(constants.Defauts, "primary extraction failed")
	}
	rec := llm.ParseObject(text, nil, "defauts.primary", e.logger)
	if len(rec) == 0 {
		return errorResult(constants.Defauts, "primary extraction failed")
	}
	rec = schema.ApplyDefaults(rec, constants.Defauts)

	verify := func(ctx context.Context, r map[string]any) map[string]any {
		return e.verifyDefautsMarks(ctx, pages, r)
	}
	rec = e.runPasses(ctx, rec, []pass{
		{"defauts.verify", verify},
		{"defauts.recover", func(ctx context.Context, r map[string]any) map[string]any {
			return e.recoverDefautsMarks(ctx, pages, r)
		}},
		{"defauts.verify", verify},
	})

	records := normalizeDefautsRecords(anySlice(rec["recorded_defects"]))
	records = refineDefautsRecords(records)
	rec["recorded_defects"] = records
	rec["defects_log"] = records
	rec["summary_data"] = map[string]any{"daily_totals": defautsDailyTotals(records)}
	rec = normalizeDates(rec, constants.Defauts, e.logger)

	e.logger.Info("defauts.marks_refined", "count", len(records))
	return &Result{
		Status:       "success",
		DocumentType: string(constants.Defauts),
		Data:         rec,
		Remark:       fmt.Sprintf("Défauts extraction complete: %d marks (refined)", len(records)),
	}
}

// verifyDefautsMarks drops entries the model flags as template artifacts.
// Entries without a verdict are kept.
func (e *Extractor) verifyDefautsMarks(ctx context.Context, pages []*imaging.Page, rec map[string]any) map[string]any {
	recs := anySlice(rec["recorded_defects"])
	if len(recs) == 0 {
		return rec
	}

	type brief struct {
		Index   int `json:"index"`
		Code    any `json:"code"`
		Day     any `json:"day"`
		Station any `json:"station"`
		RawMark any `json:"raw_mark"`
	}
	entries := make([]brief, 0, len(recs))
	for i, v := range recs {
		m, _ := v.(map[string]any)
		entries = append(entries, brief{i, m["code"], m["day"], m["station"], m["raw_mark"]})
	}

	prompt := defautsVerifyPrompt + "\nEntries:" + mustJSON(entries)
	text, err := e.gw.Generate(ctx, prompt, pages)
	if err != nil {
		e.logger.Warn("defauts.verify.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "defauts.verify", e.logger)

	drop := map[int]bool{}
	for _, v := range rowMaps(parsed["verified"]) {
		idx, ok := numericOf(v["index"])
		if !ok {
			continue
		}
		if keep, isBool := v["keep"].(bool); isBool && !keep {
			drop[int(idx)] = true
		}
	}
	if len(drop) == 0 {
		return rec
	}
	kept := make([]any, 0, len(recs))
	for i, v := range recs {
		if !drop[i] {
			kept = append(kept, v)
		}
	}
	e.logger.Info("defauts.marks_dropped", "count", len(recs)-len(kept))
	rec["recorded_defects"] = kept
	return rec
}

// recoverDefautsMarks asks for marks missing from the current list and
// appends the genuinely new ones. A candidate without a raw mark, or whose
// (code, day, station) cell is already present, is ignored.
func (e *Extractor) recoverDefautsMarks(ctx context.Context, pages []*imaging.Page, rec map[string]any) map[string]any {
	recs := anySlice(rec["recorded_defects"])

	cellKey := func(m map[string]any) string {
		return fmt.Sprintf("%v|%v|%v", m["code"], m["day"], m["station"])
	}
	type cell struct {
		Code    any `json:"code"`
		Day     any `json:"day"`
		Station any `json:"station"`
	}
	present := map[string]struct{}{}
	existing := make([]cell, 0, len(recs))
	for _, v := range recs {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		present[cellKey(m)] = struct{}{}
		existing = append(existing, cell{m["code"], m["day"], m["station"]})
	}

	prompt := defautsRecoveryPrompt + "\nExisting:" + mustJSON(existing)
	text, err := e.gw.Generate(ctx, prompt, pages)
	if err != nil {
		e.logger.Warn("defauts.recover.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "defauts.recover", e.logger)

	var added []any
	for _, m := range rowMaps(parsed["additional"]) {
		if _, dup := present[cellKey(m)]; dup {
			continue
		}
		if schema.IsEmpty(m["raw_mark"]) {
			continue
		}
		added = append(added, m)
	}
	if len(added) > 0 {
		e.logger.Info("defauts.marks_recovered", "count", len(added))
		rec["recorded_defects"] = append(recs, added...)
	}
	return rec
}

// normalizeDefautsRecords canonicalizes each entry: day title-cased to the
// Lun..Sam enum spelling, station upper-cased, and the raw mark parsed into
// a numeric count alongside the untouched raw value.
func normalizeDefautsRecords(records []any) []any {
	out := make([]any, 0, len(records))
	for _, v := range records {
		r, ok := v.(map[string]any)
		if !ok {
			continue
		}
		code := r["code"]
		if s, isStr := code.(string); isStr {
			code = strings.TrimSpace(s)
		}
		day := r["day"]
		if s, isStr := day.(string); isStr {
			s = strings.TrimSpace(s)
			if len(s) > 0 {
				s = strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
			}
			day = s
		}
		station := r["station"]
		if s, isStr := station.(string); isStr {
			station = strings.ToUpper(strings.TrimSpace(s))
		}

		norm := map[string]any{
			"code":     code,
			"day":      day,
			"station":  station,
			"raw_mark": r["raw_mark"],
			"count":    nil,
		}
		if n, ok := normalize.MarkCount(r["raw_mark"]); ok {
			norm["count"] = n
		}
		out = append(out, norm)
	}
	return out
}

// refineDefautsRecords filters normalized entries: empty marks go, enum
// violations are nulled rather than dropped, codes must look like defect
// codes, exact duplicates collapse, and absurd counts are nulled.
func refineDefautsRecords(records []any) []any {
	seen := map[string]struct{}{}
	out := make([]any, 0, len(records))
	for _, v := range records {
		r, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if schema.IsEmpty(r["raw_mark"]) && schema.IsEmpty(r["count"]) {
			continue
		}
		if day, isStr := r["day"].(string); r["day"] != nil && (!isStr || !constants.IsDefautsDay(day)) {
			r["day"] = nil
		}
		if st, isStr := r["station"].(string); r["station"] != nil && (!isStr || !constants.IsDefautsStation(st)) {
			r["station"] = nil
		}
		if code, isStr := r["code"].(string); isStr {
			c := strings.ToUpper(strings.TrimSpace(code))
			if defautsCodeRe.MatchString(c) {
				r["code"] = c
			} else {
				r["code"] = nil
			}
		}

		key := fmt.Sprintf("%v|%v|%v|%v", r["code"], r["day"], r["station"], r["raw_mark"])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if n, isInt := r["count"].(int); isInt && n > defautsMaxCount {
			r["count"] = nil
		}
		out = append(out, r)
	}
	return out
}

// defautsDailyTotals aggregates counts per (day, station) cell, sorted for
// stable output.
func defautsDailyTotals(records []any) []any {
	type key struct{ day, station string }
	totals := map[key]int{}
	values := map[key][2]any{}
	for _, v := range records {
		r, ok := v.(map[string]any)
		if !ok {
			continue
		}
		n, isInt := r["count"].(int)
		if !isInt {
			continue
		}
		k := key{fmt.Sprint(r["day"]), fmt.Sprint(r["station"])}
		totals[k] += n
		values[k] = [2]any{r["day"], r["station"]}
	}

	keys := make([]key, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		return keys[i].station < keys[j].station
	})

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]any{
			"day":           values[k][0],
			"station":       values[k][1],
			"total_defauts": totals[k],
		})
	}
	return out
}
