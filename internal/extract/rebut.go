package extract

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm"
	"github.com/atelierflow/formscan/internal/normalize"
	"github.com/atelierflow/formscan/internal/schema"
)

// Rebut pass order: totals verified before and after each structural change
// so a recovery or merge never smuggles in an unverified total.
func (e *Extractor) rebutPasses(base *imaging.Page) []pass {
	verify := func(ctx context.Context, rec map[string]any) map[string]any {
		return e.verifyRebutTotals(ctx, base, rec)
	}
	return []pass{
		{"rebut.verify_totals", verify},
		{"rebut.recover_rows", func(ctx context.Context, rec map[string]any) map[string]any {
			return e.recoverRebutRows(ctx, base, rec)
		}},
		{"rebut.verify_totals", verify},
		{"rebut.dedupe", func(_ context.Context, rec map[string]any) map[string]any {
			return dedupeRebutItems(rec, e.cfg.ScrapMergeLimit)
		}},
		{"rebut.verify_totals", verify},
		{"rebut.normalize_numeric", func(_ context.Context, rec map[string]any) map[string]any {
			return normalizeRebutNumbers(rec)
		}},
	}
}

// refKey builds a stable lookup key for an item's reference value.
func refKey(v any) string {
	return fmt.Sprint(v)
}

// verifyRebutTotals asks the model which total_scrapped cells hold real
// handwriting and clears only the ones it rejects with high or medium
// confidence. Losing a valid total is worse than keeping a doubtful one.
func (e *Extractor) verifyRebutTotals(ctx context.Context, base *imaging.Page, rec map[string]any) map[string]any {
	items := rowMaps(rec["items"])
	if len(items) == 0 {
		return rec
	}

	type totalRow struct {
		Reference      any `json:"reference"`
		ExtractedTotal any `json:"extracted_total"`
	}
	var summary []totalRow
	for _, it := range items {
		if !schema.IsEmpty(it["total_scrapped"]) {
			summary = append(summary, totalRow{it["reference"], it["total_scrapped"]})
		}
	}
	if len(summary) == 0 {
		e.logger.Debug("rebut.no_totals_to_verify")
		return rec
	}

	prompt := "Verify which TOTAL SCRAPPED cells contain CLEAR handwritten digits. Rows: " + mustJSON(summary) + "\n" +
		"Return JSON only {\"handwritten_totals\":[{\"reference\":ref,\"has_total\":true|false,\"confidence\":\"high\"|\"medium\"|\"low\"}]}.\n" +
		"IMPORTANT: If a number is present and looks handwritten, mark as true. Only mark false if the cell is clearly empty or has only printed text.\n" +
		"Be LENIENT - we prefer to keep suspicious values rather than lose valid data."

	text, err := e.gw.Generate(ctx, prompt, []*imaging.Page{base})
	if err != nil {
		e.logger.Warn("rebut.verify_totals.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "rebut.verify_totals", e.logger)

	type verdict struct {
		hasTotal   any
		confidence string
	}
	verdicts := map[string]verdict{}
	for _, v := range rowMaps(parsed["handwritten_totals"]) {
		conf, _ := v["confidence"].(string)
		if conf == "" {
			conf = "medium"
		}
		verdicts[refKey(v["reference"])] = verdict{v["has_total"], conf}
	}

	for _, it := range items {
		v, ok := verdicts[refKey(it["reference"])]
		if !ok {
			continue
		}
		if b, isBool := v.hasTotal.(bool); isBool && !b && (v.confidence == "high" || v.confidence == "medium") {
			e.logger.Info("rebut.total_cleared",
				"reference", it["reference"], "value", it["total_scrapped"], "confidence", v.confidence)
			it["total_scrapped"] = nil
		}
	}
	return rec
}

// recoverRebutRows asks for table rows the primary pass missed and appends
// them. A recovered row whose reference already exists is dropped unless it
// carries information beyond the reference itself.
func (e *Extractor) recoverRebutRows(ctx context.Context, base *imaging.Page, rec map[string]any) map[string]any {
	items := anySlice(rec["items"])

	type slimRow struct {
		Reference any `json:"reference"`
		Quantity  any `json:"quantity"`
	}
	slim := make([]slimRow, 0, len(items))
	existing := map[string]struct{}{}
	for _, it := range rowMaps(rec["items"]) {
		slim = append(slim, slimRow{it["reference"], it["quantity"]})
		existing[refKey(it["reference"])] = struct{}{}
	}

	prompt := "Find ADDITIONAL Rebut rows with handwriting not in: " + mustJSON(slim) + "\n" +
		"Return JSON {\"additional_items\":[{...}]} using same schema. Only rows with handwriting. Blank->null."

	text, err := e.gw.Generate(ctx, prompt, []*imaging.Page{base})
	if err != nil {
		e.logger.Warn("rebut.recover_rows.call_failed", "error", err)
		return rec
	}
	parsed := llm.ParseObject(text, nil, "rebut.recover_rows", e.logger)

	var recovered []any
	for _, it := range rowMaps(parsed["additional_items"]) {
		for k, v := range it {
			if s, ok := v.(string); ok && schema.IsEmpty(s) {
				it[k] = nil
			}
		}
		if _, dup := existing[refKey(it["reference"])]; dup {
			extra := false
			for _, k := range []string{"designation", "quantity", "unit", "type", "total_scrapped", "reference_fjk"} {
				if !schema.IsEmpty(it[k]) {
					extra = true
					break
				}
			}
			if !extra {
				continue
			}
		}
		row := make(map[string]any, len(schema.RebutItemFields))
		for _, k := range schema.RebutItemFields {
			row[k] = it[k]
		}
		recovered = append(recovered, row)
	}
	if len(recovered) > 0 {
		e.logger.Info("rebut.rows_recovered", "count", len(recovered))
		rec["items"] = append(items, recovered...)
	}
	return rec
}

// dedupeRebutItems merges rows sharing a reference, preserving first-seen
// order. Rows without a reference are kept verbatim. A sparse duplicate (at
// most two non-empty fields) is treated as noise, except that a small quantity
// differing from the kept row's quantity is rescued as a missing
// total_scrapped: operators often write the scrap count on a second line.
// scrapLimit caps the quantity a sparse duplicate may contribute that way.
func dedupeRebutItems(rec map[string]any, scrapLimit float64) map[string]any {
	items := anySlice(rec["items"])
	if len(items) == 0 {
		return rec
	}

	var order []string
	byRef := map[string]map[string]any{}

	for _, v := range items {
		row, ok := v.(map[string]any)
		if !ok {
			continue
		}
		ref, _ := row["reference"].(string)
		ref = strings.TrimSpace(ref)
		if ref == "" {
			key := fmt.Sprintf("__anon__%d", len(order))
			order = append(order, key)
			byRef[key] = row
			continue
		}
		kept, seen := byRef[ref]
		if !seen {
			order = append(order, ref)
			byRef[ref] = row
			continue
		}

		nonEmpty := 0
		for _, fv := range row {
			if !schema.IsEmpty(fv) {
				nonEmpty++
			}
		}
		if nonEmpty <= 2 {
			if newQty, ok := normalize.NumberValue(row["quantity"]); ok &&
				schema.IsEmpty(kept["total_scrapped"]) && newQty <= scrapLimit {
				keptQty, keptOk := normalize.NumberValue(kept["quantity"])
				if !keptOk || keptQty != newQty {
					if newQty == math.Trunc(newQty) {
						kept["total_scrapped"] = int(newQty)
					} else {
						kept["total_scrapped"] = newQty
					}
				}
			}
			for _, f := range []string{"designation", "unit", "type", "reference_fjk"} {
				if schema.IsEmpty(kept[f]) && !schema.IsEmpty(row[f]) {
					kept[f] = row[f]
				}
			}
			continue
		}

		// richer duplicate: fill whatever the kept row is missing
		for f, fv := range row {
			if f == "reference" {
				continue
			}
			if schema.IsEmpty(kept[f]) && !schema.IsEmpty(fv) {
				kept[f] = fv
			}
		}
	}

	merged := make([]any, 0, len(order))
	for _, k := range order {
		merged = append(merged, byRef[k])
	}
	rec["items"] = merged
	return rec
}

// normalizeRebutNumbers types quantity and total_scrapped, nulling values
// that are not numeric. A total wildly above the quantity (more than 5x and
// above 50) is implausible for a scrap count and is nulled too.
func normalizeRebutNumbers(rec map[string]any) map[string]any {
	for _, it := range rowMaps(rec["items"]) {
		if q, isStr := it["quantity"].(string); isStr {
			if n, ok := normalize.Number(q); ok {
				it["quantity"] = n
			} else {
				it["quantity"] = nil
			}
		}
		if ts, isStr := it["total_scrapped"].(string); isStr {
			s := strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(ts), ",", "."), " ", "")
			if digitsOnlyRe.MatchString(s) {
				n, _ := strconv.Atoi(s)
				it["total_scrapped"] = n
			} else {
				it["total_scrapped"] = nil
			}
		}
		q, qok := numericOf(it["quantity"])
		t, tok := numericOf(it["total_scrapped"])
		if qok && tok && t > q*5 && t > 50 {
			it["total_scrapped"] = nil
		}
	}
	return rec
}
