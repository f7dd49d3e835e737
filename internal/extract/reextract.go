package extract

import (
	"context"
	"reflect"
	"strings"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm"
	"github.com/atelierflow/formscan/internal/schema"
)

// problemFields derives the re-extraction targets from template warnings and
// cross-validation corrections. The returned order is fixed so reruns behave
// identically.
func problemFields(warnings, corrections []string) []string {
	found := map[string]struct{}{}

	for _, w := range warnings {
		if !strings.Contains(w, "Field '") || !strings.Contains(w, "doesn't match") {
			continue
		}
		parts := strings.SplitN(w, "'", 3)
		if len(parts) == 3 {
			found[parts[1]] = struct{}{}
		}
	}
	for _, c := range corrections {
		if !strings.Contains(c, "DUPLICATE VALUE") && !strings.Contains(c, "INVALID") && !strings.Contains(c, "SWAPPED") {
			continue
		}
		for _, f := range []string{"Equipe", "Nom Ligne", "Code ligne"} {
			if strings.Contains(c, f) {
				found[f] = struct{}{}
			}
		}
	}

	var out []string
	for _, f := range []string{"Equipe", "Nom Ligne", "Code ligne", "uap", "jap", "Semaine", "Numéro OF"} {
		if _, ok := found[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// reextractFields re-reads individual problem fields with narrow prompts.
// A field is only overwritten when the focused read returns a non-empty value
// that differs from what we have; an empty or failed read changes nothing.
func (e *Extractor) reextractFields(ctx context.Context, base *imaging.Page, rec map[string]any, fields []string, docType constants.DocType) map[string]any {
	for _, field := range fields {
		prompt, known := fieldPrompts[field]
		if !known {
			continue
		}
		text, err := e.gw.Generate(ctx, prompt, []*imaging.Page{base})
		if err != nil {
			e.logger.Warn("reextract.call_failed", "field", field, "error", err)
			continue
		}
		parsed := llm.ParseObject(text, nil, "reextract."+field, e.logger)
		value, present := parsed[field]
		if !present || schema.IsEmpty(value) {
			continue
		}

		target := rec
		if _, scoped := headerScopedFields[field]; scoped {
			h, ok := rec["header"].(map[string]any)
			if !ok {
				continue
			}
			target = h
		}
		if old := target[field]; !reflect.DeepEqual(old, value) {
			target[field] = value
			e.logger.Info("reextract.updated",
				"doc_type", string(docType), "field", field, "old", old, "new", value)
		}
	}
	return rec
}
