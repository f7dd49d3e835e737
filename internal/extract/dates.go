package extract

import (
	"log/slog"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/normalize"
	"github.com/atelierflow/formscan/internal/schema"
)

type dateField struct {
	parent string // "" means root level
	field  string
}

// Date fields per document type. Kosu's "Jour" is a weekday letter, not a
// date, so it is deliberately absent.
var dateFieldsByType = map[constants.DocType][]dateField{
	constants.Rebut:   {{"header", "date"}},
	constants.Kosu:    {{"", "Date du document"}},
	constants.NPT:     {{"header", "date"}},
	constants.Defauts: {{"entry_header", "mois"}, {"entry_header", "annee"}},
}

// normalizeDates rewrites every date field to DD/MM/YYYY. A non-empty value
// that fails normalization is kept as extracted: a readable odd date beats a
// lost one.
func normalizeDates(rec map[string]any, docType constants.DocType, logger *slog.Logger) map[string]any {
	for _, df := range dateFieldsByType[docType] {
		target := rec
		if df.parent != "" {
			m, ok := rec[df.parent].(map[string]any)
			if !ok {
				continue
			}
			target = m
		}
		v, present := target[df.field]
		if !present {
			continue
		}
		if normalized, ok := normalize.Date(v); ok {
			target[df.field] = normalized
		} else if !schema.IsEmpty(v) {
			logger.Info("dates.kept_original", "field", df.field, "value", v)
		}
	}
	return rec
}
