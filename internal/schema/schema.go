// Package schema pins the canonical record shape for each document type.
// Every schema-defined key is present (possibly null) in a completed record;
// downstream exporters index by exact key, French accents included.
package schema

import (
	"strings"

	"github.com/atelierflow/formscan/constants"
)

// Header and row field lists, in form order.
var (
	RebutHeaderFields = []string{"jap", "ligne", "of_number", "mat_number", "equipe", "date", "visa"}
	RebutItemFields   = []string{"reference", "reference_fjk", "designation", "quantity", "unit", "type", "total_scrapped"}

	KosuHeaderFields = []string{"Equipe", "Nom Ligne", "Code ligne", "Jour", "Semaine", "Numéro OF", "Ref PF"}
	KosuHourlyFields = []string{"Heure", "Nombre d'Opérateurs", "Objectif Qté / H", "Quantité pièces bonnes", "Productivité"}
	KosuTotalFields  = []string{"Heures Dépensées", "Objectif Qté / EQ", "Qté pièces Bonnes / EQ", "Productivité / EQ"}

	NPTHeaderFields = []string{"uap", "date", "equipe"}
	NPTEventFields  = []string{"codes_ligne", "ref_pf", "designation", "mod_impacte", "npt_minutes",
		"heure_debut_d_arret", "heure_fin_d_arret", "cause_npt", "numero_di", "commentaire", "validation"}

	DefautsHeaderFields = []string{"uap", "ligne", "n_poste", "operation", "code_famillier", "semaine", "annee", "mois"}
	DefautsRecordFields = []string{"code", "day", "station", "raw_mark"}
)

func nullMap(keys []string) map[string]any {
	m := make(map[string]any, len(keys))
	for _, k := range keys {
		m[k] = nil
	}
	return m
}

// Default returns a fresh record with every schema key present and null.
func Default(docType constants.DocType) map[string]any {
	switch docType {
	case constants.Rebut:
		return map[string]any{
			"document_type": string(constants.Rebut),
			"header":        nullMap(RebutHeaderFields),
			"items":         []any{},
			"notes":         []any{},
		}
	case constants.Kosu:
		rec := map[string]any{
			"document_type":          string(constants.Kosu),
			"Titre du document":      nil,
			"Référence du document":  nil,
			"Date du document":       nil,
			"Suivi horaire":          []any{},
			"Total / Equipe":         nullMap(KosuTotalFields),
			"Règles d'escalade":      []any{},
			"remark":                 nil,
		}
		for _, k := range KosuHeaderFields {
			rec[k] = nil
		}
		return rec
	case constants.NPT:
		return map[string]any{
			"document_type":   string(constants.NPT),
			"header":          nullMap(NPTHeaderFields),
			"downtime_events": []any{},
		}
	case constants.Defauts:
		return map[string]any{
			"document_type":    string(constants.Defauts),
			"entry_header":     nullMap(DefautsHeaderFields),
			"recorded_defects": []any{},
			"notes":            []any{},
		}
	}
	return map[string]any{}
}

// ApplyDefaults fills any schema key missing from rec without overwriting
// extracted values, so the invariant "every key present after the pipeline"
// holds even when the model omitted sections.
func ApplyDefaults(rec map[string]any, docType constants.DocType) map[string]any {
	if rec == nil {
		return Default(docType)
	}
	def := Default(docType)
	for k, dv := range def {
		cur, ok := rec[k]
		if !ok || cur == nil {
			rec[k] = dv
			continue
		}
		// merge nested header defaults
		if dm, isMap := dv.(map[string]any); isMap {
			if cm, curIsMap := cur.(map[string]any); curIsMap {
				for hk, hv := range dm {
					if _, present := cm[hk]; !present {
						cm[hk] = hv
					}
				}
			} else {
				rec[k] = dm
			}
		}
	}
	rec["document_type"] = string(docType)
	return rec
}

// IsEmpty reports whether an extracted value carries no information: nil,
// blank string, the literal "null", or an empty list.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "null")
	case []any:
		return len(t) == 0
	}
	return false
}
