package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atelierflow/formscan/constants"
)

// JSON-Schema documents per document type, compiled once. Validation is
// advisory: a failing record is flagged for correction, never rejected.

func nullable(t string) map[string]any {
	return map[string]any{"type": []string{t, "null"}}
}

func nullableAny() map[string]any {
	// handwritten cells come back as strings or numbers depending on the model
	return map[string]any{"type": []string{"string", "number", "null"}}
}

func objectOf(fields []string, props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	for _, f := range fields {
		if _, ok := props[f]; !ok {
			props[f] = nullableAny()
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func arrayOf(item map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": item}
}

// Document returns the JSON-Schema map for a document type.
func Document(docType constants.DocType) map[string]any {
	switch docType {
	case constants.Rebut:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_type": map[string]any{"const": string(constants.Rebut)},
				"header": objectOf(RebutHeaderFields, map[string]any{
					"jap":    nullable("string"),
					"equipe": nullable("string"),
				}),
				"items": arrayOf(objectOf(RebutItemFields, nil)),
				"notes": map[string]any{"type": "array"},
			},
			"required": []string{"document_type", "header", "items"},
		}
	case constants.Kosu:
		props := map[string]any{
			"document_type": map[string]any{"const": string(constants.Kosu)},
			"Suivi horaire": arrayOf(objectOf(KosuHourlyFields, nil)),
			"Total / Equipe": objectOf(KosuTotalFields, nil),
			"Règles d'escalade": map[string]any{"type": "array"},
			"remark":            nullable("string"),
		}
		for _, f := range KosuHeaderFields {
			props[f] = nullableAny()
		}
		return map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []string{"document_type", "Suivi horaire"},
		}
	case constants.NPT:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_type": map[string]any{"const": string(constants.NPT)},
				"header": objectOf(NPTHeaderFields, map[string]any{
					"uap":    nullable("string"),
					"equipe": nullable("string"),
				}),
				"downtime_events": arrayOf(objectOf(NPTEventFields, nil)),
			},
			"required": []string{"document_type", "header", "downtime_events"},
		}
	case constants.Defauts:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_type":    map[string]any{"const": string(constants.Defauts)},
				"entry_header":     objectOf(DefautsHeaderFields, nil),
				"recorded_defects": arrayOf(objectOf(DefautsRecordFields, nil)),
				"notes":            map[string]any{"type": "array"},
			},
			"required": []string{"document_type", "entry_header", "recorded_defects"},
		}
	}
	return map[string]any{"type": "object"}
}

var (
	compiledMu sync.Mutex
	compiled   = map[constants.DocType]*jsonschema.Schema{}
)

func compiledFor(docType constants.DocType) (*jsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if s, ok := compiled[docType]; ok {
		return s, nil
	}
	b, err := json.Marshal(Document(docType))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled[docType] = s
	return s, nil
}

// Validate checks a record against its document-type schema. Diagnostic
// side-channel keys are ignored; they are not business fields.
func Validate(rec map[string]any, docType constants.DocType) error {
	s, err := compiledFor(docType)
	if err != nil {
		return err
	}
	// round-trip through JSON so typed values compare like decoded ones
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("record does not match %s schema: %w", docType, err)
	}
	return nil
}
