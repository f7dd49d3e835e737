package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/schema"
)

func kosuRecord(overrides map[string]any) map[string]any {
	rec := schema.ApplyDefaults(map[string]any{}, constants.Kosu)
	for k, v := range overrides {
		rec[k] = v
	}
	return rec
}

func TestVerifyKosuHeader_PreFixMovesNumericNomLigne(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"header_corrections": []}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := kosuRecord(map[string]any{"Nom Ligne": "15", "Code ligne": nil})

	out := e.verifyKosuHeader(context.Background(), testPage(), rec)

	assert.Equal(t, "15", out["Code ligne"])
	assert.Nil(t, out["Nom Ligne"])
}

func TestVerifyKosuHeader_PreFixMovesTextCodeLigne(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"header_corrections": []}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := kosuRecord(map[string]any{"Nom Ligne": nil, "Code ligne": "A41S"})

	out := e.verifyKosuHeader(context.Background(), testPage(), rec)

	assert.Equal(t, "A41S", out["Nom Ligne"])
	assert.Nil(t, out["Code ligne"])
}

func TestVerifyKosuHeader_CleanHeaderSkipsModel(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := kosuRecord(map[string]any{
		"Equipe": "II", "Nom Ligne": "A41S", "Code ligne": "15",
		"Jour": "L", "Semaine": "30", "Numéro OF": "OF-1", "Ref PF": "PF-9",
	})

	e.verifyKosuHeader(context.Background(), testPage(), rec)

	assert.Zero(t, gw.calls(), "a clean header needs no model verification")
}

func TestVerifyKosuHeader_AppliesModelCorrections(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"header_corrections": [
			{"field": "Jour", "extracted_value": "15", "correct_value": "V", "reason": "misread"},
			{"field": "Inconnu", "correct_value": "x"}
		]}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	// duplicate value forces the model call
	rec := kosuRecord(map[string]any{
		"Equipe": "II", "Nom Ligne": "A41S", "Code ligne": "15",
		"Jour": "15", "Semaine": "15",
	})

	out := e.verifyKosuHeader(context.Background(), testPage(), rec)

	assert.Equal(t, 1, gw.calls())
	assert.Equal(t, "V", out["Jour"])
	assert.NotContains(t, out, "Inconnu", "corrections for unknown fields are ignored")
}

func TestRecoverKosuHeader_OnlyFillsEmptyFields(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"recovered_fields": [
			{"field": "Semaine", "value": "30"},
			{"field": "Equipe", "value": "III"},
			{"field": "Jour", "value": null}
		]}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := kosuRecord(map[string]any{"Equipe": "II", "Semaine": nil, "Jour": nil})

	out := e.recoverKosuHeader(context.Background(), testPage(), rec)

	assert.Equal(t, "30", out["Semaine"])
	assert.Equal(t, "II", out["Equipe"], "populated fields are never overwritten")
	assert.Nil(t, out["Jour"], "null recoveries are ignored")
}

func TestVerifyKosuTable_AppliesCellCorrections(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"table_corrections": [
			{"row_index": 0, "field": "Productivité", "correct_value": "85"},
			{"row_index": 7, "field": "Productivité", "correct_value": "x"},
			{"row_index": 0, "field": "Productivité", "correct_value": null}
		]}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := kosuRecord(map[string]any{
		"Suivi horaire": []any{
			map[string]any{"Heure": "1", "Productivité": "80", "Quantité pièces bonnes": "40"},
		},
	})

	out := e.verifyKosuTable(context.Background(), testPage(), rec)

	rows := rowMaps(out["Suivi horaire"])
	assert.Equal(t, "85", rows[0]["Productivité"], "valid correction applied")
}

func TestPostProcessKosu(t *testing.T) {
	rec := kosuRecord(map[string]any{
		"Equipe": "7",
		"Suivi horaire": []any{
			map[string]any{"Heure": "1", "Productivité": "80"},
			map[string]any{"Heure": nil, "Productivité": nil},
		},
		"Total / Equipe": map[string]any{
			"Heures Dépensées":  "8",
			"Productivité / EQ": "85,5",
		},
	})

	out := postProcessKosu(rec)

	assert.Equal(t, "VII", out["Equipe"])
	assert.Len(t, rowMaps(out["Suivi horaire"]), 1, "rows without any data are dropped")
	totals := out["Total / Equipe"].(map[string]any)
	assert.Equal(t, 8, totals["Heures Dépensées"])
	assert.Equal(t, "85,5", totals["Productivité / EQ"], "non-integer strings stay as extracted")
}

func TestPostProcessKosu_NumericEquipe(t *testing.T) {
	rec := kosuRecord(map[string]any{"Equipe": float64(2)})
	assert.Equal(t, "II", postProcessKosu(rec)["Equipe"])
}

func TestCrossValidateFields_KosuTypeRules(t *testing.T) {
	t.Run("numeric nom ligne moves to empty code ligne", func(t *testing.T) {
		rec := kosuRecord(map[string]any{"Nom Ligne": "15", "Code ligne": nil})
		out := crossValidateFields(rec, constants.Kosu, testLogger())
		assert.Equal(t, "15", out["Code ligne"])
		assert.Nil(t, out["Nom Ligne"])
		corrections := getStrings(out, keyCorrections)
		require.NotEmpty(t, corrections)
		assert.Contains(t, corrections[0], "INVALID")
	})
	t.Run("code ligne digits extracted", func(t *testing.T) {
		rec := kosuRecord(map[string]any{"Code ligne": "L-15"})
		out := crossValidateFields(rec, constants.Kosu, testLogger())
		assert.Equal(t, "15", out["Code ligne"])
	})
	t.Run("code ligne without digits cleared", func(t *testing.T) {
		rec := kosuRecord(map[string]any{"Code ligne": "ABC"})
		out := crossValidateFields(rec, constants.Kosu, testLogger())
		assert.Nil(t, out["Code ligne"])
	})
	t.Run("duplicate header values cleared first seen wins", func(t *testing.T) {
		rec := kosuRecord(map[string]any{"Equipe": "II", "Jour": "II"})
		out := crossValidateFields(rec, constants.Kosu, testLogger())
		assert.Equal(t, "II", out["Equipe"])
		assert.Nil(t, out["Jour"])
	})
	t.Run("week out of range cleared", func(t *testing.T) {
		rec := kosuRecord(map[string]any{"Semaine": "99"})
		out := crossValidateFields(rec, constants.Kosu, testLogger())
		assert.Nil(t, out["Semaine"])
	})
	t.Run("invalid team id cleared", func(t *testing.T) {
		rec := kosuRecord(map[string]any{"Equipe": "2A"})
		out := crossValidateFields(rec, constants.Kosu, testLogger())
		assert.Nil(t, out["Equipe"])
	})
}

func TestFinalSanityCheck_Kosu(t *testing.T) {
	rec := kosuRecord(map[string]any{
		"Nom Ligne":  "123",
		"Code ligne": "A1",
		"Equipe":     "XI",
	})

	out := finalSanityCheck(rec, constants.Kosu, testLogger())

	assert.Nil(t, out["Nom Ligne"])
	assert.Nil(t, out["Code ligne"])
	assert.Nil(t, out["Equipe"])
	assert.NotEmpty(t, getStrings(out, keySanityIssues))
}

func TestValidateAgainstTemplate_NumberAutocorrect(t *testing.T) {
	rec := map[string]any{
		"document_type": "NPT",
		"header":        map[string]any{"uap": "UAP 4", "equipe": "II", "date": nil},
	}

	warnings := validateAgainstTemplate(rec, constants.NPT)

	header := rec["header"].(map[string]any)
	assert.Equal(t, "4", header["uap"], "digits are salvaged mechanically")
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "uap")
}
