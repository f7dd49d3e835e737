package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierflow/formscan/constants"
)

func TestExtract_NoPage(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		t.Fatal("gateway must not be called without a page")
		return "", nil
	}}
	e := New(gw, testExtractCfg(), testLogger())

	res := e.Extract(context.Background(), Request{DocType: constants.Rebut})

	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "no page image provided", res.Message)
}

func TestExtract_UnsupportedType(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		t.Fatal("gateway must not be called for unknown types")
		return "", nil
	}}
	e := New(gw, testExtractCfg(), testLogger())

	res := e.Extract(context.Background(), Request{DocType: "Facture", Page: testPage()})

	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Message, "unsupported document type")
}

func TestExtract_PrimaryFailure(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return "aucune donnée", nil
	}}
	e := New(gw, testExtractCfg(), testLogger())

	res := e.Extract(context.Background(), Request{DocType: constants.NPT, Page: testPage()})

	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "primary extraction failed", res.Message)
	assert.Equal(t, 3, gw.calls(), "every retry attempt is spent before giving up")
}

func TestExtract_NPTHappyPath(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		switch call {
		case 0:
			return `{
				"header": {"uap": "UAP 4", "equipe": "2", "date": "22-07-2025"},
				"downtime_events": [{"codes_ligne": "15", "npt_minutes": 30}],
				"extraction_confidence": 95
			}`, nil
		default: // focused uap re-read
			return `{"uap": "4"}`, nil
		}
	}}
	e := New(gw, testExtractCfg(), testLogger())

	res := e.Extract(context.Background(), Request{DocType: constants.NPT, Page: testPage()})

	require.Equal(t, "success", res.Status)
	assert.Equal(t, "NPT", res.DocumentType)
	assert.Equal(t, "NPT extraction complete", res.Remark)
	assert.Equal(t, 2, gw.calls(), "confident primary plus one targeted re-read")
	assert.InDelta(t, 97.5, res.Confidence, 0.01)

	header, ok := res.Data["header"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "4", header["uap"], "polluted UAP salvaged to digits")
	assert.Equal(t, "II", header["equipe"], "team digits become Roman numerals")
	assert.Equal(t, "22/07/2025", header["date"])

	events := rowMaps(res.Data["downtime_events"])
	require.Len(t, events, 1)
	assert.Equal(t, "15", events[0]["codes_ligne"])

	assert.NotContains(t, res.Data, keyFinalConfidence)
	assert.NotContains(t, res.Data, keyModelConfidence)
	assert.NotContains(t, res.Data, keyCorrections)
	assert.NotContains(t, res.Data, keySanityIssues)
}

func TestExtract_NeverPanics(t *testing.T) {
	pathological := []string{
		`{"items": "not a list", "header": 12, "extraction_confidence": 90}`,
		`{"header": {"date": 12345678, "uap": []}, "downtime_events": [[1, 2], null], "extraction_confidence": 99}`,
		`{"Suivi horaire": {"pas": "une liste"}, "Total / Equipe": "8", "Equipe": true, "extraction_confidence": 85}`,
		`{"recorded_defects": [42, {"code": 1, "day": 2, "station": 3, "raw_mark": 4}], "extraction_confidence": 95}`,
	}
	for _, raw := range pathological {
		for _, dt := range constants.DocTypes {
			gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
				return raw, nil
			}}
			e := New(gw, testExtractCfg(), testLogger())

			var res *Result
			assert.NotPanics(t, func() {
				res = e.Extract(context.Background(), Request{DocType: dt, Page: testPage()})
			}, "doc_type=%s raw=%s", dt, raw)
			require.NotNil(t, res)
			assert.Contains(t, []string{"success", "error"}, res.Status)
		}
	}
}

func TestNormalizeHeaderIdentity(t *testing.T) {
	rec := map[string]any{
		"header": map[string]any{
			"UAP":  "UAP042",
			"team": "Équipe 2",
			"date": "22/07/2025",
		},
	}

	out := normalizeHeaderIdentity(rec)

	header := out["header"].(map[string]any)
	assert.Equal(t, "042", header["uap"])
	assert.Equal(t, "II", header["equipe"])
	assert.NotContains(t, header, "UAP", "alias keys are folded away")
	assert.NotContains(t, header, "team")
	assert.Equal(t, "22/07/2025", header["date"])
}

func TestProblemFields(t *testing.T) {
	warnings := []string{
		"Field 'uap' value 'UAP 4' doesn't match expected number pattern",
		"  -> Auto-corrected to '4'",
		"Field 'Semaine' value '99' doesn't match expected week_number pattern",
	}
	corrections := []string{
		"DUPLICATE VALUE: 'II' appears in both 'Equipe' and 'Jour'",
		"CLEANED: Code ligne 'L15' -> '15' (extracted numbers)",
	}

	got := problemFields(warnings, corrections)

	assert.Equal(t, []string{"Equipe", "uap", "Semaine"}, got,
		"fixed ordering, cleanups alone do not trigger a re-read")
}
