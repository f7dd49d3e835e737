package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rebutRecord(items ...map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = it
	}
	return map[string]any{
		"document_type": "Rebut",
		"header":        map[string]any{},
		"items":         list,
	}
}

func TestDedupeRebutItems_SparseDuplicateBecomesScrapTotal(t *testing.T) {
	rec := rebutRecord(
		map[string]any{"reference": "R1", "designation": "Support", "quantity": 12.5, "total_scrapped": nil},
		map[string]any{"reference": "R1", "quantity": float64(3)},
	)

	out := dedupeRebutItems(rec, 50)

	items := rowMaps(out["items"])
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0]["total_scrapped"], "small second-line quantity is the scrap count")
	assert.Equal(t, 12.5, items[0]["quantity"])
	assert.Equal(t, "Support", items[0]["designation"])
}

func TestDedupeRebutItems_EqualQuantityIsNoise(t *testing.T) {
	rec := rebutRecord(
		map[string]any{"reference": "R1", "quantity": float64(3)},
		map[string]any{"reference": "R1", "quantity": float64(3)},
	)

	out := dedupeRebutItems(rec, 50)

	items := rowMaps(out["items"])
	require.Len(t, items, 1)
	assert.Nil(t, items[0]["total_scrapped"])
}

func TestDedupeRebutItems_QuantityAboveLimitNotMerged(t *testing.T) {
	rec := rebutRecord(
		map[string]any{"reference": "R1", "designation": "Support", "quantity": 12.5},
		map[string]any{"reference": "R1", "quantity": float64(60)},
	)

	out := dedupeRebutItems(rec, 50)

	items := rowMaps(out["items"])
	require.Len(t, items, 1)
	assert.Nil(t, items[0]["total_scrapped"])
}

func TestDedupeRebutItems_AnonymousRowsPreserved(t *testing.T) {
	rec := rebutRecord(
		map[string]any{"reference": nil, "designation": "Inconnu"},
		map[string]any{"reference": "", "designation": "Inconnu aussi"},
		map[string]any{"reference": "R1", "quantity": float64(1)},
	)

	out := dedupeRebutItems(rec, 50)

	assert.Len(t, rowMaps(out["items"]), 3)
}

func TestDedupeRebutItems_RichDuplicateFillsGaps(t *testing.T) {
	rec := rebutRecord(
		map[string]any{"reference": "R1", "quantity": float64(5), "unit": nil, "type": nil},
		map[string]any{"reference": "R1", "quantity": float64(5), "unit": "pcs", "type": "casse"},
	)

	out := dedupeRebutItems(rec, 50)

	items := rowMaps(out["items"])
	require.Len(t, items, 1)
	assert.Equal(t, "pcs", items[0]["unit"])
	assert.Equal(t, "casse", items[0]["type"])
}

func TestNormalizeRebutNumbers(t *testing.T) {
	rec := rebutRecord(
		map[string]any{"reference": "R1", "quantity": "1 234,5", "total_scrapped": "12"},
		map[string]any{"reference": "R2", "quantity": "abc", "total_scrapped": "12.5"},
		map[string]any{"reference": "R3", "quantity": float64(2), "total_scrapped": float64(60)},
	)

	out := normalizeRebutNumbers(rec)

	items := rowMaps(out["items"])
	assert.Equal(t, 1234.5, items[0]["quantity"])
	assert.Equal(t, 12, items[0]["total_scrapped"])
	assert.Nil(t, items[1]["quantity"], "non-numeric quantity is nulled")
	assert.Nil(t, items[1]["total_scrapped"], "totals must be whole numbers")
	assert.Nil(t, items[2]["total_scrapped"], "total far above quantity is implausible")
}

func TestVerifyRebutTotals_ClearsOnlyConfidentRejections(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"handwritten_totals": [
			{"reference": "R1", "has_total": false, "confidence": "high"},
			{"reference": "R2", "has_total": false, "confidence": "low"},
			{"reference": "R3", "has_total": true, "confidence": "high"}
		]}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := rebutRecord(
		map[string]any{"reference": "R1", "total_scrapped": float64(4)},
		map[string]any{"reference": "R2", "total_scrapped": float64(5)},
		map[string]any{"reference": "R3", "total_scrapped": float64(6)},
	)

	out := e.verifyRebutTotals(context.Background(), testPage(), rec)

	items := rowMaps(out["items"])
	assert.Nil(t, items[0]["total_scrapped"])
	assert.Equal(t, float64(5), items[1]["total_scrapped"], "low confidence rejection keeps the value")
	assert.Equal(t, float64(6), items[2]["total_scrapped"])
}

func TestVerifyRebutTotals_GatewayFailureKeepsValues(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return "", errors.New("timeout")
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := rebutRecord(map[string]any{"reference": "R1", "total_scrapped": float64(4)})

	out := e.verifyRebutTotals(context.Background(), testPage(), rec)

	assert.Equal(t, float64(4), rowMaps(out["items"])[0]["total_scrapped"])
}

func TestRecoverRebutRows_SkipsKnownReferencesWithoutNewInfo(t *testing.T) {
	gw := &scriptedGateway{handler: func(call int, prompt string) (string, error) {
		return `{"additional_items": [
			{"reference": "R1", "designation": "null", "quantity": ""},
			{"reference": "R2", "quantity": 7},
			{"reference": "R1", "total_scrapped": 2}
		]}`, nil
	}}
	e := New(gw, testExtractCfg(), nil)
	rec := rebutRecord(map[string]any{"reference": "R1", "quantity": float64(3)})

	out := e.recoverRebutRows(context.Background(), testPage(), rec)

	items := rowMaps(out["items"])
	require.Len(t, items, 3, "new reference and informative duplicate are appended")
	assert.Equal(t, "R2", items[1]["reference"])
	assert.Equal(t, float64(7), items[1]["quantity"])
	assert.Equal(t, "R1", items[2]["reference"])
	assert.Equal(t, float64(2), items[2]["total_scrapped"])
}
