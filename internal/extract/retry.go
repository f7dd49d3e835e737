package extract

import (
	"context"
	"fmt"
	"maps"

	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm"
	"github.com/atelierflow/formscan/internal/schema"
)

const confidenceInstruction = "\n\nALSO: Add a 'extraction_confidence' field (0-100) indicating how confident you are about the extracted values."

// extractWithRetry runs the primary extraction up to 1+MaxRetries times and
// keeps the strictly best attempt. An attempt's combined score is the mean of
// the model-reported confidence (default 50) and the share of non-empty
// top-level fields; the loop exits early once it reaches ConfidenceExit.
// When every attempt fails the result is an empty map.
func (e *Extractor) extractWithRetry(ctx context.Context, prompt string, pages []*imaging.Page) map[string]any {
	if len(pages) == 0 {
		e.logger.Warn("extract.retry.no_images")
		return map[string]any{}
	}

	best := map[string]any{}
	bestScore := 0.0

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		op := fmt.Sprintf("extract.attempt_%d", attempt)

		text, err := e.gw.Generate(ctx, prompt+confidenceInstruction, pages)
		if err != nil {
			e.logger.Warn("extract.attempt_failed", "attempt", attempt, "error", err)
			continue
		}
		data := llm.ParseObject(text, nil, op, e.logger)
		if len(data) == 0 {
			continue
		}

		confidence := 50.0
		if c, ok := numericOf(data[keyModelConfidence]); ok {
			confidence = c
		}
		nonEmpty := 0
		for _, v := range data {
			if !schema.IsEmpty(v) {
				nonEmpty++
			}
		}
		completeness := float64(nonEmpty) / float64(len(data)) * 100
		combined := (confidence + completeness) / 2

		if combined > bestScore {
			bestScore = combined
			best = maps.Clone(data)
			best[keyFinalConfidence] = combined
		}
		if combined >= e.cfg.ConfidenceExit {
			break
		}
		e.logger.Info("extract.retry", "attempt", attempt+1, "confidence", combined)
	}
	return best
}
