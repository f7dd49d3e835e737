// Package extract runs the multi-pass extraction pipeline: primary model
// call with confidence retry, document-specific verification and recovery,
// normalization, cross-field validation, targeted re-extraction, and a final
// sanity check. A pipeline run never panics and never loses the record: a
// failing pass leaves the record as the previous pass produced it.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/common"
	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm"
)

// Diagnostic side-channel keys carried on the record during a run. They are
// lifted into the Result envelope before the record is returned, so the
// business payload stays schema-shaped.
const (
	keyModelConfidence = "extraction_confidence"
	keyFinalConfidence = "final_confidence"
	keyCorrections     = "cross_validation_corrections"
	keySanityIssues    = "final_sanity_issues"
)

// Extractor drives the pipeline against a model gateway.
type Extractor struct {
	gw     llm.Gateway
	cfg    common.ExtractConfig
	logger *slog.Logger
}

// New creates an Extractor. A nil logger falls back to slog.Default().
func New(gw llm.Gateway, cfg common.ExtractConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{gw: gw, cfg: cfg, logger: logger}
}

// Request identifies one scanned page to extract.
type Request struct {
	DocType constants.DocType
	Page    *imaging.Page
	// SourcePath, when set, enables discovery of pre-rendered sibling crops
	// next to the original file.
	SourcePath string
}

// Result is the pipeline response envelope. Status is "success" or "error";
// on error only Message and DocumentType are set.
type Result struct {
	Status       string         `json:"status"`
	DocumentType string         `json:"document_type,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Remark       string         `json:"remark,omitempty"`
	Message      string         `json:"message,omitempty"`
	Confidence   float64        `json:"confidence,omitempty"`
	Corrections  []string       `json:"corrections,omitempty"`
	Issues       []string       `json:"issues,omitempty"`
}

func errorResult(docType constants.DocType, msg string) *Result {
	return &Result{Status: "error", DocumentType: string(docType), Message: msg}
}

// pass is one pipeline stage. Returning nil means "keep the previous record".
type pass struct {
	name string
	fn   func(ctx context.Context, rec map[string]any) map[string]any
}

func (e *Extractor) runPasses(ctx context.Context, rec map[string]any, passes []pass) map[string]any {
	for _, p := range passes {
		if out := e.runPass(ctx, p, rec); out != nil {
			rec = out
		}
	}
	return rec
}

func (e *Extractor) runPass(ctx context.Context, p pass, rec map[string]any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extract.pass_panic", "pass", p.name, "panic", fmt.Sprint(r))
			out = nil
		}
	}()
	return p.fn(ctx, rec)
}

// anySlice coerces a decoded JSON array; anything else yields nil.
func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// rowMaps filters the object rows out of a decoded JSON array.
func rowMaps(v any) []map[string]any {
	var out []map[string]any
	for _, e := range anySlice(v) {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// numericOf accepts only typed numbers, not numeric strings.
func numericOf(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func getStrings(rec map[string]any, key string) []string {
	switch v := rec[key].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// mustJSON renders a value for embedding into a prompt. Values here are
// always JSON-decoded data, so marshalling cannot realistically fail.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
