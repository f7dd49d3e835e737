package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

const jsonFence = "```json"

var fenceBlockRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractFencedJSON returns the content of the first ```json fence if the text
// contains one, otherwise the text unchanged. Commentary around the fence is
// discarded.
func ExtractFencedJSON(text string) string {
	if !strings.Contains(text, jsonFence) {
		return text
	}
	if m := fenceBlockRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// ParseObject decodes a JSON object out of model text, tolerating fences and
// stray commentary. It never fails: any decode problem, or a document that is
// not an object, yields the provided default instead.
func ParseObject(text string, def map[string]any, op string, logger *slog.Logger) map[string]any {
	if logger == nil {
		logger = slog.Default()
	}
	if def == nil {
		def = map[string]any{}
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("llm.parse.empty_text", "op", op)
		return def
	}

	payload := ExtractFencedJSON(text)

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		logger.Warn("llm.parse.decode_error", "op", op, "error", err)
		return def
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		logger.Warn("llm.parse.not_an_object", "op", op)
		return def
	}
	return obj
}
