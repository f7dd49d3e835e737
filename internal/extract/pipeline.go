package extract

import (
	"context"
	"fmt"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/schema"
)

// Extract runs the full pipeline for one page and always returns a Result:
// model failures, parse failures, and pass panics degrade the output, never
// escape it.
func (e *Extractor) Extract(ctx context.Context, req Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extract.panic", "doc_type", string(req.DocType), "panic", fmt.Sprint(r))
			res = errorResult(req.DocType, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if req.Page == nil || req.Page.Img == nil {
		return errorResult(req.DocType, "no page image provided")
	}
	prompt, supported := primaryPrompts[req.DocType]
	if !supported {
		return errorResult(req.DocType, fmt.Sprintf("unsupported document type: %s", req.DocType))
	}
	if req.DocType == constants.Defauts {
		return e.extractDefauts(ctx, req)
	}

	base := req.Page
	pages := e.gatherPages(req)

	rec := e.extractWithRetry(ctx, prompt, pages)
	if len(rec) == 0 {
		return errorResult(req.DocType, "primary extraction failed")
	}
	rec = schema.ApplyDefaults(rec, req.DocType)

	switch req.DocType {
	case constants.Rebut:
		rec = e.runPasses(ctx, rec, e.rebutPasses(base))
	case constants.Kosu:
		rec = e.runPasses(ctx, rec, e.kosuPasses(base))
	}

	rec = normalizeDates(rec, req.DocType, e.logger)

	if err := schema.Validate(rec, req.DocType); err != nil {
		e.logger.Warn("extract.schema_mismatch", "doc_type", string(req.DocType), "error", err)
	}
	warnings := validateAgainstTemplate(rec, req.DocType)
	for _, w := range warnings {
		e.logger.Info("extract.template_warning", "warning", w)
	}
	rec = crossValidateFields(rec, req.DocType, e.logger)

	if fields := problemFields(warnings, getStrings(rec, keyCorrections)); len(fields) > 0 {
		e.logger.Info("extract.reextracting", "doc_type", string(req.DocType), "fields", fields)
		rec = e.runPasses(ctx, rec, []pass{
			{"reextract", func(ctx context.Context, r map[string]any) map[string]any {
				return e.reextractFields(ctx, base, r, fields, req.DocType)
			}},
		})
	}

	rec = finalSanityCheck(rec, req.DocType, e.logger)
	rec = normalizeHeaderIdentity(rec)

	return e.finishResult(req.DocType, rec)
}

// gatherPages assembles the image set for the primary call: the page itself
// plus whatever extra views help the document type.
func (e *Extractor) gatherPages(req Request) []*imaging.Page {
	pages := []*imaging.Page{req.Page}
	switch req.DocType {
	case constants.Rebut:
		if req.SourcePath != "" {
			pages = append(pages, imaging.GatherSiblingCrops(req.SourcePath, e.logger)...)
		}
	case constants.Kosu:
		// tall Kosu scans get sliced, and each segment gets field-focused crops
		for _, seg := range imaging.SliceVerticalSegments(req.Page) {
			pages = append(pages, imaging.Preprocess(seg))
			for _, crop := range imaging.FieldFocusedCrops(seg, constants.Kosu) {
				pages = append(pages, imaging.Preprocess(crop))
			}
		}
		if req.SourcePath != "" {
			pages = append(pages, imaging.GatherSiblingCrops(req.SourcePath, e.logger)...)
		}
	}
	return pages
}

// finishResult lifts the diagnostic side-channel keys off the record into the
// envelope so the data payload is purely business fields.
func (e *Extractor) finishResult(docType constants.DocType, rec map[string]any) *Result {
	res := &Result{
		Status:       "success",
		DocumentType: string(docType),
		Data:         rec,
		Remark:       fmt.Sprintf("%s extraction complete", docType),
		Corrections:  getStrings(rec, keyCorrections),
		Issues:       getStrings(rec, keySanityIssues),
	}
	if c, ok := numericOf(rec[keyFinalConfidence]); ok {
		res.Confidence = c
	}
	delete(rec, keyCorrections)
	delete(rec, keySanityIssues)
	delete(rec, keyFinalConfidence)
	delete(rec, keyModelConfidence)
	return res
}
