// Package export renders extraction records into XLSX workbooks, one sheet
// per record section, with the French field names as column headers.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/schema"
)

// Service produces XLSX bytes for extraction records.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RecordXLSX builds a workbook for one extraction record. The sheet layout
// depends on the document type; unknown types get one sheet per list or
// mapping section.
func (s *Service) RecordXLSX(rec map[string]any) ([]byte, error) {
	if len(rec) == 0 {
		return nil, fmt.Errorf("no data to export")
	}
	f := excelize.NewFile()

	docType, _ := rec["document_type"].(string)
	switch constants.DocType(docType) {
	case constants.NPT:
		writeRows(f, "Downtime Events", schema.NPTEventFields, anyRows(rec["downtime_events"]))
		writeMapping(f, "Header", schema.NPTHeaderFields, mapping(rec["header"]))
	case constants.Rebut:
		writeRows(f, "Rebut Items", schema.RebutItemFields, anyRows(rec["items"]))
		writeMapping(f, "Header", schema.RebutHeaderFields, mapping(rec["header"]))
	case constants.Kosu:
		writeRows(f, "Suivi_horaire", schema.KosuHourlyFields, anyRows(rec["Suivi horaire"]))
		writeMapping(f, "Total_Equipe", schema.KosuTotalFields, mapping(rec["Total / Equipe"]))
		writeRows(f, "Regles_Escalade", []string{"Productivité", "Personne à informer"}, anyRows(rec["Règles d'escalade"]))
		header := map[string]any{}
		for _, k := range schema.KosuHeaderFields {
			header[k] = rec[k]
		}
		writeMapping(f, "Infos", schema.KosuHeaderFields, header)
	case constants.Defauts:
		writeMapping(f, "entry_header", schema.DefautsHeaderFields, mapping(rec["entry_header"]))
		defectFields := append(append([]string{}, schema.DefautsRecordFields...), "count")
		writeRows(f, "defects", defectFields, anyRows(rec["recorded_defects"]))
		if summary, ok := rec["summary_data"].(map[string]any); ok {
			writeRows(f, "daily_totals", []string{"day", "station", "total_defauts"}, anyRows(summary["daily_totals"]))
		}
	default:
		s.writeGeneric(f, rec)
	}

	// drop excelize's default sheet when we created named ones
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 && len(f.GetSheetList()) > 1 {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveRecordXLSX writes the workbook for rec to path.
func (s *Service) SaveRecordXLSX(rec map[string]any, path string) error {
	b, err := s.RecordXLSX(rec)
	if err != nil {
		return err
	}
	if err := writeFile(path, b); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	s.logger.Info("export.saved", "path", path)
	return nil
}

func writeFile(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func anyRows(v any) []map[string]any {
	rows, _ := v.([]any)
	var out []map[string]any
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func mapping(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// writeRows lays out a list section as a table: one column per field, one
// row per entry.
func writeRows(f *excelize.File, sheet string, fields []string, rows []map[string]any) {
	if _, err := f.NewSheet(sheet); err != nil {
		return
	}
	for col, h := range fields {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		for col, field := range fields {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, cellValue(row[field]))
		}
	}
}

// writeMapping lays out a single mapping as a two-row table: field names on
// the first row, values on the second.
func writeMapping(f *excelize.File, sheet string, fields []string, m map[string]any) {
	if m == nil {
		return
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return
	}
	for col, field := range fields {
		head, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, head, field)
		val, _ := excelize.CoordinatesToCellName(col+1, 2)
		_ = f.SetCellValue(sheet, val, cellValue(m[field]))
	}
}

// writeGeneric handles records of unknown shape: one sheet per list of
// objects or nested mapping, keyed by the record key.
func (s *Service) writeGeneric(f *excelize.File, rec map[string]any) {
	for k, v := range rec {
		name := sheetName(k)
		switch t := v.(type) {
		case []any:
			rows := anyRows(t)
			if len(rows) == 0 {
				continue
			}
			var fields []string
			seen := map[string]struct{}{}
			for _, row := range rows {
				for field := range row {
					if _, ok := seen[field]; !ok {
						seen[field] = struct{}{}
						fields = append(fields, field)
					}
				}
			}
			writeRows(f, name, fields, rows)
		case map[string]any:
			var fields []string
			for field := range t {
				fields = append(fields, field)
			}
			writeMapping(f, name, fields, t)
		}
	}
}

// sheetName truncates to excelize's 31-character sheet name limit.
func sheetName(s string) string {
	if len(s) > 31 {
		return s[:31]
	}
	return s
}

func cellValue(v any) any {
	if v == nil {
		return ""
	}
	return v
}
