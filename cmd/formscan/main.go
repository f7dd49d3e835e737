package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/common"
	"github.com/atelierflow/formscan/internal/export"
	"github.com/atelierflow/formscan/internal/extract"
	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm/gemini"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		imagePath = flag.String("image", "", "path to the scanned form image (required)")
		docType   = flag.String("type", "", "document type: Rebut, NPT, Kosu or Défauts (required)")
		jsonPath  = flag.String("json", "output.json", "output JSON file path")
		excelPath = flag.String("excel", "output.xlsx", "output XLSX file path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *imagePath == "" || *docType == "" {
		printError("Error: --image and --type are required\n")
		os.Exit(1)
	}
	dt, ok := constants.ParseDocType(*docType)
	if !ok {
		printError("Error: unsupported document type %q\n", *docType)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	page, err := imaging.LoadPage(*imagePath)
	if err != nil {
		logger.Error("failed to load image", "path", *imagePath, "error", err)
		os.Exit(1)
	}

	client := gemini.NewClient(gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	extractor := extract.New(client, cfg.Extract, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout*10)
	defer cancel()

	result := extractor.Extract(ctx, extract.Request{
		DocType:    dt,
		Page:       page,
		SourcePath: *imagePath,
	})

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Error("failed to encode result", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*jsonPath, encoded, 0o644); err != nil {
		logger.Error("failed to write JSON output", "path", *jsonPath, "error", err)
		os.Exit(1)
	}
	logger.Info("json.saved", "path", *jsonPath, "status", result.Status)

	if result.Status != "success" {
		logger.Error("extraction failed", "message", result.Message)
		os.Exit(1)
	}

	if err := export.NewService(logger).SaveRecordXLSX(result.Data, *excelPath); err != nil {
		logger.Error("failed to export workbook", "path", *excelPath, "error", err)
		os.Exit(1)
	}
}
