package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atelierflow/formscan/constants"
	"github.com/atelierflow/formscan/internal/common"
	"github.com/atelierflow/formscan/internal/export"
	"github.com/atelierflow/formscan/internal/extract"
	"github.com/atelierflow/formscan/internal/imaging"
	"github.com/atelierflow/formscan/internal/llm/gemini"
	"github.com/atelierflow/formscan/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of scanned form images (required)")
		docType = flag.String("type", "", "document type: Rebut, NPT, Kosu or Défauts (required)")
		out     = flag.String("out", "", "output directory (defaults to <dir>/extracted)")
		workers = flag.Int("workers", 0, "concurrent extractions (defaults to BATCH_WORKERS)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dir == "" || *docType == "" {
		printError("Error: --dir and --type are required\n")
		os.Exit(1)
	}
	dt, ok := constants.ParseDocType(*docType)
	if !ok {
		printError("Error: unsupported document type %q\n", *docType)
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(*dir, "extracted")
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *workers <= 0 {
		*workers = cfg.Batch.Workers
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("failed to read input directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			files = append(files, filepath.Join(*dir, e.Name()))
		}
	}
	if len(files) == 0 {
		logger.Error("no image files found", "dir", *dir)
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", *out, "error", err)
		os.Exit(1)
	}

	db, err := repository.Open(cfg.DB.Path, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DB.Path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	store := repository.NewExtractionRepository(db, logger)

	ctx := context.Background()
	session := &repository.Session{
		ID:           uuid.New(),
		DocumentType: string(dt),
		SourceDir:    *dir,
	}
	if err := store.CreateSession(ctx, session); err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}
	logger.Info("batch.session_started",
		"session_id", session.ID, "doc_type", string(dt), "files", len(files), "workers", *workers)

	client := gemini.NewClient(gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	extractor := extract.New(client, cfg.Extract, logger)
	exporter := export.NewService(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			page, err := imaging.LoadPage(path)
			var result *extract.Result
			if err != nil {
				logger.Warn("batch.load_failed", "path", path, "error", err)
				result = &extract.Result{
					Status:       "error",
					DocumentType: string(dt),
					Message:      fmt.Sprintf("failed to load image: %v", err),
				}
			} else {
				result = extractor.Extract(gctx, extract.Request{
					DocType:    dt,
					Page:       page,
					SourcePath: path,
				})
			}

			payload, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("encode result for %s: %w", path, err)
			}
			if err := store.SaveExtraction(ctx, &repository.Extraction{
				ID:           uuid.New(),
				SessionID:    session.ID,
				SourcePath:   path,
				DocumentType: string(dt),
				Status:       result.Status,
				Remark:       result.Remark,
				Message:      result.Message,
				Confidence:   result.Confidence,
				Payload:      string(payload),
			}); err != nil {
				return err
			}

			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			jsonPath := filepath.Join(*out, stem+".json")
			if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", jsonPath, err)
			}
			if result.Status == "success" {
				if err := exporter.SaveRecordXLSX(result.Data, filepath.Join(*out, stem+".xlsx")); err != nil {
					logger.Warn("batch.export_failed", "path", path, "error", err)
				}
			}
			logger.Info("batch.file_done", "path", path, "status", result.Status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("batch.failed", "session_id", session.ID, "error", err)
		os.Exit(1)
	}

	stored, err := store.ListBySession(ctx, session.ID)
	if err != nil {
		logger.Error("batch.list_failed", "session_id", session.ID, "error", err)
		os.Exit(1)
	}
	succeeded := 0
	for _, e := range stored {
		if e.Status == "success" {
			succeeded++
		}
	}
	logger.Info("batch.session_done",
		"session_id", session.ID, "total", len(stored), "succeeded", succeeded, "out", *out)
}
