package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelierflow/formscan/internal/common"
)

// Session groups the extractions of one batch run.
type Session struct {
	ID           uuid.UUID
	DocumentType string
	SourceDir    string
	CreatedAt    time.Time
}

// Extraction is one stored pipeline result. Payload holds the full result
// envelope as JSON so nothing is lost between runs.
type Extraction struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	SourcePath   string
	DocumentType string
	Status       string
	Remark       string
	Message      string
	Confidence   float64
	Payload      string
	CreatedAt    time.Time
}

type ExtractionRepository interface {
	CreateSession(ctx context.Context, s *Session) error
	SaveExtraction(ctx context.Context, e *Extraction) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Extraction, error)
}

type extractionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExtractionRepository(db *sql.DB, logger *slog.Logger) ExtractionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractionRepository{db: db, logger: logger}
}

func (r *extractionRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, document_type, source_dir) VALUES (?, ?, ?)`,
		s.ID.String(), s.DocumentType, s.SourceDir)
	if err != nil {
		r.logger.Error("repository.create_session_failed", "session_id", s.ID, "error", err)
		return common.NewAppError("DB_INSERT_FAILED", "failed to create session", err)
	}
	return nil
}

func (r *extractionRepository) SaveExtraction(ctx context.Context, e *Extraction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extractions (id, session_id, source_path, document_type, status, remark, message, confidence, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.SessionID.String(), e.SourcePath, e.DocumentType,
		e.Status, e.Remark, e.Message, e.Confidence, e.Payload)
	if err != nil {
		r.logger.Error("repository.save_extraction_failed",
			"extraction_id", e.ID, "source_path", e.SourcePath, "error", err)
		return common.NewAppError("DB_INSERT_FAILED", "failed to save extraction", err)
	}
	return nil
}

func (r *extractionRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Extraction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, source_path, document_type, status, remark, message, confidence, payload, created_at
		 FROM extractions WHERE session_id = ? ORDER BY created_at, source_path`,
		sessionID.String())
	if err != nil {
		return nil, common.NewAppError("DB_QUERY_FAILED", "failed to list extractions", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Extraction
	for rows.Next() {
		var e Extraction
		var id, sid string
		if err := rows.Scan(&id, &sid, &e.SourcePath, &e.DocumentType,
			&e.Status, &e.Remark, &e.Message, &e.Confidence, &e.Payload, &e.CreatedAt); err != nil {
			return nil, common.NewAppError("DB_SCAN_FAILED", "failed to scan extraction row", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, common.NewAppError("DB_SCAN_FAILED", "invalid extraction id", err)
		}
		if e.SessionID, err = uuid.Parse(sid); err != nil {
			return nil, common.NewAppError("DB_SCAN_FAILED", "invalid session id", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
