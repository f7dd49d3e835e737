// Package repository persists extraction sessions and their results in a
// local sqlite database, one row per processed page.
package repository

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/atelierflow/formscan/internal/common"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	document_type TEXT NOT NULL,
	source_dir    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS extractions (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	source_path   TEXT NOT NULL,
	document_type TEXT NOT NULL,
	status        TEXT NOT NULL,
	remark        TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	confidence    REAL NOT NULL DEFAULT 0,
	payload       TEXT NOT NULL DEFAULT '{}',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_extractions_session ON extractions(session_id);
`

// Open opens (creating if needed) the sqlite database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.NewAppError("DB_OPEN_FAILED", "failed to open database", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, common.NewAppError("DB_MIGRATE_FAILED", "failed to apply schema", err)
	}
	logger.Info("repository.opened", "path", path)
	return db, nil
}
