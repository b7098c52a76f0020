package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docuscan/extraction-pipeline/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT,
	filename     TEXT NOT NULL,
	media_type   TEXT NOT NULL,
	status       TEXT NOT NULL,
	ocr_text     TEXT,
	fields_json  TEXT,
	error_kind   TEXT,
	error_msg    TEXT,
	ocr_attempts        INTEGER NOT NULL DEFAULT 0,
	extraction_attempts INTEGER NOT NULL DEFAULT 0,
	submitted_at TEXT NOT NULL,
	started_at   TEXT,
	completed_at TEXT NOT NULL,
	expires_at   INTEGER
);
`

// SQLiteArchive persists terminal job outcomes in a SQLite database.
// Use DSN "file::memory:?cache=shared" for an in-memory archive.
type SQLiteArchive struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
}

func OpenSQLiteArchive(ctx context.Context, dsn string, retention time.Duration, logger *slog.Logger) (*SQLiteArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite archive: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	logger.Info("archive connected", "driver", "sqlite", "dsn", dsn)
	return &SQLiteArchive{db: db, retention: retention, logger: logger}, nil
}

func (a *SQLiteArchive) ArchiveJob(ctx context.Context, job entity.Job) error {
	fields, erk, erm := archiveColumns(job)
	var expiresAt any
	if a.retention > 0 {
		expiresAt = job.CompletedAt.Add(a.retention).Unix()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO extraction_jobs
		(id, batch_id, filename, media_type, status, ocr_text, fields_json,
		 error_kind, error_msg, ocr_attempts, extraction_attempts,
		 submitted_at, started_at, completed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(),
		batchColumn(job),
		job.Document.Filename,
		job.Document.MediaType,
		string(job.Status),
		job.OCRText,
		fields,
		erk,
		erm,
		job.OCRAttempts,
		job.ExtractionAttempts,
		job.SubmittedAt.Format(time.RFC3339Nano),
		job.StartedAt.Format(time.RFC3339Nano),
		job.CompletedAt.Format(time.RFC3339Nano),
		expiresAt,
	)
	if err != nil {
		a.logger.Error("archive.insert_failed", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}

func (a *SQLiteArchive) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM extraction_jobs WHERE expires_at IS NOT NULL AND expires_at < ?`,
		now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus is used by health checks and tests.
func (a *SQLiteArchive) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM extraction_jobs WHERE status = ?`, status).Scan(&n)
	return n, err
}

func (a *SQLiteArchive) Close() error { return a.db.Close() }

func archiveColumns(job entity.Job) (fieldsJSON, errKind, errMsg string) {
	if job.Fields != nil {
		if b, err := json.Marshal(job.Fields); err == nil {
			fieldsJSON = string(b)
		}
	}
	if job.Error != nil {
		errKind = string(job.Error.Kind)
		errMsg = job.Error.Message
	}
	return fieldsJSON, errKind, errMsg
}

func batchColumn(job entity.Job) string {
	if job.BatchID == uuid.Nil {
		return ""
	}
	return job.BatchID.String()
}
