package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id           UUID PRIMARY KEY,
	batch_id     UUID,
	filename     TEXT NOT NULL,
	media_type   TEXT NOT NULL,
	status       TEXT NOT NULL,
	ocr_text     TEXT,
	fields_json  JSONB,
	error_kind   TEXT,
	error_msg    TEXT,
	ocr_attempts        INT NOT NULL DEFAULT 0,
	extraction_attempts INT NOT NULL DEFAULT 0,
	submitted_at TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ
);
`

// PostgresArchive is the Postgres-backed Archiver, for deployments that
// already run a database. Pool sizing follows the archive configuration.
type PostgresArchive struct {
	pool      *pgxpool.Pool
	retention time.Duration
	logger    *slog.Logger
}

func OpenPostgresArchive(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (*PostgresArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse archive dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "extraction-pipeline"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	logger.Info("archive connected", "driver", "postgres")
	return &PostgresArchive{pool: pool, retention: cfg.Retention, logger: logger}, nil
}

func (a *PostgresArchive) ArchiveJob(ctx context.Context, job entity.Job) error {
	var fields any
	if job.Fields != nil {
		b, err := json.Marshal(job.Fields)
		if err == nil {
			fields = string(b)
		}
	}
	var errKind, errMsg any
	if job.Error != nil {
		errKind = string(job.Error.Kind)
		errMsg = job.Error.Message
	}
	var batchID any
	if b := batchColumn(job); b != "" {
		batchID = b
	}
	var expiresAt any
	if a.retention > 0 {
		expiresAt = job.CompletedAt.Add(a.retention)
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO extraction_jobs
		(id, batch_id, filename, media_type, status, ocr_text, fields_json,
		 error_kind, error_msg, ocr_attempts, extraction_attempts,
		 submitted_at, started_at, completed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`,
		job.ID.String(),
		batchID,
		job.Document.Filename,
		job.Document.MediaType,
		string(job.Status),
		job.OCRText,
		fields,
		errKind,
		errMsg,
		job.OCRAttempts,
		job.ExtractionAttempts,
		job.SubmittedAt,
		job.StartedAt,
		job.CompletedAt,
		expiresAt,
	)
	if err != nil {
		a.logger.Error("archive.insert_failed", "job_id", job.ID, "error", err)
	}
	return err
}

func (a *PostgresArchive) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := a.pool.Exec(ctx,
		`DELETE FROM extraction_jobs WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (a *PostgresArchive) Close() error {
	a.pool.Close()
	return nil
}
