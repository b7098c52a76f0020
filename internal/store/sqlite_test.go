package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

func openTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	return openTestArchiveRetention(t, 24*time.Hour)
}

func openTestArchiveRetention(t *testing.T, retention time.Duration) *SQLiteArchive {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "archive.db")
	a, err := OpenSQLiteArchive(context.Background(), dsn, retention, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSQLiteArchiveRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	job := entity.NewJob(entity.Document{
		Bytes:     []byte("hello"),
		MediaType: "text/plain",
		Filename:  "inv.txt",
	}, entity.JobOptions{RunExtraction: true})
	job.Status = constants.JobStatusSucceeded
	job.OCRText = "hello"
	job.Fields = map[string]string{"total_amount": "10.00", "currency": "USD"}
	job.OCRAttempts = 1
	job.ExtractionAttempts = 2
	job.StartedAt = time.Now().UTC()
	job.CompletedAt = time.Now().UTC()

	require.NoError(t, a.ArchiveJob(ctx, job.Clone()))

	n, err := a.CountByStatus(ctx, string(constants.JobStatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var fieldsJSON, errKind string
	err = a.db.QueryRowContext(ctx,
		`SELECT fields_json, error_kind FROM extraction_jobs WHERE id = ?`,
		job.ID.String()).Scan(&fieldsJSON, &errKind)
	require.NoError(t, err)
	assert.Contains(t, fieldsJSON, `"total_amount":"10.00"`)
	assert.Empty(t, errKind)
}

func TestSQLiteArchiveFailedJob(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	job := entity.NewJob(entity.Document{
		Bytes:     []byte{0x1},
		MediaType: "image/png",
		Filename:  "scan.png",
	}, entity.JobOptions{})
	job.Status = constants.JobStatusOCRFailed
	job.Error = &entity.JobError{Kind: constants.ErrorKindAttemptsExhausted, Message: "3 attempts exhausted"}
	job.OCRAttempts = 3
	job.CompletedAt = time.Now().UTC()

	require.NoError(t, a.ArchiveJob(ctx, job.Clone()))

	var errKind, errMsg string
	err := a.db.QueryRowContext(ctx,
		`SELECT error_kind, error_msg FROM extraction_jobs WHERE id = ?`,
		job.ID.String()).Scan(&errKind, &errMsg)
	require.NoError(t, err)
	assert.Equal(t, string(constants.ErrorKindAttemptsExhausted), errKind)
	assert.Equal(t, "3 attempts exhausted", errMsg)
}

func TestSQLiteArchiveIdempotentUpsert(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	job := entity.NewJob(entity.Document{
		Bytes:     []byte("x"),
		MediaType: "text/plain",
		Filename:  "a.txt",
	}, entity.JobOptions{})
	job.Status = constants.JobStatusSucceeded
	job.CompletedAt = time.Now().UTC()

	require.NoError(t, a.ArchiveJob(ctx, job.Clone()))
	require.NoError(t, a.ArchiveJob(ctx, job.Clone()))

	n, err := a.CountByStatus(ctx, string(constants.JobStatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteArchivePruneExpired(t *testing.T) {
	a := openTestArchiveRetention(t, time.Hour)
	ctx := context.Background()

	old := entity.NewJob(entity.Document{
		Bytes:     []byte("x"),
		MediaType: "text/plain",
		Filename:  "old.txt",
	}, entity.JobOptions{})
	old.Status = constants.JobStatusSucceeded
	old.CompletedAt = time.Now().UTC().Add(-2 * time.Hour)

	fresh := entity.NewJob(entity.Document{
		Bytes:     []byte("y"),
		MediaType: "text/plain",
		Filename:  "fresh.txt",
	}, entity.JobOptions{})
	fresh.Status = constants.JobStatusSucceeded
	fresh.CompletedAt = time.Now().UTC()

	require.NoError(t, a.ArchiveJob(ctx, old.Clone()))
	require.NoError(t, a.ArchiveJob(ctx, fresh.Clone()))

	removed, err := a.PruneExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := a.CountByStatus(ctx, string(constants.JobStatusSucceeded))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteArchiveNoRetentionKeepsRows(t *testing.T) {
	a := openTestArchiveRetention(t, 0)
	ctx := context.Background()

	job := entity.NewJob(entity.Document{
		Bytes:     []byte("z"),
		MediaType: "text/plain",
		Filename:  "keep.txt",
	}, entity.JobOptions{})
	job.Status = constants.JobStatusSucceeded
	job.CompletedAt = time.Now().UTC().Add(-240 * time.Hour)

	require.NoError(t, a.ArchiveJob(ctx, job.Clone()))

	removed, err := a.PruneExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
