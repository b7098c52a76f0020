// Package export produces XLSX workbooks summarizing terminal jobs and the
// drift monitor's current accuracy window.
package export

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/drift"
	"github.com/docuscan/extraction-pipeline/internal/entity"
	"github.com/docuscan/extraction-pipeline/internal/store"
)

// Service is a tiny façade over the job store and drift monitor that
// produces XLSX bytes for exports.
type Service struct {
	store  store.JobStore
	drift  *drift.Monitor // optional; nil skips the drift sheet
	logger *slog.Logger
}

func NewService(st store.JobStore, monitor *drift.Monitor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, drift: monitor, logger: logger}
}

// ExportXLSX returns a workbook (as bytes) with one row per terminal job and,
// when a drift monitor is wired, a second sheet of per-field window scores.
func (s *Service) ExportXLSX() ([]byte, error) {
	start := time.Now()

	jobs := s.store.ListTerminalJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt)
	})

	f := excelize.NewFile()
	const sheet = "Jobs"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Job ID",
		"Batch ID",
		"Filename",
		"Status",
		"Error Kind",
		"Error Message",
		"Fields",
		"OCR Attempts",
		"Extraction Attempts",
		"Submitted",
		"Completed",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, job := range jobs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, job.ID.String())
		if job.BatchID != uuid.Nil {
			write(2, job.BatchID.String())
		} else {
			write(2, "")
		}
		write(3, job.Document.Filename)
		write(4, string(job.Status))
		if job.Error != nil {
			write(5, string(job.Error.Kind))
			write(6, truncate(job.Error.Message, 140))
		} else {
			write(5, "")
			write(6, "")
		}
		write(7, formatFields(job))
		write(8, job.OCRAttempts)
		write(9, job.ExtractionAttempts)
		write(10, job.SubmittedAt.Format(time.RFC3339))
		if !job.CompletedAt.IsZero() {
			write(11, job.CompletedAt.Format(time.RFC3339))
		} else {
			write(11, "")
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 38)
	_ = f.SetColWidth(sheet, "C", "C", 28)
	_ = f.SetColWidth(sheet, "D", "E", 20)
	_ = f.SetColWidth(sheet, "F", "F", 48)
	_ = f.SetColWidth(sheet, "G", "G", 60)
	_ = f.SetColWidth(sheet, "J", "K", 22)

	if s.drift != nil {
		if err := s.writeDriftSheet(f); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeDriftSheet(f *excelize.File) error {
	const sheet = "Drift"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	snap := s.drift.Snapshot()
	headers := []string{"Field", "Precision", "Recall", "F1", "TP", "FP", "FN"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, field := range snap.Fields() {
		score := snap.PerField[field]
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, field)
		write(2, score.Precision)
		write(3, score.Recall)
		write(4, score.F1)
		write(5, score.TP)
		write(6, score.FP)
		write(7, score.FN)
		row++
	}

	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	write(1, "macro_f1")
	write(4, snap.MacroF1)

	_ = f.SetColWidth(sheet, "A", "A", 24)
	return nil
}

func formatFields(job entity.Job) string {
	if job.Status != constants.JobStatusSucceeded && job.Status != constants.JobStatusCancelled {
		return ""
	}
	keys := make([]string, 0, len(job.Fields))
	for k := range job.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "; "
		}
		out += k + "=" + job.Fields[k]
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
