package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// TesseractOCR extracts text from raster images via the Tesseract engine.
// A fresh gosseract client is created per call so concurrent workers never
// share engine state.
type TesseractOCR struct {
	languages []string
	logger    *slog.Logger
}

func NewTesseractOCR(languages []string, logger *slog.Logger) *TesseractOCR {
	if logger == nil {
		logger = slog.Default()
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractOCR{languages: languages, logger: logger}
}

func (t *TesseractOCR) Name() string { return "tesseract" }

func (t *TesseractOCR) Extract(ctx context.Context, doc entity.Document) (TextResult, error) {
	if err := ctx.Err(); err != nil {
		return TextResult{}, err
	}
	mt := constants.NormalizeMediaType(doc.MediaType)
	switch mt {
	case "image/png", "image/jpeg", "image/tiff":
	default:
		return TextResult{}, Permanentf(t.Name(), "unsupported media type %q", mt)
	}

	start := time.Now()
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return TextResult{}, Permanentf(t.Name(), "set language: %v", err)
	}
	if err := client.SetImageFromBytes(doc.Bytes); err != nil {
		return TextResult{}, Permanentf(t.Name(), "set image: %v", err)
	}

	text, err := client.Text()
	elapsed := time.Since(start)
	if err != nil {
		t.logger.Error("ocr.tesseract.failed",
			"filename", doc.Filename,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
		// Engine faults on well-formed input are not resolved by retrying.
		return TextResult{}, Permanentf(t.Name(), "recognize: %v", err)
	}

	t.logger.Debug("ocr.tesseract.ok",
		"filename", doc.Filename,
		"text_bytes", len(text),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return TextResult{Text: text, Method: t.Name(), Duration: elapsed}, nil
}
