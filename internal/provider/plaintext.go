package provider

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// PlainTextOCR handles text/plain documents where Stage 1 is an identity
// transform. Useful for pre-extracted text and for exercising the pipeline
// without an OCR engine installed.
type PlainTextOCR struct {
	logger *slog.Logger
}

func NewPlainTextOCR(logger *slog.Logger) *PlainTextOCR {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlainTextOCR{logger: logger}
}

func (p *PlainTextOCR) Name() string { return "plaintext" }

func (p *PlainTextOCR) Extract(ctx context.Context, doc entity.Document) (TextResult, error) {
	if err := ctx.Err(); err != nil {
		return TextResult{}, err
	}
	if mt := constants.NormalizeMediaType(doc.MediaType); mt != "text/plain" {
		return TextResult{}, Permanentf(p.Name(), "unsupported media type %q", mt)
	}
	if !utf8.Valid(doc.Bytes) {
		return TextResult{}, Permanentf(p.Name(), "document is not valid UTF-8 text")
	}
	start := time.Now()
	return TextResult{
		Text:     string(doc.Bytes),
		Method:   p.Name(),
		Duration: time.Since(start),
	}, nil
}
