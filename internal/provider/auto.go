package provider

import (
	"context"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// AutoOCR routes a document to an OCR provider by media type, so a mixed
// submission of scans and pre-extracted text works under one default.
type AutoOCR struct {
	byType   map[string]OCRProvider
	fallback OCRProvider
}

func NewAutoOCR(fallback OCRProvider) *AutoOCR {
	return &AutoOCR{byType: make(map[string]OCRProvider), fallback: fallback}
}

// Route sends documents of the given media type to p.
func (a *AutoOCR) Route(mediaType string, p OCRProvider) {
	a.byType[constants.NormalizeMediaType(mediaType)] = p
}

func (a *AutoOCR) Name() string { return "auto" }

func (a *AutoOCR) Extract(ctx context.Context, doc entity.Document) (TextResult, error) {
	if p, ok := a.byType[constants.NormalizeMediaType(doc.MediaType)]; ok {
		return p.Extract(ctx, doc)
	}
	if a.fallback == nil {
		return TextResult{}, Permanentf(a.Name(), "no ocr provider for media type %q", doc.MediaType)
	}
	return a.fallback.Extract(ctx, doc)
}
