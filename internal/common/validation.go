package common

import (
	"fmt"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// MaxDocumentBytes bounds a single submission payload.
const MaxDocumentBytes = 32 << 20 // 32 MiB

// ValidateDocument checks a submission payload before any job is created.
func ValidateDocument(doc entity.Document) error {
	if len(doc.Bytes) == 0 {
		return fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	if len(doc.Bytes) > MaxDocumentBytes {
		return fmt.Errorf("%w: document exceeds %d bytes", ErrInvalidDocument, MaxDocumentBytes)
	}
	if !constants.IsSupportedMediaType(doc.MediaType) {
		return fmt.Errorf("%w: unsupported media type %q", ErrInvalidDocument, doc.MediaType)
	}
	return nil
}
