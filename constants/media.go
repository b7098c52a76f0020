package constants

import "strings"

// SupportedMediaTypes holds the media types the pipeline accepts at submission.
var SupportedMediaTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/tiff":      {},
	"text/plain":      {},
}

// NormalizeMediaType lowercases a declared media type and strips parameters
// ("text/plain; charset=utf-8" -> "text/plain").
func NormalizeMediaType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsSupportedMediaType reports whether the pipeline accepts this media type.
func IsSupportedMediaType(mt string) bool {
	_, ok := SupportedMediaTypes[NormalizeMediaType(mt)]
	return ok
}
