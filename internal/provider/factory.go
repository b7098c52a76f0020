package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docuscan/extraction-pipeline/internal/common"
)

// Registry resolves capability implementations by name. Selection is
// configuration-driven with per-request override; no runtime type sniffing.
type Registry struct {
	ocr    map[string]OCRProvider
	fields map[string]FieldProvider
}

func NewRegistry() *Registry {
	return &Registry{
		ocr:    make(map[string]OCRProvider),
		fields: make(map[string]FieldProvider),
	}
}

func (r *Registry) RegisterOCR(p OCRProvider) {
	r.ocr[p.Name()] = p
}

func (r *Registry) RegisterFields(p FieldProvider) {
	r.fields[p.Name()] = p
}

func (r *Registry) OCR(name string) (OCRProvider, error) {
	p, ok := r.ocr[name]
	if !ok {
		return nil, fmt.Errorf("unknown ocr provider %q", name)
	}
	return p, nil
}

func (r *Registry) Fields(name string) (FieldProvider, error) {
	p, ok := r.fields[name]
	if !ok {
		return nil, fmt.Errorf("unknown extraction provider %q", name)
	}
	return p, nil
}

// FromConfig builds a registry with every provider the configuration can
// support. The OpenAI extractor is only registered when an API key is set.
func FromConfig(cfg common.ProviderConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()

	plain := NewPlainTextOCR(logger)
	tesseract := NewTesseractOCR(splitLanguages(cfg.TesseractLanguages), logger)
	r.RegisterOCR(plain)
	r.RegisterOCR(tesseract)

	auto := NewAutoOCR(tesseract)
	auto.Route("text/plain", plain)
	r.RegisterOCR(auto)

	r.RegisterFields(NewRulesExtractor(logger))
	if cfg.OpenAIAPIKey != "" {
		r.RegisterFields(NewOpenAIExtractor(OpenAIConfig{
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			APIKey:      cfg.OpenAIAPIKey,
			Temperature: cfg.OpenAITemperature,
		}, &http.Client{}, logger))
	}
	return r
}

func splitLanguages(s string) []string {
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
