package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuscan/extraction-pipeline/internal/common"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

func TestPlainTextOCR(t *testing.T) {
	p := NewPlainTextOCR(nil)

	res, err := p.Extract(context.Background(), entity.Document{
		Bytes:     []byte("hello world"),
		MediaType: "text/plain; charset=utf-8",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, "plaintext", res.Method)

	_, err = p.Extract(context.Background(), entity.Document{
		Bytes:     []byte{0x89, 0x50, 0x4e, 0x47},
		MediaType: "image/png",
	})
	require.Error(t, err)
	assert.False(t, IsTransient(err))

	_, err = p.Extract(context.Background(), entity.Document{
		Bytes:     []byte{0xff, 0xfe, 0xfd},
		MediaType: "text/plain",
	})
	require.Error(t, err, "binary payload is not plain text")
}

func TestAutoOCRRoutesByMediaType(t *testing.T) {
	plain := NewPlainTextOCR(nil)
	auto := NewAutoOCR(nil)
	auto.Route("text/plain", plain)

	res, err := auto.Extract(context.Background(), entity.Document{
		Bytes:     []byte("routed"),
		MediaType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "routed", res.Text)

	// No route and no fallback: permanent failure.
	_, err = auto.Extract(context.Background(), entity.Document{
		Bytes:     []byte{0x1},
		MediaType: "image/png",
	})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestRegistryResolution(t *testing.T) {
	cfg := common.ProviderConfig{
		OCRProvider:        "auto",
		ExtractionProvider: "rules",
		TesseractLanguages: "eng,deu",
	}
	r := FromConfig(cfg, nil)

	for _, name := range []string{"auto", "plaintext", "tesseract"} {
		p, err := r.OCR(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
	_, err := r.OCR("nope")
	assert.Error(t, err)

	fp, err := r.Fields("rules")
	require.NoError(t, err)
	assert.Equal(t, "rules", fp.Name())

	// No API key configured: the model-backed extractor is absent.
	_, err = r.Fields("openai")
	assert.Error(t, err)

	cfg.OpenAIAPIKey = "k"
	r = FromConfig(cfg, nil)
	_, err = r.Fields("openai")
	assert.NoError(t, err)
}
