package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuscan/extraction-pipeline/constants"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

var testHint = map[string]constants.FieldType{
	"invoice_number": constants.FieldTypeString,
	"total_amount":   constants.FieldTypeNumber,
	"invoice_date":   constants.FieldTypeDate,
}

func newTestExtractor(url string) *OpenAIExtractor {
	return NewOpenAIExtractor(OpenAIConfig{
		BaseURL: url,
		Model:   "test-model",
		APIKey:  "test-key",
	}, nil, nil)
}

func TestOpenAIExtractFields(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatResponse(`{"invoice_number":"INV-7","total_amount":"123.45","invoice_date":"2026-03-01"}`)))
	}))
	defer srv.Close()

	fields, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "some ocr text", testHint)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "INV-7", fields["invoice_number"])
	assert.Equal(t, "123.45", fields["total_amount"])
	assert.Equal(t, "2026-03-01", fields["invoice_date"])
}

func TestOpenAIDropsEmptyValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatResponse(`{"invoice_number":"INV-7","invoice_date":""}`)))
	}))
	defer srv.Close()

	fields, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "text", testHint)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"invoice_number": "INV-7"}, fields)
}

func TestOpenAIServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "text", testHint)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenAIRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "text", testHint)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenAIAuthErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "text", testHint)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestOpenAIConnectFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "text", testHint)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenAISchemaViolationIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown property and malformed date both violate the schema.
		_, _ = w.Write([]byte(chatResponse(`{"surprise_field":"x","invoice_date":"03/01/2026"}`)))
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).ExtractFields(context.Background(), "text", testHint)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestOpenAIContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestExtractor(srv.URL).ExtractFields(ctx, "text", testHint)
	require.Error(t, err)
	assert.True(t, IsTransient(err), "timeouts must be retryable")
}
