package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/extraction-pipeline/constants"
)

// OpenAIConfig configures the chat-completions field extractor. BaseURL may
// point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
}

// OpenAIExtractor implements FieldProvider using text-only chat/completions
// with a JSON-schema constrained response.
type OpenAIExtractor struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

func NewOpenAIExtractor(cfg OpenAIConfig, client *http.Client, logger *slog.Logger) *OpenAIExtractor {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIExtractor{cfg: cfg, client: client, logger: logger}
}

func (c *OpenAIExtractor) Name() string { return "openai" }

func (c *OpenAIExtractor) ExtractFields(ctx context.Context, text string, hint map[string]constants.FieldType) (map[string]string, error) {
	rid := uuid.New().String()
	start := time.Now()

	schema := BuildFieldJSONSchema(hint)
	c.logger.Info("extract.openai.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(text),
		"fields", len(HintedFields(hint)),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt(hint)},
			{"role": "user", "content": text + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("extract.openai.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, classifyHTTP(c.Name(), status, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, Permanentf(c.Name(), "decode response: %v", err)
	}
	if len(cc.Choices) == 0 {
		return nil, Permanentf(c.Name(), "no choices in response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := ValidateJSONAgainstSchema(schema, content); err != nil {
		c.logger.Error("extract.openai.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, Permanentf(c.Name(), "schema validation failed: %v", err)
	}

	fields, err := decodeFieldMap(content)
	if err != nil {
		return nil, Permanentf(c.Name(), "%v", err)
	}

	c.logger.Info("extract.openai.ok",
		"req_id", rid,
		"fields", len(fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, nil
}

// post sends a JSON request and returns the raw response body and status.
func (c *OpenAIExtractor) post(ctx context.Context, url string, body any) ([]byte, int, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("extract.openai.body_close_error", "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

// classifyHTTP maps transport outcomes to the retry taxonomy: rate limits,
// timeouts and server errors are transient; other client errors are not.
func classifyHTTP(name string, status int, err error) error {
	switch {
	case status == 0:
		// No HTTP status: connect error or context timeout.
		if IsTransient(err) {
			return Transientf(name, "request failed: %v", err)
		}
		return Transientf(name, "connection failed: %v", err)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return Transientf(name, "status %d: %v", status, err)
	default:
		return Permanentf(name, "status %d: %v", status, err)
	}
}

func buildSystemPrompt(hint map[string]constants.FieldType) string {
	var b strings.Builder
	b.WriteString("You extract structured fields from OCR text of scanned business documents. ")
	b.WriteString("Return a single JSON object. Omit fields you cannot find; never invent values. ")
	b.WriteString("Dates are YYYY-MM-DD, amounts are plain decimals without currency symbols.\n")
	b.WriteString("Fields: ")
	b.WriteString(strings.Join(HintedFields(hint), ", "))
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
