package provider

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/docuscan/extraction-pipeline/constants"
)

// RulesExtractor is an offline, deterministic field extractor built on
// labelled-line and pattern heuristics. It has no external dependencies,
// which makes it the default provider for CLIs and test harnesses, and a
// fallback when no model endpoint is configured.
type RulesExtractor struct {
	logger *slog.Logger
}

func NewRulesExtractor(logger *slog.Logger) *RulesExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RulesExtractor{logger: logger}
}

func (r *RulesExtractor) Name() string { return "rules" }

var (
	reInvoiceNumber = regexp.MustCompile(`(?i)invoice\s*(?:no|number|#|id)?\s*[:.#]?\s*([A-Za-z0-9][A-Za-z0-9/-]*)`)
	reISODate       = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	reAmount        = `\$?\s*(-?\d[\d,]*(?:\.\d{1,2})?)`
	reTotal         = regexp.MustCompile(`(?i)\btotal\b(?:\s*(?:due|amount))?\s*[:.]?\s*` + reAmount)
	reSubtotal      = regexp.MustCompile(`(?i)\bsub\s*-?total\b\s*[:.]?\s*` + reAmount)
	reTax           = regexp.MustCompile(`(?i)\b(?:tax|vat|gst)\b(?:\s*\(?\d+(?:\.\d+)?%\)?)?\s*[:.]?\s*` + reAmount)
	reDueDate       = regexp.MustCompile(`(?i)\bdue\s*(?:date|by)?\s*[:.]?\s*(\d{4}-\d{2}-\d{2})`)
	reSupplier      = regexp.MustCompile(`(?i)\b(?:from|supplier|vendor|billed\s+by)\s*[:.]?\s*(.+)`)
	reCustomer      = regexp.MustCompile(`(?i)\b(?:to|customer|bill\s+to|billed\s+to)\s*[:.]?\s*(.+)`)
)

var currencySymbols = map[string]string{"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY"}

func (r *RulesExtractor) ExtractFields(ctx context.Context, text string, hint map[string]constants.FieldType) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, Permanentf(r.Name(), "empty text")
	}

	found := map[string]string{}
	lines := strings.Split(text, "\n")

	if m := reInvoiceNumber.FindStringSubmatch(text); m != nil {
		found[constants.FieldInvoiceNumber] = m[1]
	}
	if m := reDueDate.FindStringSubmatch(text); m != nil {
		found[constants.FieldDueDate] = m[1]
	}
	// First ISO date that is not the due date is taken as the invoice date.
	for _, m := range reISODate.FindAllStringSubmatch(text, -1) {
		if m[1] != found[constants.FieldDueDate] {
			found[constants.FieldInvoiceDate] = m[1]
			break
		}
	}
	if m := reTotal.FindStringSubmatch(text); m != nil {
		found[constants.FieldTotalAmount] = normalizeAmount(m[1])
	}
	if m := reSubtotal.FindStringSubmatch(text); m != nil {
		found[constants.FieldSubtotal] = normalizeAmount(m[1])
	}
	if m := reTax.FindStringSubmatch(text); m != nil {
		found[constants.FieldTaxAmount] = normalizeAmount(m[1])
	}
	for _, line := range lines {
		if m := reSupplier.FindStringSubmatch(line); m != nil && found[constants.FieldSupplierName] == "" {
			found[constants.FieldSupplierName] = strings.TrimSpace(m[1])
		}
		if m := reCustomer.FindStringSubmatch(line); m != nil && found[constants.FieldCustomerName] == "" {
			found[constants.FieldCustomerName] = strings.TrimSpace(m[1])
		}
	}
	for sym, code := range currencySymbols {
		if strings.Contains(text, sym) {
			found[constants.FieldCurrency] = code
			break
		}
	}

	// Only report hinted fields.
	out := map[string]string{}
	for _, f := range HintedFields(hint) {
		if v, ok := found[f]; ok && v != "" {
			out[f] = v
		}
	}
	r.logger.Debug("extract.rules.ok", "fields", len(out), "text_bytes", len(text))
	return out, nil
}

func normalizeAmount(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}
