package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuscan/extraction-pipeline/constants"
)

const sampleInvoice = `ACME Supplies Ltd
Invoice No: INV-2026-0042
2026-02-10
Due Date: 2026-03-12

Bill To: Globex Corporation

Subtotal: $1,200.00
Tax (8.5%): $102.00
Total Due: $1,302.00
`

func TestRulesExtractorInvoice(t *testing.T) {
	r := NewRulesExtractor(nil)
	fields, err := r.ExtractFields(context.Background(), sampleInvoice, nil)
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-0042", fields[constants.FieldInvoiceNumber])
	assert.Equal(t, "2026-02-10", fields[constants.FieldInvoiceDate])
	assert.Equal(t, "2026-03-12", fields[constants.FieldDueDate])
	assert.Equal(t, "1200.00", fields[constants.FieldSubtotal])
	assert.Equal(t, "102.00", fields[constants.FieldTaxAmount])
	assert.Equal(t, "1302.00", fields[constants.FieldTotalAmount])
	assert.Equal(t, "Globex Corporation", fields[constants.FieldCustomerName])
	assert.Equal(t, "USD", fields[constants.FieldCurrency])
}

func TestRulesExtractorReportsOnlyHintedFields(t *testing.T) {
	r := NewRulesExtractor(nil)
	hint := map[string]constants.FieldType{
		constants.FieldTotalAmount: constants.FieldTypeNumber,
	}
	fields, err := r.ExtractFields(context.Background(), sampleInvoice, hint)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{constants.FieldTotalAmount: "1302.00"}, fields)
}

func TestRulesExtractorOmitsAbsentFields(t *testing.T) {
	r := NewRulesExtractor(nil)
	fields, err := r.ExtractFields(context.Background(), "nothing useful here", nil)
	require.NoError(t, err)
	assert.NotContains(t, fields, constants.FieldInvoiceNumber)
	assert.NotContains(t, fields, constants.FieldTotalAmount)
}

func TestRulesExtractorEmptyTextIsPermanent(t *testing.T) {
	r := NewRulesExtractor(nil)
	_, err := r.ExtractFields(context.Background(), "   \n ", nil)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}
