package constants

// Canonical invoice field names used as the default extraction target and as
// the default drift-monitored set. Providers may return additional fields;
// these are the ones every concrete extractor is expected to attempt.
const (
	FieldInvoiceNumber   = "invoice_number"
	FieldInvoiceDate     = "invoice_date"
	FieldDueDate         = "due_date"
	FieldSupplierName    = "supplier_name"
	FieldSupplierAddress = "supplier_address"
	FieldCustomerName    = "customer_name"
	FieldSubtotal        = "subtotal"
	FieldTaxAmount       = "tax_amount"
	FieldTotalAmount     = "total_amount"
	FieldCurrency        = "currency"
)

// DefaultInvoiceFields lists the canonical fields in a stable order.
var DefaultInvoiceFields = []string{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldDueDate,
	FieldSupplierName,
	FieldSupplierAddress,
	FieldCustomerName,
	FieldSubtotal,
	FieldTaxAmount,
	FieldTotalAmount,
	FieldCurrency,
}

// FieldType is a coarse value-type hint used to build extractor schemas and
// to pick the comparison rule during drift scoring.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
	FieldTypeDate   FieldType = "date"
)

// DefaultFieldTypes maps the canonical fields to their value-type hints.
var DefaultFieldTypes = map[string]FieldType{
	FieldInvoiceNumber:   FieldTypeString,
	FieldInvoiceDate:     FieldTypeDate,
	FieldDueDate:         FieldTypeDate,
	FieldSupplierName:    FieldTypeString,
	FieldSupplierAddress: FieldTypeString,
	FieldCustomerName:    FieldTypeString,
	FieldSubtotal:        FieldTypeNumber,
	FieldTaxAmount:       FieldTypeNumber,
	FieldTotalAmount:     FieldTypeNumber,
	FieldCurrency:        FieldTypeString,
}
