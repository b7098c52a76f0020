package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docuscan/extraction-pipeline/constants"
)

// BuildFieldJSONSchema returns a JSON-Schema (draft 2020-12 subset) for the
// hinted field set as a generic map. Extractors pass it to the model as a
// structured-output constraint and also use it to validate locally.
// All values are strings on the wire; numeric and date fields get patterns.
func BuildFieldJSONSchema(hint map[string]constants.FieldType) map[string]any {
	if len(hint) == 0 {
		hint = constants.DefaultFieldTypes
	}
	props := map[string]any{}
	for field, ft := range hint {
		switch ft {
		case constants.FieldTypeNumber:
			props[field] = map[string]any{"type": "string", "pattern": `^-?\d+(\.\d+)?$`}
		case constants.FieldTypeDate:
			props[field] = map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
		default:
			props[field] = map[string]any{"type": "string"}
		}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// HintedFields returns the hinted field names in a stable order.
func HintedFields(hint map[string]constants.FieldType) []string {
	if len(hint) == 0 {
		return constants.DefaultInvoiceFields
	}
	out := make([]string, 0, len(hint))
	for f := range hint {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// decodeFieldMap turns validated extractor JSON into the field->value map.
// Empty values are dropped so absent and empty fields read the same way.
func decodeFieldMap(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			if t != "" {
				out[k] = t
			}
		case float64:
			out[k] = trimFloat(t)
		case nil:
			// absent
		default:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out, nil
}

func trimFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
