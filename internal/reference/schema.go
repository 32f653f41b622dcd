package reference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mediscan/mediscan/constants"
)

// BuildReferenceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as
// a generic map. Reference files are validated against it before decoding,
// so a malformed formulary fails loudly at startup instead of silently
// skewing extraction.
func BuildReferenceJSONSchema() map[string]any {
	entry := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":         map[string]any{"type": "string", "minLength": 1},
			"generic_name": map[string]any{"type": "string"},
			"category":     map[string]any{"type": "string"},
			"common_forms": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": constants.FormStrings()},
			},
		},
		"required": []string{"name"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"medicines": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    entry,
			},
		},
		"required": []string{"medicines"},
	}
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
