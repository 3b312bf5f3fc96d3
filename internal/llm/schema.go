package llm

// BuildDocumentJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is sent to the model as the output contract and used
// locally to validate the response before decoding.
//
// dokumenttyp is deliberately NOT an enum: an out-of-vocabulary type is not a
// hard failure, the filename generator's fallback handles it.
func BuildDocumentJSONSchema() map[string]any {
	props := map[string]any{
		"absender":    map[string]any{"type": "string"},
		"datum":       map[string]any{"type": "string"},
		"dokumenttyp": map[string]any{"type": "string"},
		"betreff":     map[string]any{"type": "string"},
		"kennzahlen": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type": []string{"string", "number"},
			},
		},
		"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"absender", "datum", "dokumenttyp", "betreff"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}
