package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes a surrounding markdown code fence if the model
// wrapped its JSON in one, e.g. ```json ... ```.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	start := strings.Index(s, "\n")
	if start < 0 {
		return s
	}
	rest := s[start+1:]
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// NormalizeKeyFigures rewrites the kennzahlen object so every value is a
// string. Models frequently return amounts as bare numbers; the schema allows
// that, the Go shape does not. Nulls are dropped.
func NormalizeKeyFigures(doc []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	raw, ok := m["kennzahlen"].(map[string]any)
	if !ok {
		return doc, nil
	}
	clean := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			// drop
		case string:
			if s := strings.TrimSpace(t); s != "" {
				clean[k] = s
			}
		case float64:
			if t == float64(int64(t)) {
				clean[k] = fmt.Sprintf("%d", int64(t))
			} else {
				clean[k] = fmt.Sprintf("%.2f", t)
			}
		case bool:
			clean[k] = fmt.Sprintf("%t", t)
		default:
			// unknown type -> drop
		}
	}
	m["kennzahlen"] = clean
	return json.Marshal(m)
}
