package llm

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := StripCodeFences(c.in); got != c.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeKeyFigures(t *testing.T) {
	in := []byte(`{"absender":"x","kennzahlen":{"betrag":123.456,"anzahl":3,"nr":"A-1","leer":null}}`)
	out, err := NormalizeKeyFigures(in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	var doc struct {
		KeyFigures map[string]string `json:"kennzahlen"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.KeyFigures["betrag"] != "123.46" {
		t.Errorf("float: got %q", doc.KeyFigures["betrag"])
	}
	if doc.KeyFigures["anzahl"] != "3" {
		t.Errorf("int: got %q", doc.KeyFigures["anzahl"])
	}
	if doc.KeyFigures["nr"] != "A-1" {
		t.Errorf("string: got %q", doc.KeyFigures["nr"])
	}
	if _, ok := doc.KeyFigures["leer"]; ok {
		t.Errorf("null value kept")
	}
}

func TestNormalizeKeyFiguresNoObject(t *testing.T) {
	in := []byte(`{"absender":"x"}`)
	out, err := NormalizeKeyFigures(in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(out) != string(in) {
		t.Errorf("document without kennzahlen was rewritten: %s", out)
	}
}

func TestSchemaAcceptsValidDocument(t *testing.T) {
	doc := []byte(`{"absender":"Stadtwerke","datum":"2024-03-15","dokumenttyp":"rechnung","betreff":"Strom","kennzahlen":{"betrag":89.90},"confidence":0.92}`)
	if err := ValidateJSONAgainstSchema(BuildDocumentJSONSchema(), doc); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

func TestSchemaRejectsMissingRequiredField(t *testing.T) {
	doc := []byte(`{"absender":"Stadtwerke","datum":"2024-03-15","betreff":"Strom"}`)
	if err := ValidateJSONAgainstSchema(BuildDocumentJSONSchema(), doc); err == nil {
		t.Fatal("document without dokumenttyp accepted")
	}
}

func TestSchemaAcceptsUnknownDocType(t *testing.T) {
	// The type vocabulary is enforced by the filename generator, not the schema.
	doc := []byte(`{"absender":"x","datum":"2024-01-01","dokumenttyp":"quittung","betreff":"y"}`)
	if err := ValidateJSONAgainstSchema(BuildDocumentJSONSchema(), doc); err != nil {
		t.Fatalf("unlisted type rejected by schema: %v", err)
	}
}
