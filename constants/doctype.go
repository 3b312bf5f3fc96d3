package constants

import "strings"

// FallbackDocType is used when a classified type matches nothing in the vocabulary.
const FallbackDocType = "dokument"

// DefaultDocTypes is the default document-type vocabulary for filename generation.
var DefaultDocTypes = []string{
	"rechnung",
	"vertrag",
	"brief",
	"meldung",
	"bescheid",
	"dokument",
	"antrag",
}

// NormalizeDocType lowercases and trims a document type for vocabulary lookup.
func NormalizeDocType(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
