package llm

import "context"

// DocumentFields is the normalized five-field shape we want from the model.
// The JSON keys match the analysis contract the prompt dictates.
type DocumentFields struct {
	Sender     string            `json:"absender"`
	Date       string            `json:"datum"` // ideally YYYY-MM-DD; namegen tolerates more
	DocType    string            `json:"dokumenttyp"`
	Subject    string            `json:"betreff"`
	KeyFigures map[string]string `json:"kennzahlen,omitempty"` // label -> value (invoice no., amounts, ...)

	// Confidence is a pointer so a model that reports 0.0 is distinguishable
	// from one that omits the key entirely.
	Confidence *float32 `json:"confidence,omitempty"` // optional (0..1)
}

// ConfidenceValue returns the reported confidence and whether the model
// reported one at all.
func (f DocumentFields) ConfidenceValue() (float32, bool) {
	if f.Confidence == nil {
		return 0, false
	}
	return *f.Confidence, true
}

type ExtractRequest struct {
	Text          string
	FilenameHint  string
	ValidDocTypes []string
	Model         string // override; empty means the client's configured model
}

// FieldExtractor is the interface the classifier depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (DocumentFields, []byte /*rawJSON*/, error)
}
