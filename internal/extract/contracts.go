package extract

import (
	"context"
	"time"
)

// TextExtractor is Stage 1: file -> text + metadata.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Result is the extraction summary for one document. A Result with empty Text
// and a non-nil ErrExtractionIncomplete from Extract is still usable:
// downstream stages treat empty text as degraded-confidence input.
type Result struct {
	Text     string
	Pages    int
	Metadata map[string]string // pdf Info dict keys, lowercased; best-effort
	Warnings []string
	Duration time.Duration
}
