package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Cdogma/maehrdocs/internal/common"
)

// ClassifierConfig holds the escalation policy and context window.
type ClassifierConfig struct {
	FallbackModel string  // empty disables escalation
	MinConfidence float32 // floor below which the fallback model is tried once
	ContextChars  int     // prompt text truncation; 0 = no truncation
	ValidDocTypes []string
}

// Classifier is the two-attempt state machine in front of a FieldExtractor:
// primary model (with the extractor's own transient-retry budget), then at
// most one escalation to a higher-capability fallback model when the primary
// result's confidence is below the configured floor.
type Classifier struct {
	Extractor FieldExtractor
	Cfg       ClassifierConfig
	Log       *slog.Logger
}

func NewClassifier(extractor FieldExtractor, cfg ClassifierConfig, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{Extractor: extractor, Cfg: cfg, Log: log}
}

// Classify runs field extraction on text. Empty text is a degraded input, not
// an error here: the model is still asked, and a low-confidence result simply
// rides the normal escalation path.
func (c *Classifier) Classify(ctx context.Context, text, filenameHint string) (DocumentFields, error) {
	req := ExtractRequest{
		Text:          truncate(text, c.Cfg.ContextChars),
		FilenameHint:  filenameHint,
		ValidDocTypes: c.Cfg.ValidDocTypes,
	}

	fields, _, err := c.Extractor.ExtractFields(ctx, req)
	if err != nil {
		return DocumentFields{}, fmt.Errorf("%w: %v", common.ErrClassification, err)
	}

	// An absent confidence never escalates; an explicit 0.0 does.
	conf, reported := fields.ConfidenceValue()
	if c.Cfg.FallbackModel == "" || !reported || conf >= c.Cfg.MinConfidence {
		return fields, nil
	}

	c.Log.Info("classify.escalate",
		"model", c.Cfg.FallbackModel,
		"primary_confidence", conf,
		"min_confidence", c.Cfg.MinConfidence,
	)
	req.Model = c.Cfg.FallbackModel
	escalated, _, err := c.Extractor.ExtractFields(ctx, req)
	if err != nil {
		// The primary result stands; escalation is best-effort.
		c.Log.Warn("classify.escalate_failed", "error", err)
		return fields, nil
	}
	if ec, ok := escalated.ConfidenceValue(); ok && ec >= conf {
		return escalated, nil
	}
	return fields, nil
}

// truncate cuts s to at most max runes without splitting a multibyte character.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
