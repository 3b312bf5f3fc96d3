package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cdogma/maehrdocs/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
// Transient failures (timeouts, 429, 5xx, malformed or schema-invalid JSON)
// are retried up to MaxRetries attempts; each retry is a fresh call.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.DocumentFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"doc_types", len(req.ValidDocTypes),
	)

	var lastErr error
	var lastRaw []byte
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		fields, raw, err, retryable := c.attempt(ctx, rid, model, req)
		if err == nil {
			conf, _ := fields.ConfidenceValue()
			c.log.Info("llm.extract.ok",
				"req_id", rid,
				"attempt", attempt,
				"sender", fields.Sender,
				"date", fields.Date,
				"doc_type", fields.DocType,
				"confidence", conf,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return fields, raw, nil
		}
		lastErr = err
		lastRaw = raw
		if !retryable || attempt == c.cfg.MaxRetries {
			break
		}
		c.log.Warn("llm.extract.retry",
			"req_id", rid, "attempt", attempt, "error", err,
		)
		select {
		case <-ctx.Done():
			return llm.DocumentFields{}, lastRaw, ctx.Err()
		case <-time.After(c.cfg.RetryBackoff):
		}
	}

	c.log.Error("llm.extract.failed",
		"req_id", rid, "error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.DocumentFields{}, lastRaw, lastErr
}

// attempt performs one full call: request, decode, fence strip, schema
// validation, key-figure normalization. The bool reports retryability.
func (c *Client) attempt(ctx context.Context, rid, model string, req llm.ExtractRequest) (llm.DocumentFields, []byte, error, bool) {
	body := map[string]any{
		"model":           model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildUserPrompt(req)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := c.post(ctx, endpoint, body)
	if err != nil {
		retryable := status == 0 || status == http.StatusTooManyRequests || status >= 500
		return llm.DocumentFields{}, nil, fmt.Errorf("openai request: %w", err), retryable
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.DocumentFields{}, raw, fmt.Errorf("decode openai response: %w", err), true
	}
	if len(cc.Choices) == 0 {
		return llm.DocumentFields{}, raw, fmt.Errorf("no choices in openai response"), true
	}

	content := []byte(llm.StripCodeFences(cc.Choices[0].Message.Content))
	schema := llm.BuildDocumentJSONSchema()
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.log.Warn("llm.extract.schema_validation_failed", "req_id", rid, "error", err)
		return llm.DocumentFields{}, content, fmt.Errorf("schema validation: %w", err), true
	}
	cleaned, err := llm.NormalizeKeyFigures(content)
	if err != nil {
		return llm.DocumentFields{}, content, fmt.Errorf("normalize key figures: %w", err), true
	}

	var out llm.DocumentFields
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return llm.DocumentFields{}, cleaned, fmt.Errorf("unmarshal fields: %w", err), true
	}
	return out, cleaned, nil, false
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			c.log.Warn("openai response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp.StatusCode, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, resp.StatusCode, nil
}

const systemPrompt = "Du bist ein Experte für Dokumentenanalyse. " +
	"Gib deine Antwort ausschließlich als JSON-Objekt mit den Schlüsseln " +
	"'absender', 'datum', 'dokumenttyp', 'betreff', 'kennzahlen' und optional 'confidence' (0..1) zurück. " +
	"Datum im Format YYYY-MM-DD."

func buildUserPrompt(req llm.ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Analysiere folgendes Dokument und extrahiere:\n")
	b.WriteString("1. Absender (Firma/Person, die das Dokument erstellt hat)\n")
	b.WriteString("2. Datum (im Format YYYY-MM-DD)\n")
	if len(req.ValidDocTypes) > 0 {
		b.WriteString("3. Dokumenttyp (einer der folgenden: " + strings.Join(req.ValidDocTypes, ", ") + ")\n")
	} else {
		b.WriteString("3. Dokumenttyp (kurzes Schlagwort)\n")
	}
	b.WriteString("4. Betreff/Titel (kurz und prägnant)\n")
	b.WriteString("5. Wichtige Kennzahlen (z.B. Rechnungsbetrag, Vertragsnummer)\n")
	if req.FilenameHint != "" {
		b.WriteString("\nDateiname: " + req.FilenameHint + "\n")
	}
	b.WriteString("\nDokumenttext:\n")
	b.WriteString(req.Text)
	return b.String()
}
