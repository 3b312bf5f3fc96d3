package namegen

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Cdogma/maehrdocs/constants"
	"github.com/Cdogma/maehrdocs/internal/llm"
)

// Config holds the filename grammar. Zero values get the standard grammar:
// {date}_{type}_{sender}_{subject}.pdf, sender capped at 50, subject at 100,
// full name at 240.
type Config struct {
	Template       string
	ValidDocTypes  []string
	MaxSenderLen   int
	MaxSubjectLen  int
	MaxFilenameLen int
	Now            func() time.Time // date fallback clock; injectable for tests
}

// Generator maps extracted fields to a sanitized, deterministic filename.
// It never fails: every field has a usable fallback.
type Generator struct {
	cfg Config
}

func New(cfg Config) *Generator {
	if cfg.Template == "" {
		cfg.Template = "{date}_{type}_{sender}_{subject}.pdf"
	}
	if len(cfg.ValidDocTypes) == 0 {
		cfg.ValidDocTypes = constants.DefaultDocTypes
	}
	if cfg.MaxSenderLen <= 0 {
		cfg.MaxSenderLen = 50
	}
	if cfg.MaxSubjectLen <= 0 {
		cfg.MaxSubjectLen = 100
	}
	if cfg.MaxFilenameLen <= 0 {
		cfg.MaxFilenameLen = 240
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{cfg: cfg}
}

// Generate assembles the filename from fields per the configured template.
func (g *Generator) Generate(fields llm.DocumentFields) string {
	name := strings.NewReplacer(
		"{date}", g.formatDate(fields.Date),
		"{type}", g.formatDocType(fields.DocType),
		"{sender}", sanitizeComponent(fields.Sender, g.cfg.MaxSenderLen, "unbekannt"),
		"{subject}", sanitizeComponent(fields.Subject, g.cfg.MaxSubjectLen, "ohne_betreff"),
	).Replace(g.cfg.Template)

	// Cap the total length, trimming the variable tail and keeping the extension.
	if len([]rune(name)) > g.cfg.MaxFilenameLen {
		ext := filepath.Ext(name)
		base := []rune(strings.TrimSuffix(name, ext))
		keep := g.cfg.MaxFilenameLen - len([]rune(ext))
		if keep < 1 {
			keep = 1
		}
		if len(base) > keep {
			base = base[:keep]
		}
		name = string(base) + ext
	}
	return name
}

var (
	reISODate    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	reDottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})`)
)

// dateLayouts are tried in fixed priority order after the regex fast paths.
var dateLayouts = []string{"2006/01/02", "01/02/2006", "02/01/2006"}

// formatDate normalizes a date to YYYY-MM-DD. Unparseable input falls back to
// the current date rather than failing the document.
func (g *Generator) formatDate(date string) string {
	date = strings.TrimSpace(date)
	if reISODate.MatchString(date) {
		return date[:10]
	}
	if m := reDottedDate.FindStringSubmatch(date); m != nil {
		if t, err := time.Parse("2.1.2006", m[1]+"."+m[2]+"."+m[3]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return g.cfg.Now().Format("2006-01-02")
}

// formatDocType validates the type against the vocabulary: exact match first,
// then first containment match in either direction, else the generic label.
func (g *Generator) formatDocType(docType string) string {
	docType = constants.NormalizeDocType(docType)
	for _, valid := range g.cfg.ValidDocTypes {
		if docType == valid {
			return valid
		}
	}
	for _, valid := range g.cfg.ValidDocTypes {
		if docType != "" && (strings.Contains(docType, valid) || strings.Contains(valid, docType)) {
			return valid
		}
	}
	return constants.FallbackDocType
}

var (
	invalidChars  = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	reUnderscores = regexp.MustCompile(`_{2,}`)
)

// sanitizeComponent makes a field safe for use as a filename part: invalid
// characters to underscore, collapsed runs, length cap, fixed fallback when empty.
func sanitizeComponent(s string, maxLen int, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	s = invalidChars.Replace(s)
	s = reUnderscores.ReplaceAllString(s, "_")
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen])
	}
	return s
}
