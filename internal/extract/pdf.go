package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Cdogma/maehrdocs/constants"
	"github.com/Cdogma/maehrdocs/internal/common"
)

// Limits bound what the extractor will even open. Both ceilings are checked
// before any parsing so a pathological file cannot blow memory or latency.
type Limits struct {
	MaxFileSizeMB int64 // 0 = unlimited
	MaxPages      int   // 0 = unlimited
}

// PDFExtractor implements TextExtractor for PDF files.
type PDFExtractor struct {
	limits Limits
	log    *slog.Logger
}

func NewPDFExtractor(limits Limits, log *slog.Logger) *PDFExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &PDFExtractor{limits: limits, log: log}
}

// Extract validates the file, then pulls plain text page by page plus the
// Info-dict metadata. Returns common.ErrInvalidDocument for anything that is
// not an acceptable PDF, and common.ErrExtractionIncomplete (with a still
// valid Result) when the PDF carries no machine-readable text.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	st, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: stat %s: %v", common.ErrInvalidDocument, path, err)
	}
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return Result{}, fmt.Errorf("%w: not a pdf: %s", common.ErrInvalidDocument, path)
	}
	if e.limits.MaxFileSizeMB > 0 && st.Size() > e.limits.MaxFileSizeMB*1024*1024 {
		return Result{}, fmt.Errorf("%w: file exceeds %d MB: %s", common.ErrInvalidDocument, e.limits.MaxFileSizeMB, path)
	}

	if err := api.ValidateFile(path, nil); err != nil {
		return Result{}, fmt.Errorf("%w: pdf validation: %v", common.ErrInvalidDocument, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: page count: %v", common.ErrInvalidDocument, err)
	}
	if pages == 0 {
		return Result{}, fmt.Errorf("%w: pdf has no pages: %s", common.ErrInvalidDocument, path)
	}
	if e.limits.MaxPages > 0 && pages > e.limits.MaxPages {
		return Result{}, fmt.Errorf("%w: %d pages exceeds ceiling %d: %s", common.ErrInvalidDocument, pages, e.limits.MaxPages, path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: open pdf: %v", common.ErrInvalidDocument, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.log.Warn("extract.close_error", "path", path, "error", cerr)
		}
	}()

	res := Result{Pages: pages}

	// Metadata is best-effort: a broken Info dict never invalidates the text.
	meta, warn := readMetadata(r)
	res.Metadata = meta
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}
	res.Metadata["page_count"] = fmt.Sprintf("%d", pages)

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: canceled at page %d: %v", common.ErrInvalidDocument, i, err)
		}
		pageText, err := extractPage(r, i)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	res.Text = b.String()
	res.Duration = time.Since(start)

	if strings.TrimSpace(res.Text) == "" {
		res.Text = ""
		res.Warnings = append(res.Warnings, "no machine-readable text")
		e.log.Warn("extract.no_text", "path", path, "pages", pages)
		return res, fmt.Errorf("%w: %s", common.ErrExtractionIncomplete, path)
	}

	e.log.Info("extract.ok",
		"path", path,
		"pages", pages,
		"chars", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// extractPage pulls plain text from one page. The parser can panic on
// malformed content streams, so the page is isolated behind a recover.
func extractPage(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parser panic: %v", rec)
		}
	}()
	p := r.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	s, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

var infoKeys = []string{"Author", "Title", "Subject", "Creator", "Producer", "CreationDate", "ModDate"}

func readMetadata(r *pdf.Reader) (meta map[string]string, warn string) {
	meta = map[string]string{}
	defer func() {
		if rec := recover(); rec != nil {
			warn = fmt.Sprintf("metadata unreadable: %v", rec)
		}
	}()
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return meta, ""
	}
	for _, k := range infoKeys {
		v := info.Key(k)
		if v.IsNull() {
			continue
		}
		if s := strings.TrimSpace(v.RawString()); s != "" {
			meta[strings.ToLower(k)] = s
		}
	}
	return meta, ""
}
