package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Cdogma/maehrdocs/internal/catalog"
)

// Service produces the XLSX ledger of filed documents from the catalog.
type Service struct {
	cat *catalog.Catalog
	log *slog.Logger
}

func NewService(cat *catalog.Catalog, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cat: cat, log: log}
}

// BuildLedgerXLSX returns an XLSX workbook (as bytes) with one row per filed
// document.
func (s *Service) BuildLedgerXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	entries, err := s.cat.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Dokumente"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Datum",
		"Dokumenttyp",
		"Absender",
		"Betreff",
		"Kennzahlen",
		"Datei",
		"Abgelegt am",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, e := range entries {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, e.Fields.Date)
		write(2, e.Fields.DocType)
		write(3, e.Fields.Sender)
		write(4, e.Fields.Subject)
		write(5, formatKeyFigures(e.Fields.KeyFigures))
		write(6, e.FiledPath)
		if !e.FiledAt.IsZero() {
			write(7, e.FiledAt.Format("2006-01-02 15:04"))
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.log.Info("export.ledger.ok",
		"rows", len(entries),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func formatKeyFigures(figures map[string]string) string {
	if len(figures) == 0 {
		return ""
	}
	keys := make([]string, 0, len(figures))
	for k := range figures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+figures[k])
	}
	return strings.Join(parts, "; ")
}
