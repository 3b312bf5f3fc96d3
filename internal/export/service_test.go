package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Cdogma/maehrdocs/internal/catalog"
	"github.com/Cdogma/maehrdocs/internal/llm"
)

func TestBuildLedgerXLSX(t *testing.T) {
	cat, err := catalog.OpenMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	ctx := context.Background()
	err = cat.Add(ctx, catalog.Entry{
		FiledPath: "/out/2024-03-15_rechnung_Stadtwerke_Strom.pdf",
		Fields: llm.DocumentFields{
			Sender:     "Stadtwerke",
			Date:       "2024-03-15",
			DocType:    "rechnung",
			Subject:    "Strom",
			KeyFigures: map[string]string{"betrag": "89.90", "kundennr": "123"},
		},
		FiledAt: time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	xlsxBytes, err := NewService(cat, nil).BuildLedgerXLSX(ctx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(xlsxBytes))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Dokumente")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if rows[0][0] != "Datum" || rows[0][2] != "Absender" {
		t.Errorf("header %v", rows[0])
	}
	row := rows[1]
	if row[0] != "2024-03-15" || row[1] != "rechnung" || row[2] != "Stadtwerke" {
		t.Errorf("row %v", row)
	}
	if row[4] != "betrag: 89.90; kundennr: 123" {
		t.Errorf("key figures cell %q", row[4])
	}
	if row[6] != "2024-03-16 09:00" {
		t.Errorf("filed at cell %q", row[6])
	}
}

func TestBuildLedgerXLSXEmptyCatalog(t *testing.T) {
	cat, err := catalog.OpenMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	xlsxBytes, err := NewService(cat, nil).BuildLedgerXLSX(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(xlsxBytes))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Dokumente")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("empty catalog produced %d rows", len(rows))
	}
}
