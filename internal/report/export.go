package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/guarzo/pkmprice/internal/model"
)

// SheetName is the worksheet XLSX exports write to.
const SheetName = "Prices"

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
}

var header = []string{"name", "card_id", "number", "price", "recorded_at"}

// WriteCSV writes records as CSV with a header row. Text cells are escaped
// against formula injection; prices are written as plain numbers.
func WriteCSV(w io.Writer, records []model.PriceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := EscapeRow([]string{r.CardName, r.CardID, r.Number})
		row = append(row,
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			r.RecordedAt.UTC().Format(time.RFC3339),
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", r.CardID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes records to a single "Prices" sheet.
func WriteXLSX(w io.Writer, records []model.PriceRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			EscapeCell(r.CardName),
			EscapeCell(r.CardID),
			EscapeCell(r.Number),
			r.Price,
			r.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write %s: %w", r.CardID, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "B", 28); err != nil {
		return err
	}

	return f.Write(w)
}

// Export writes records to path in format.
func Export(path string, format Format, records []model.PriceRecord) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	switch format {
	case FormatCSV:
		err = WriteCSV(out, records)
	case FormatXLSX:
		err = WriteXLSX(out, records)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}

	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}
