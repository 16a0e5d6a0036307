package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single-sheet Excel workbook.
type XLSXExporter struct {
	sheetName string
}

// NewXLSXExporter builds an Excel exporter writing to the named sheet.
func NewXLSXExporter(sheetName string) *XLSXExporter {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &XLSXExporter{sheetName: sheetName}
}

// Render writes an optional title row, a bold header row and the data rows.
// Cells holding numbers are stored as numbers so totals stay computable.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if e.sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", e.sheetName); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}

	row := 1
	if data.Title != "" {
		lastCol, _ := excelize.ColumnNumberToName(len(data.Headers))
		_ = f.SetCellValue(e.sheetName, "A1", data.Title)
		_ = f.MergeCell(e.sheetName, "A1", lastCol+"1")
		row = 2
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E6ECF5"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(e.sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), row)
	_ = f.SetCellStyle(e.sheetName, first, last, headerStyle)

	for _, record := range data.Records() {
		row++
		for i, value := range record {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(e.sheetName, cell, cellValue(value)); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return "xlsx" }

func cellValue(raw string) interface{} {
	if raw == "" {
		return raw
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
