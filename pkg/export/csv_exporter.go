package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM makes spreadsheet apps read Vietnamese diacritics as UTF-8.
const utf8BOM = "\ufeff"

// CSVExporter writes the header row and the records. The title is not
// part of a CSV body.
type CSVExporter struct {
	// Comma overrides the field separator; zero means ','.
	Comma rune
}

// NewCSVExporter builds a comma separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if e.Comma != 0 {
		w.Comma = e.Comma
	}
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	if err := w.WriteAll(data.Records()); err != nil {
		return nil, fmt.Errorf("csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (e *CSVExporter) Extension() string { return "csv" }
