package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 277.0
	lineHeight = 5.0
	fontFamily = "body"
)

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct {
	fontFile string
	widths   map[string]float64
}

// NewPDFExporter constructs a PDF exporter. fontFile points at a TTF with
// Vietnamese glyphs; without it the core Arial font is used.
func NewPDFExporter(fontFile string) *PDFExporter {
	return &PDFExporter{fontFile: fontFile, widths: map[string]float64{}}
}

// WithColumnWidth fixes the width in mm of one column. Remaining columns share
// what is left of the page.
func (e *PDFExporter) WithColumnWidth(header string, width float64) *PDFExporter {
	e.widths[header] = width
	return e
}

// Render creates a PDF document with an optional title and a wrapped table body.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	family, tr := "Arial", pdf.UnicodeTranslatorFromDescriptor("")
	if e.fontFile != "" {
		pdf.AddUTF8Font(fontFamily, "", e.fontFile)
		pdf.AddUTF8Font(fontFamily, "B", e.fontFile)
		family, tr = fontFamily, func(s string) string { return s }
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load pdf font: %w", err)
	}

	widths := e.columnWidths(data.Headers)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	drawHeader := func() {
		pdf.SetFont(family, "B", 10)
		pdf.SetFillColor(230, 236, 245)
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(family, "", 9)
	}
	drawHeader()

	_, pageHeight := pdf.GetPageSize()
	left, _, _, bottom := pdf.GetMargins()
	for _, record := range data.Records() {
		cells := make([][]string, len(record))
		lines := 1
		for i, value := range record {
			cells[i] = pdf.SplitText(tr(value), widths[i]-2)
			if len(cells[i]) > lines {
				lines = len(cells[i])
			}
		}
		height := float64(lines) * lineHeight
		if pdf.GetY()+height > pageHeight-bottom {
			pdf.AddPage()
			drawHeader()
		}

		x, y := pdf.GetXY()
		for i := range data.Headers {
			pdf.Rect(x, y, widths[i], height, "D")
			for j, line := range cells[i] {
				pdf.SetXY(x+1, y+float64(j)*lineHeight)
				pdf.CellFormat(widths[i]-2, lineHeight, line, "", 0, "L", false, 0, "")
			}
			x += widths[i]
		}
		pdf.SetXY(left, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return "pdf" }

func (e *PDFExporter) columnWidths(headers []string) []float64 {
	widths := make([]float64, len(headers))
	fixed, flexible := 0.0, 0
	for i, header := range headers {
		if w, ok := e.widths[header]; ok {
			widths[i] = w
			fixed += w
			continue
		}
		flexible++
	}
	if flexible == 0 {
		return widths
	}
	share := (pageWidth - fixed) / float64(flexible)
	if share < 15 {
		share = 15
	}
	for i := range widths {
		if widths[i] == 0 {
			widths[i] = share
		}
	}
	return widths
}
