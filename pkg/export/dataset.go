// Package export renders tabular datasets, such as score sheets and
// lesson-plan reviews, as CSV, XLSX or PDF files.
package export

import "errors"

// ErrNoColumns is returned when a dataset has no headers to lay out.
var ErrNoColumns = errors.New("dataset has no columns")

// Dataset is a titled table. Rows are keyed by header; missing keys render
// as empty cells and keys outside Headers are ignored.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Exporter renders a dataset into a file body.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Validate rejects datasets that cannot be laid out.
func (d Dataset) Validate() error {
	if len(d.Headers) == 0 {
		return ErrNoColumns
	}
	return nil
}

// Records returns the rows as cell slices in header order.
func (d Dataset) Records() [][]string {
	out := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		cells := make([]string, len(d.Headers))
		for j, h := range d.Headers {
			cells[j] = row[h]
		}
		out[i] = cells
	}
	return out
}
