package aiadapter

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Section is one template's rendered analysis, joined with the others by a
// horizontal rule when the analyze task builds its combined PDF.
type Section struct {
	Title string
	Body  string
}

// RenderPDF lays out sections into a single-column report PDF: a title
// heading on the first page followed by one page-flowing block per section,
// separated by a ruled line.
func RenderPDF(reportTitle string, sections []Section) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, reportTitle, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for i, s := range sections {
		if i > 0 {
			pdf.Ln(2)
			x1, y := pdf.GetX(), pdf.GetY()
			pdf.Line(x1, y, x1+174, y)
			pdf.Ln(6)
		}
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 7, s.Title, "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, s.Body, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("aiadapter: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
