package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"coursedash/internal/aggregate"
	"coursedash/internal/format"
	"coursedash/internal/grid"
)

// PDFOptions controls the native PDF table.
type PDFOptions struct {
	Title    string
	Subtitle string
	// DateWidth is the width of one date column in millimeters.
	DateWidth float64
}

const (
	pdfMargin     = 10.0
	pdfRowHeight  = 5.0
	pdfLabelWidth = 42.0
	pdfTotalWidth = 24.0
)

// PDF writes res as an A4 landscape table. Date columns that do not fit
// the page width continue on following pages, each repeating the module
// and total columns.
func PDF(w io.Writer, res aggregate.Result, f format.Format, opts PDFOptions) error {
	if res.Empty() {
		return ErrNothingToExport
	}
	if opts.DateWidth <= 0 {
		opts.DateWidth = 11
	}
	g := grid.Build(res, f)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetCreator("coursedash", true)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	perPage := int((pageW - 2*pdfMargin - pdfLabelWidth - pdfTotalWidth) / opts.DateWidth)
	if perPage < 1 {
		perPage = 1
	}

	for from := 0; from < len(g.Dates); from += perPage {
		to := min(from+perPage, len(g.Dates))

		newPage := func() {
			pdf.AddPage()
			if opts.Title != "" {
				pdf.SetFont("Helvetica", "B", 12)
				pdf.CellFormat(0, 7, tr(opts.Title), "", 1, "L", false, 0, "")
			}
			if opts.Subtitle != "" {
				pdf.SetFont("Helvetica", "", 9)
				pdf.CellFormat(0, 5, tr(opts.Subtitle), "", 1, "L", false, 0, "")
			}
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 8)
			pdf.SetFillColor(229, 231, 235)
			pdf.CellFormat(pdfLabelWidth, pdfRowHeight, "Module / Type", "1", 0, "L", true, 0, "")
			pdf.CellFormat(pdfTotalWidth, pdfRowHeight, "Total", "1", 0, "C", true, 0, "")
			for _, d := range g.Dates[from:to] {
				pdf.CellFormat(opts.DateWidth, pdfRowHeight, f.ShortDate(d), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
		}
		newPage()

		for _, row := range g.Rows {
			if pdf.GetY()+pdfRowHeight > pageH-pdfMargin {
				newPage()
			}
			pdfRow(pdf, tr, row, from, to, opts.DateWidth)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return pdf.Output(w)
}

func pdfRow(pdf *gofpdf.Fpdf, tr func(string) string, row grid.Row, from, to int, dateWidth float64) {
	label, total, style := row.Label, row.Hours, ""
	fill := false
	switch row.Kind {
	case grid.RowModule:
		style = "B"
		fill = true
		total += "h"
		pdf.SetFillColor(243, 244, 246)
	case grid.RowType:
		total = fmt.Sprintf("%sh (%s)", row.Hours, row.Share)
	case grid.RowCumulative:
		style = "I"
		total = ""
	}
	pdf.SetFont("Helvetica", style, 7)
	pdf.CellFormat(pdfLabelWidth, pdfRowHeight, tr(label), "1", 0, "L", fill, 0, "")
	pdf.CellFormat(pdfTotalWidth, pdfRowHeight, tr(total), "1", 0, "C", fill, 0, "")
	for _, c := range row.Cells[from:to] {
		cellFill := fill
		if c.LastSession && row.Kind == grid.RowCumulative {
			pdf.SetFillColor(254, 226, 226)
			cellFill = true
		}
		pdf.CellFormat(dateWidth, pdfRowHeight, tr(c.Text), "1", 0, "C", cellFill, 0, "")
		if cellFill && !fill {
			pdf.SetFillColor(243, 244, 246)
		}
	}
	pdf.Ln(-1)
}
