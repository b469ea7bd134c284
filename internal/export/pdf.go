package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/JonMunkholm/dataport/internal/core"
)

const (
	pdfFont      = "Helvetica"
	pdfRowHeight = 7.0
	pdfMargin    = 10.0
)

// PDF renders a landscape A4 report: a title, the generation time, an info
// block with the record count and column list, then the table with a shaded
// header repeated on every page. Missing values print as "-".
type PDF struct {
	// Now stamps the report; defaults to time.Now.
	Now func() time.Time
}

func (*PDF) ContentType() string { return "application/pdf" }

func (*PDF) Extension() string { return "pdf" }

func (p *PDF) Encode(w io.Writer, t *core.Table) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	doc.SetAutoPageBreak(false, pdfMargin)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.AddPage()
	pageW, pageH := doc.GetPageSize()
	usable := pageW - 2*pdfMargin

	doc.SetFont(pdfFont, "B", 16)
	doc.CellFormat(0, 10, "Data Export", "", 1, "C", false, 0, "")
	doc.SetFont(pdfFont, "", 9)
	doc.CellFormat(0, 6, "Generated on "+now().Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetDrawColor(221, 221, 221)
	doc.SetFillColor(249, 249, 249)
	info := fmt.Sprintf("Total Records: %d\nColumns: %s", len(t.Rows), strings.Join(t.Columns, ", "))
	doc.MultiCell(0, 6, tr(info), "1", "L", true)
	doc.Ln(4)

	if len(t.Columns) == 0 {
		return doc.Output(w)
	}
	colW := usable / float64(len(t.Columns))

	header := func() {
		doc.SetFont(pdfFont, "B", 9)
		doc.SetFillColor(245, 245, 245)
		for _, c := range t.Columns {
			doc.CellFormat(colW, pdfRowHeight, fit(doc, tr(c), colW), "1", 0, "L", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont(pdfFont, "", 9)
	}
	header()

	for _, rec := range t.Rows {
		if doc.GetY()+pdfRowHeight > pageH-pdfMargin {
			doc.AddPage()
			header()
		}
		for _, v := range rec {
			text := "-"
			if v != nil {
				text = core.FormatCell(v)
			}
			doc.CellFormat(colW, pdfRowHeight, fit(doc, tr(text), colW), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// fit shortens s with a trailing "..." until it fits in width mm, leaving
// room for the cell padding.
func fit(doc *fpdf.Fpdf, s string, width float64) string {
	limit := width - 2*doc.GetCellMargin()
	if doc.GetStringWidth(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && doc.GetStringWidth(string(r)+"...") > limit {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
