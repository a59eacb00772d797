package export

import (
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/grid"
)

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 7.0
)

// pill fill colours, RGB
var pillFills = map[grid.PillStyle][3]int{
	grid.PillSuccess: {198, 239, 206},
	grid.PillError:   {255, 199, 206},
	grid.PillWarning: {255, 235, 156},
	grid.PillNeutral: {230, 230, 230},
}

// PDF writes the data columns of view as a landscape A4 table, pills shaded by style.
func PDF(w io.Writer, title string, view grid.View) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 8, tr(time.Now().Format("2006-01-02 15:04")), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, tr(pageLabel(pdf.PageNo())), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	headers := view.DataHeaders()
	if len(headers) == 0 {
		return errors.Wrap(pdf.Output(w), "writing pdf")
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(headers))

	header := func() {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.SetFillColor(231, 230, 230)
		for _, h := range headers {
			pdf.CellFormat(colW, pdfLineHeight, tr(h.Label), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", 9)
	}
	header()

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, r := range view.Rows {
		if pdf.GetY()+pdfLineHeight > pageH-bottom-10 {
			pdf.AddPage()
			header()
		}
		for _, c := range r.Cells {
			if c.Kind == grid.KindActions {
				continue
			}
			fill := false
			if c.Kind == grid.KindPill && !c.Empty {
				rgb := pillFills[c.Pill]
				pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
				fill = true
			}
			pdf.CellFormat(colW, pdfLineHeight, tr(fit(pdf, c.Text, colW)), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	if view.Empty {
		pdf.SetFont(pdfFont, "I", 10)
		pdf.CellFormat(0, pdfLineHeight, tr(view.EmptyText), "", 1, "L", false, 0, "")
	}

	return errors.Wrap(pdf.Output(w), "writing pdf")
}

// fit shortens text so it fits in a cell of width w.
func fit(pdf *fpdf.Fpdf, text string, w float64) string {
	const ellipsis = "..."
	if pdf.GetStringWidth(text) <= w-2 {
		return text
	}
	r := []rune(text)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+ellipsis) > w-2 {
		r = r[:len(r)-1]
	}
	return string(r) + ellipsis
}

func pageLabel(n int) string {
	return "Page " + strconv.Itoa(n)
}
