package export

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core/grid"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

func sheetName(title string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if name == "" {
		return "Sheet1"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// newWorkbook returns a workbook whose single sheet is named after title, with a bold header row.
func newWorkbook(title string, headers []string) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := sheetName(title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", errors.Wrap(err, "naming sheet")
	}

	row := make([]interface{}, 0, len(headers))
	for _, h := range headers {
		row = append(row, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return nil, "", errors.Wrap(err, "writing header")
	}
	if len(headers) == 0 {
		return f, sheet, nil
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E7E6E6"}},
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "creating header style")
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return nil, "", errors.Wrap(err, "styling header")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return nil, "", errors.Wrap(err, "sizing columns")
	}
	return f, sheet, nil
}

// Excel writes the data columns of view as an xlsx workbook.
func Excel(w io.Writer, title string, view grid.View) error {
	f, sheet, err := newWorkbook(title, labels(view.DataHeaders()))
	if err != nil {
		return err
	}
	defer f.Close()

	for i, r := range view.Rows {
		texts := r.DataTexts()
		row := make([]interface{}, 0, len(texts))
		for _, t := range texts {
			row = append(row, t)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}
	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// ExcelTemplate writes an empty workbook with one column per header, to be filled and imported.
func ExcelTemplate(w io.Writer, title string, headers []grid.Header) error {
	f, _, err := newWorkbook(title, labels(headers))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing template")
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	return rows, errors.Wrap(err, "reading rows")
}
