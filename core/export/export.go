// Package export writes what a grid displays to spreadsheets and documents,
// and reads spreadsheets back into grid rows for imports.
package export

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/grid"
)

// Formats
const (
	FormatXLSX     = "xlsx"
	FormatPDF      = "pdf"
	FormatCSV      = "csv"
	FormatTemplate = "template" // empty xlsx with the import headers
)

var (
	ErrUnknownFormat = errors.New("unknown export format")

	contentTypes = map[string]string{
		FormatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FormatTemplate: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FormatPDF:      "application/pdf",
		FormatCSV:      "text/csv; charset=utf-8",
	}

	unsafeFilenameRegex = regexp.MustCompile(`[^\w.-]+`)
)

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	return contentTypes[format]
}

// Filename returns a download filename for title in format.
func Filename(title, format string) string {
	name := strings.Trim(unsafeFilenameRegex.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if name == "" {
		name = "export"
	}
	switch format {
	case FormatTemplate:
		return name + "_template.xlsx"
	case FormatPDF, FormatCSV, FormatXLSX:
		return name + "." + format
	}
	return name
}

// Write renders view in format.
func Write(w io.Writer, format, title string, view grid.View) error {
	switch format {
	case FormatXLSX:
		return Excel(w, title, view)
	case FormatPDF:
		return PDF(w, title, view)
	case FormatCSV:
		return CSV(w, view)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", format)
}

// CSV writes the data columns of view, headers first.
func CSV(w io.Writer, view grid.View) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(labels(view.DataHeaders())); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, r := range view.Rows {
		if err := cw.Write(r.DataTexts()); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func labels(headers []grid.Header) []string {
	ls := make([]string, 0, len(headers))
	for _, h := range headers {
		ls = append(ls, h.Label)
	}
	return ls
}
