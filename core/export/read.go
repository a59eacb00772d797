package export

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/shule/core/grid"
)

// MinHeaderRatio is the similarity a sheet header needs to match a field it does not spell exactly.
const MinHeaderRatio = 0.8

var (
	ErrUnsupportedFile = errors.New("unsupported file type; upload an .xlsx or .csv file")
	ErrNoColumns       = errors.New("no column of the file matches the expected headers")
)

// ReadRows reads the first sheet of an .xlsx file, or a .csv file, into rows keyed by field.
// The first non-empty line holds the headers; each is mapped to the field whose label or name
// it matches, exactly or by similarity. Unmatched columns and empty cells are left out.
func ReadRows(r io.Reader, filename string, headers []grid.Header) ([]grid.Row, error) {
	var (
		lines [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		lines, err = readWorkbook(r)
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		lines, err = cr.ReadAll()
		err = errors.Wrap(err, "reading csv")
	default:
		return nil, errors.Wrapf(ErrUnsupportedFile, "%q", filename)
	}
	if err != nil {
		return nil, err
	}

	start := 0
	for start < len(lines) && blank(lines[start]) {
		start++
	}
	if start == len(lines) {
		return nil, ErrNoColumns
	}

	fields := MatchHeaders(lines[start], headers)
	mapped := false
	for _, f := range fields {
		if f != "" {
			mapped = true
			break
		}
	}
	if !mapped {
		return nil, ErrNoColumns
	}

	rows := make([]grid.Row, 0, len(lines)-start-1)
	for _, line := range lines[start+1:] {
		if blank(line) {
			continue
		}
		row := make(grid.Row, len(fields))
		for i, cell := range line {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				row[fields[i]] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MatchHeaders returns, for each sheet header, the field it maps to or "".
// A field is used at most once.
func MatchHeaders(sheet []string, headers []grid.Header) []string {
	fields := make([]string, len(sheet))
	used := make(map[string]bool, len(headers))

	// exact matches first, so a close match never steals an exact one
	for i, name := range sheet {
		key := normalize(name)
		for _, h := range headers {
			if !used[h.Field] && key != "" && (key == normalize(h.Label) || key == normalize(h.Field)) {
				fields[i] = h.Field
				used[h.Field] = true
				break
			}
		}
	}
	for i, name := range sheet {
		key := normalize(name)
		if fields[i] != "" || key == "" {
			continue
		}
		var (
			best  string
			ratio float64
		)
		for _, h := range headers {
			if used[h.Field] {
				continue
			}
			for _, candidate := range []string{h.Label, h.Field} {
				if r := similarity(key, normalize(candidate)); r > ratio {
					best, ratio = h.Field, r
				}
			}
		}
		if ratio >= MinHeaderRatio {
			fields[i] = best
			used[best] = true
		}
	}
	return fields
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(s, "_", " "))), " ")
}

func similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

func blank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
