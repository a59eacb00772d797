package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/export"
	"github.com/trezcool/shule/core/grid"
)

var (
	importHeaders = []grid.Header{
		{Field: "student", Label: "Student", Kind: grid.KindText},
		{Field: "score", Label: "Score", Kind: grid.KindText},
		{Field: "max_score", Label: "Out of", Kind: grid.KindText},
	}

	marksView = grid.View{
		Headers: []grid.Header{
			{Field: "student", Label: "Student", Kind: grid.KindText},
			{Field: "grade", Label: "Grade", Kind: grid.KindPill},
			{Field: "actions", Kind: grid.KindActions},
		},
		Rows: []grid.RowView{
			{ID: "1", Cells: []grid.Cell{
				{Field: "student", Kind: grid.KindText, Text: "Alice"},
				{Field: "grade", Kind: grid.KindPill, Text: "A", Pill: grid.PillSuccess},
				{Field: "actions", Kind: grid.KindActions},
			}},
			{ID: "2", Cells: []grid.Cell{
				{Field: "student", Kind: grid.KindText, Text: "Bob, Jr."},
				{Field: "grade", Kind: grid.KindPill, Text: "F", Pill: grid.PillError},
				{Field: "actions", Kind: grid.KindActions},
			}},
		},
	}
)

func TestFilename(t *testing.T) {
	tests := []struct {
		title  string
		format string
		want   string
	}{
		{title: "Marks", format: export.FormatXLSX, want: "marks.xlsx"},
		{title: "Course completions", format: export.FormatPDF, want: "course_completions.pdf"},
		{title: "Marks", format: export.FormatTemplate, want: "marks_template.xlsx"},
		{title: "%%%", format: export.FormatCSV, want: "export.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, export.Filename(tt.title, tt.format))
		})
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.CSV(&buf, marksView))
	assert.Equal(t, "Student,Grade\nAlice,A\n\"Bob, Jr.\",F\n", buf.String())
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, export.FormatPDF, "Marks", marksView))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	err := export.Write(&bytes.Buffer{}, "docx", "Marks", marksView)
	assert.Equal(t, export.ErrUnknownFormat, errors.Cause(err))
}

func TestExcel_roundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Excel(&buf, "Marks: term 1", marksView))

	headers := []grid.Header{{Field: "student", Label: "Student"}, {Field: "grade", Label: "Grade"}}
	rows, err := export.ReadRows(&buf, "marks.xlsx", headers)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob, Jr.", rows[1]["student"])
	assert.Equal(t, "F", rows[1]["grade"])
}

func TestExcelTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.ExcelTemplate(&buf, "Marks", importHeaders))

	rows, err := export.ReadRows(&buf, "template.XLSX", importHeaders)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadRows(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     []grid.Row
		wantErr  error
	}{
		{
			name:     "exact and fuzzy headers",
			filename: "marks.csv",
			content:  "\nStudnt,Out_of,Notes,score\nAlice,100,good,90\n,,,\nBob,50,,\n",
			want: []grid.Row{
				{"student": "Alice", "max_score": "100", "score": "90"},
				{"student": "Bob", "max_score": "50"},
			},
		},
		{
			name:     "unsupported",
			filename: "marks.txt",
			content:  "Student\nAlice\n",
			wantErr:  export.ErrUnsupportedFile,
		},
		{
			name:     "no matching column",
			filename: "marks.csv",
			content:  "Colour,Shape\nred,round\n",
			wantErr:  export.ErrNoColumns,
		},
		{
			name:     "empty file",
			filename: "marks.csv",
			content:  "\n\n",
			wantErr:  export.ErrNoColumns,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := export.ReadRows(strings.NewReader(tt.content), tt.filename, importHeaders)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestMatchHeaders(t *testing.T) {
	// the exact "Student" column wins over the close "Studnt" one
	got := export.MatchHeaders([]string{"Studnt", "Student"}, importHeaders)
	assert.Equal(t, []string{"", "student"}, got)
}
