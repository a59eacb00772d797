package grid

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ActionsField is the reserved column field holding per-row controls.
const ActionsField = "actions"

// ColumnKind tells how a column renders its cells.
type ColumnKind string

const (
	KindText    ColumnKind = "text"
	KindPill    ColumnKind = "pill"
	KindActions ColumnKind = "actions"
	KindCustom  ColumnKind = "custom"
)

// Column is resolved once when the grid is built; rendering never re-derives the kind.
type Column interface {
	Field() string
	Label() string
	Kind() ColumnKind
	cell(r Row) Cell
}

type column struct {
	field string
	label string
}

func (c column) Field() string { return c.field }
func (c column) Label() string { return c.label }

type TextColumn struct{ column }

func (TextColumn) Kind() ColumnKind { return KindText }

func (c TextColumn) cell(r Row) Cell {
	text, ok := r.Text(c.field)
	return Cell{Field: c.field, Kind: KindText, Text: text, Empty: !ok || text == ""}
}

type PillColumn struct{ column }

func (PillColumn) Kind() ColumnKind { return KindPill }

func (c PillColumn) cell(r Row) Cell {
	text, ok := r.Text(c.field)
	if !ok || text == "" {
		return Cell{Field: c.field, Kind: KindPill, Empty: true}
	}
	return Cell{Field: c.field, Kind: KindPill, Text: text, Pill: PillStyleFor(text)}
}

type CustomColumn struct {
	column
	render func(Row) string
}

func (CustomColumn) Kind() ColumnKind { return KindCustom }

func (c CustomColumn) cell(r Row) Cell {
	text := c.render(r)
	return Cell{Field: c.field, Kind: KindCustom, Text: text, Empty: text == ""}
}

// ActionColumn cells are filled with the row controls by the grid.
// Without one in the column order, row controls are only exposed on RowView.Controls.
type ActionColumn struct{ column }

func (ActionColumn) Kind() ColumnKind { return KindActions }

func (c ActionColumn) cell(Row) Cell {
	return Cell{Field: c.field, Kind: KindActions}
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// Humanize turns a field name into a header label: "created_at" and "createdAt" become "Created At".
func Humanize(field string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range field {
		switch {
		case r == '_' || r == '-' || r == '.':
			r = ' '
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return titleCaser.String(strings.Join(strings.Fields(b.String()), " "))
}

// resolveColumns builds the column list from the configuration.
// Precedence for a field: actions, custom renderer, pill, text.
func resolveColumns(cfg Config) ([]Column, []string) {
	var warnings []string

	order := cfg.ColumnOrder
	if len(order) == 0 {
		warnings = append(warnings, "column order is empty")
		if len(cfg.Data) > 0 {
			order = make([]string, 0, len(cfg.Data[0]))
			for field := range cfg.Data[0] {
				order = append(order, field)
			}
			sort.Strings(order)
		}
	}

	pills := make(map[string]bool, len(cfg.PillColumns))
	for _, field := range cfg.PillColumns {
		pills[field] = true
	}

	columns := make([]Column, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, field := range order {
		if seen[field] {
			warnings = append(warnings, "duplicate column "+field)
		}
		seen[field] = true

		c := column{field: field, label: label(cfg.DisplayNames, field)}
		switch render := cfg.Renderers[field]; {
		case field == ActionsField:
			columns = append(columns, ActionColumn{c})
		case render != nil:
			columns = append(columns, CustomColumn{column: c, render: render})
		case pills[field]:
			columns = append(columns, PillColumn{c})
		default:
			columns = append(columns, TextColumn{c})
		}
	}

	for _, field := range cfg.PillColumns {
		if !seen[field] {
			warnings = append(warnings, "pill column "+field+" is not displayed")
		}
	}
	return columns, warnings
}

func label(names map[string]string, field string) string {
	if name, ok := names[field]; ok && name != "" {
		return name
	}
	return Humanize(field)
}
