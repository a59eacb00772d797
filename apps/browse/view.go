package main

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/trezcool/shule/core/grid"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	levelStyle    = lipgloss.NewStyle().Padding(0, 1)
	focusStyle    = levelStyle.Reverse(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	alertStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("63"))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)

	pillStyles = map[grid.PillStyle]lipgloss.Style{
		grid.PillSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		grid.PillWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		grid.PillError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

const help = "tab focus • ←/→ choose • ↑/↓ move • enter open • / search • r reload • esc back • q quit"

func (m model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m model) render() string {
	p := m.current()
	if p == nil {
		if m.alert != "" {
			return alertStyle.Render(m.alert) + "\n"
		}
		return "Loading...\n"
	}
	def := p.sess.Screen().Definition()

	var b strings.Builder
	crumbs := make([]string, 0, len(m.pages))
	for _, pg := range m.pages {
		crumbs = append(crumbs, pg.sess.Screen().Definition().Title)
	}
	b.WriteString(titleStyle.Render(strings.Join(crumbs, " › ")))
	b.WriteString("\n\n")

	for i, k := range m.chain() {
		fv, _ := m.filterView(k)
		b.WriteString(m.renderLevel(k.Label(), fv, p.focus == i))
		b.WriteString("\n")
	}
	if len(m.chain()) > 0 {
		b.WriteString("\n")
	}

	switch {
	case m.searching:
		b.WriteString("Search: " + m.search + "█\n\n")
	case m.view.Search != nil && m.view.Search.Text != "":
		b.WriteString(mutedStyle.Render("Search: "+m.view.Search.Text) + "\n\n")
	}

	if m.view.Empty {
		b.WriteString(mutedStyle.Render(m.view.EmptyText))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderRows(p.row, p.focus == len(m.chain())))
		b.WriteString("\n")
	}
	for _, w := range m.view.Warnings {
		b.WriteString(alertStyle.Render("! "+w) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.alert != "":
		b.WriteString(alertStyle.Render(m.alert))
	case m.status != "":
		b.WriteString(noticeStyle.Render(m.status))
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%s • %d rows", def.Name, len(m.view.Rows))))
	}
	b.WriteString("\n" + mutedStyle.Render(help) + "\n")
	return b.String()
}

func (m model) renderLevel(label string, fv grid.FilterView, focused bool) string {
	style := levelStyle
	if focused {
		style = focusStyle
	}
	value := mutedStyle.Render("-")
	if !fv.Disabled {
		for i, o := range fv.Options {
			switch {
			case !o.Selected:
			case o.Value == "":
				value = mutedStyle.Render(o.Label)
			default:
				value = fmt.Sprintf("%s (%d/%d)", o.Label, i, len(fv.Options)-1)
			}
		}
	}
	return style.Render(label+":") + " " + value
}

func (m model) renderRows(cursor int, focused bool) string {
	headers := m.view.DataHeaders()
	labels := make([]string, 0, len(headers))
	for _, h := range headers {
		labels = append(labels, h.Label)
	}

	t := table.New().
		Headers(labels...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true)
			}
			if focused && row == cursor {
				return cellStyle.Inherit(selectedStyle)
			}
			if row < len(m.view.Rows) && m.view.Rows[row].Selected {
				return cellStyle.Underline(true)
			}
			return cellStyle
		})
	for _, r := range m.view.Rows {
		cells := make([]string, 0, len(headers))
		for _, c := range r.Cells {
			if c.Kind == grid.KindActions {
				continue
			}
			if style, ok := pillStyles[c.Pill]; ok {
				cells = append(cells, style.Render(c.Text))
				continue
			}
			cells = append(cells, c.Text)
		}
		t.Row(cells...)
	}
	return t.Render()
}
