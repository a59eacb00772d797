package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/export"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/screen"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (cli *commandLine) openScreen(ctx context.Context, name string) (*screen.Screen, func(), error) {
	app, err := cli.newApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	scr, err := app.Registry.Get(name)
	if err != nil {
		_ = app.Close()
		return nil, nil, err
	}
	return scr, func() { _ = app.Close() }, nil
}

// report prints the rows scr lists for filters: a table on a terminal, CSV otherwise.
func (cli *commandLine) report(ctx context.Context, name string, filters filterFlags, search string) error {
	scr, done, err := cli.openScreen(ctx, name)
	if err != nil {
		return err
	}
	defer done()

	g, _, err := scr.Grid(ctx, admin, screen.State{Filters: filters, Search: search})
	if err != nil {
		return err
	}
	view := g.Render()
	if !cli.isTerminal {
		return export.CSV(cli.out, view)
	}
	if view.Empty {
		fmt.Fprintln(cli.out, view.EmptyText)
		return nil
	}
	fmt.Fprintln(cli.out, renderTable(view))
	for _, w := range view.Warnings {
		fmt.Fprintln(cli.out, "warning:", w)
	}
	return nil
}

func renderTable(view grid.View) string {
	headers := view.DataHeaders()
	labels := make([]string, 0, len(headers))
	for _, h := range headers {
		labels = append(labels, h.Label)
	}

	t := table.New().
		Headers(labels...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range view.Rows {
		t.Row(r.DataTexts()...)
	}
	return t.Render()
}

// export writes the export of scr in format to path, or to the export's filename.
func (cli *commandLine) export(ctx context.Context, name, format string, filters filterFlags, path string) error {
	scr, done, err := cli.openScreen(ctx, name)
	if err != nil {
		return err
	}
	defer done()

	if path == "" {
		path = export.Filename(scr.Definition().Title, format)
	}
	var w io.Writer = cli.out
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating export file")
		}
		defer f.Close()
		w = f
	}
	if err = scr.Export(ctx, admin, screen.State{Filters: filters}, format, w); err != nil {
		if path != "-" {
			_ = os.Remove(path)
		}
		return err
	}
	if path != "-" {
		fmt.Fprintln(cli.out, "exported to", path)
	}
	return nil
}
