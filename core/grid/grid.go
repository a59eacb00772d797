// Package grid implements a configurable data grid: columns, status pills, filter dropdowns,
// search, row selection and action controls, driven entirely by caller-supplied data and callbacks.
//
// The grid never fetches or filters data by itself (except for the optional local search),
// never owns filter state, and reports every interaction through the callbacks of its Config.
package grid

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	defaultStatusOptions = []string{"Approved", "Rejected"}
	defaultExportFormats = []string{"xlsx", "pdf"}
)

// Config is everything the grid needs. Data and ActiveFilters are owned by the caller.
type Config struct {
	Data []Row
	// UnfilteredData is the full row set, used for option counts when OptionCounts is CountsFromUnfiltered.
	UnfilteredData []Row
	IDField        string

	ColumnOrder  []string
	DisplayNames map[string]string
	PillColumns  []string
	Renderers    map[string]func(Row) string

	Filters        []FilterDefinition
	ActiveFilters  ActiveFilters
	OnFilterChange func(key, value string)
	OptionCounts   CountSource

	SearchText        string
	SearchPlaceholder string
	OnSearch          func(text string)
	// LocalSearch makes the grid match SearchText against the displayed cells itself.
	LocalSearch bool

	Selection    Selection
	RowClickable bool
	OnRowClick   func(id string)

	UserRole string
	// ActionRoles restricts actions to role prefixes. Actions without an entry are open to any role.
	ActionRoles map[Action][]string
	Actions
	StatusOptions []string
	ExportFormats []string

	EmptyText string
}

// Grid is a configured grid. Build it with New.
type Grid struct {
	cfg      Config
	columns  []Column
	filters  []FilterDefinition
	rowIndex map[string]int
	warnings []string

	mu     sync.Mutex
	search string
}

// New resolves the configuration once. Configuration problems never fail construction:
// the offending piece is dropped and reported in View.Warnings.
func New(cfg Config) *Grid {
	if cfg.IDField == "" {
		cfg.IDField = DefaultIDField
	}
	if cfg.Selection == nil {
		cfg.Selection = Controlled("")
	}
	if cfg.StatusOptions == nil {
		cfg.StatusOptions = defaultStatusOptions
	}
	if cfg.ExportFormats == nil {
		cfg.ExportFormats = defaultExportFormats
	}
	if cfg.EmptyText == "" {
		cfg.EmptyText = "No results found"
	}
	if cfg.SearchPlaceholder == "" {
		cfg.SearchPlaceholder = "Search"
	}

	g := &Grid{cfg: cfg, search: cfg.SearchText}

	g.columns, g.warnings = resolveColumns(cfg)

	if len(cfg.Filters) > 0 {
		if cfg.ActiveFilters == nil {
			g.warnings = append(g.warnings, "filters defined without active filters")
		} else {
			g.filters = cfg.Filters
		}
	}
	if cfg.OptionCounts == CountsFromUnfiltered && cfg.UnfilteredData == nil {
		g.warnings = append(g.warnings, "option counts from unfiltered data without unfiltered data")
		g.cfg.OptionCounts = CountsFromData
	}

	g.rowIndex = make(map[string]int, len(cfg.Data))
	for i, r := range cfg.Data {
		id := r.ID(cfg.IDField)
		if id == "" {
			g.warnings = append(g.warnings, "row without "+cfg.IDField)
			continue
		}
		if _, dup := g.rowIndex[id]; dup {
			g.warnings = append(g.warnings, "duplicate row "+id)
			continue
		}
		g.rowIndex[id] = i
	}
	return g
}

// SelectedID returns the currently selected row id.
func (g *Grid) SelectedID() string {
	return g.cfg.Selection.SelectedID()
}

// Available reports whether the control for action is rendered:
// its callback is set and the user role is allowed.
func (g *Grid) Available(action Action) bool {
	var set bool
	switch action {
	case ActionEdit:
		set = g.cfg.OnEdit != nil
	case ActionDelete:
		set = g.cfg.OnDelete != nil
	case ActionAddNew:
		set = g.cfg.OnAddNew != nil
	case ActionStatusChange:
		set = g.cfg.OnStatusChange != nil && len(g.cfg.StatusOptions) > 0
	case ActionHold:
		set = g.cfg.OnHold != nil
	case ActionExcelFormat:
		set = g.cfg.OnExcelFormat != nil
	case ActionImport:
		set = g.cfg.OnDataImported != nil
	case ActionExport:
		set = g.cfg.OnCustomExport != nil && len(g.cfg.ExportFormats) > 0
	}
	return set && g.roleAllowed(action)
}

func (g *Grid) roleAllowed(action Action) bool {
	roles, ok := g.cfg.ActionRoles[action]
	if !ok {
		return true
	}
	for _, role := range roles {
		if g.cfg.UserRole != "" && strings.HasPrefix(g.cfg.UserRole, role) {
			return true
		}
	}
	return false
}

func (g *Grid) searchText() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.search
}

// visibleRows applies the local search, if any.
func (g *Grid) visibleRows() []Row {
	text := strings.TrimSpace(g.searchText())
	if !g.cfg.LocalSearch || text == "" {
		return g.cfg.Data
	}
	rows := make([]Row, 0, len(g.cfg.Data))
	for _, r := range g.cfg.Data {
		for _, col := range g.columns {
			if col.Kind() == KindActions {
				continue
			}
			if c := col.cell(r); strings.Contains(strings.ToLower(c.Text), strings.ToLower(text)) {
				rows = append(rows, r)
				break
			}
		}
	}
	return rows
}

// Render builds the view. It has no side effects.
func (g *Grid) Render() View {
	rows := g.visibleRows()
	selected := g.SelectedID()

	view := View{
		Headers:  make([]Header, 0, len(g.columns)),
		Rows:     make([]RowView, 0, len(rows)),
		Warnings: g.warnings,
	}
	for _, col := range g.columns {
		view.Headers = append(view.Headers, Header{Field: col.Field(), Label: col.Label(), Kind: col.Kind()})
	}

	for _, r := range rows {
		id := r.ID(g.cfg.IDField)
		rv := RowView{
			ID:        id,
			Selected:  id != "" && id == selected,
			Clickable: g.cfg.RowClickable && id != "",
			Cells:     make([]Cell, 0, len(g.columns)),
		}
		if id != "" {
			rv.Controls = g.rowControls(id)
		}
		for _, col := range g.columns {
			c := col.cell(r)
			if c.Kind == KindActions {
				c.Controls = rv.Controls
			}
			rv.Cells = append(rv.Cells, c)
		}
		view.Rows = append(view.Rows, rv)
	}
	if len(view.Rows) == 0 {
		view.Empty = true
		view.EmptyText = g.cfg.EmptyText
	}

	view.Filters = g.renderFilters()
	if g.cfg.OnSearch != nil || g.cfg.LocalSearch {
		view.Search = &SearchView{Text: g.searchText(), Placeholder: g.cfg.SearchPlaceholder}
	}
	view.Toolbar = g.toolbar()
	return view
}

func (g *Grid) rowControls(id string) []Control {
	var controls []Control
	if g.Available(ActionEdit) {
		controls = append(controls, Control{Action: ActionEdit, Event: EventEdit, Label: "Edit", RowID: id})
	}
	if g.Available(ActionDelete) {
		controls = append(controls, Control{Action: ActionDelete, Event: EventDelete, Label: "Delete", RowID: id})
	}
	if g.Available(ActionStatusChange) {
		for _, status := range g.cfg.StatusOptions {
			controls = append(controls, Control{Action: ActionStatusChange, Event: EventStatusChange, Label: status, RowID: id, Value: status})
		}
	}
	if g.Available(ActionHold) {
		controls = append(controls, Control{Action: ActionHold, Event: EventHold, Label: "Hold", RowID: id})
	}
	return controls
}

func (g *Grid) toolbar() []Control {
	var controls []Control
	if g.Available(ActionAddNew) {
		controls = append(controls, Control{Action: ActionAddNew, Event: EventAddNew, Label: "Add New"})
	}
	if g.Available(ActionExcelFormat) {
		controls = append(controls, Control{Action: ActionExcelFormat, Event: EventExcelFormat, Label: "Excel Format"})
	}
	if g.Available(ActionImport) {
		controls = append(controls, Control{Action: ActionImport, Event: EventImport, Label: "Import"})
	}
	if g.Available(ActionExport) {
		for _, format := range g.cfg.ExportFormats {
			controls = append(controls, Control{Action: ActionExport, Event: EventExport, Label: "Export " + strings.ToUpper(format), Value: format})
		}
	}
	return controls
}

func (g *Grid) renderFilters() []FilterView {
	if len(g.filters) == 0 {
		return nil
	}

	var source []Row
	switch g.cfg.OptionCounts {
	case CountsFromData:
		source = g.cfg.Data
	case CountsFromUnfiltered:
		source = g.cfg.UnfilteredData
	}

	views := make([]FilterView, 0, len(g.filters))
	for _, fd := range g.filters {
		active := g.cfg.ActiveFilters[fd.Key]
		fv := FilterView{
			Key:      fd.Key,
			Label:    fd.Label,
			Options:  make([]OptionView, 0, len(fd.Options)),
			Disabled: !fd.selectable() || g.cfg.OnFilterChange == nil,
		}
		if fv.Label == "" {
			fv.Label = label(g.cfg.DisplayNames, fd.Key)
		}

		var counts map[string]int
		if g.cfg.OptionCounts != CountsNone {
			counts = countOptions(fd, source)
		}
		for _, opt := range fd.Options {
			ov := OptionView{Value: opt.Value, Label: opt.Label, Selected: opt.Value == active}
			if counts != nil {
				n := counts[opt.Value]
				ov.Count = &n
			}
			fv.Options = append(fv.Options, ov)
		}
		views = append(views, fv)
	}
	return views
}

func (g *Grid) row(id string) (Row, error) {
	i, ok := g.rowIndex[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRow, "row %q", id)
	}
	return g.cfg.Data[i], nil
}

func (g *Grid) filter(key string) (FilterDefinition, bool) {
	for _, fd := range g.filters {
		if fd.Key == key {
			return fd, true
		}
	}
	return FilterDefinition{}, false
}

func unavailable(action string) error {
	return errors.Wrap(ErrUnavailable, action)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Dispatch delivers a user interaction to the matching callback.
// Interactions on controls absent from the view fail with ErrUnavailable.
func (g *Grid) Dispatch(ev Event) error {
	switch ev.Kind {
	case EventRowClick:
		if !g.cfg.RowClickable {
			return unavailable("row click")
		}
		if _, err := g.row(ev.RowID); err != nil {
			return err
		}
		g.cfg.Selection.clicked(ev.RowID)
		if g.cfg.OnRowClick != nil {
			g.cfg.OnRowClick(ev.RowID)
		}

	case EventFilterChange:
		fd, ok := g.filter(ev.Key)
		if !ok || g.cfg.OnFilterChange == nil {
			return unavailable("filter " + ev.Key)
		}
		if !fd.hasOption(ev.Value) {
			return errors.Wrapf(ErrInvalidOption, "filter %s: %q", ev.Key, ev.Value)
		}
		g.cfg.OnFilterChange(ev.Key, ev.Value)

	case EventSearch:
		if g.cfg.OnSearch == nil && !g.cfg.LocalSearch {
			return unavailable("search")
		}
		if g.cfg.LocalSearch && g.cfg.OnSearch == nil {
			g.mu.Lock()
			g.search = ev.Value
			g.mu.Unlock()
		}
		if g.cfg.OnSearch != nil {
			g.cfg.OnSearch(ev.Value)
		}

	case EventEdit, EventDelete, EventHold:
		action := map[EventKind]Action{EventEdit: ActionEdit, EventDelete: ActionDelete, EventHold: ActionHold}[ev.Kind]
		if !g.Available(action) {
			return unavailable(string(action))
		}
		r, err := g.row(ev.RowID)
		if err != nil {
			return err
		}
		switch action {
		case ActionEdit:
			g.cfg.OnEdit(r)
		case ActionDelete:
			g.cfg.OnDelete(r)
		case ActionHold:
			g.cfg.OnHold(r)
		}

	case EventStatusChange:
		if !g.Available(ActionStatusChange) {
			return unavailable(string(ActionStatusChange))
		}
		if _, err := g.row(ev.RowID); err != nil {
			return err
		}
		if !contains(g.cfg.StatusOptions, ev.Value) {
			return errors.Wrapf(ErrInvalidOption, "status %q", ev.Value)
		}
		g.cfg.OnStatusChange(ev.RowID, ev.Value)

	case EventAddNew:
		if !g.Available(ActionAddNew) {
			return unavailable(string(ActionAddNew))
		}
		g.cfg.OnAddNew()

	case EventExcelFormat:
		if !g.Available(ActionExcelFormat) {
			return unavailable(string(ActionExcelFormat))
		}
		g.cfg.OnExcelFormat()

	case EventImport:
		if !g.Available(ActionImport) {
			return unavailable(string(ActionImport))
		}
		g.cfg.OnDataImported(ev.Rows)

	case EventExport:
		if !g.Available(ActionExport) {
			return unavailable(string(ActionExport))
		}
		if !contains(g.cfg.ExportFormats, ev.Value) {
			return errors.Wrapf(ErrInvalidOption, "export format %q", ev.Value)
		}
		g.cfg.OnCustomExport(ev.Value)

	default:
		return errors.Wrapf(ErrUnknownEvent, "%q", ev.Kind)
	}
	return nil
}
