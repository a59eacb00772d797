// Package screen wires the grid, the hierarchy selectors and the forms to the domain services.
// Each screen is described declaratively (see Definition) and owns the state the grid only reads.
package screen

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/export"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

// Deps are the collaborators of every screen.
type Deps struct {
	Academy  *academy.Service
	Approval *approval.Service
	Binder   *form.Binder
	Logger   core.Logger
}

// Outcome is what the caller must do after an interaction.
type Outcome struct {
	State    State       `json:"state"`
	Alert    string      `json:"alert,omitempty"`  // business rule rejection, shown as-is
	Notice   string      `json:"notice,omitempty"` // success message
	Form     *form.Form  `json:"form,omitempty"`
	Navigate *Navigation `json:"navigate,omitempty"`
	Export   string      `json:"export,omitempty"` // export format to download
	Reload   bool        `json:"reload,omitempty"` // rows changed
	// Fetch is the option load a Session wants run after a hierarchy change.
	Fetch *hierarchy.Request `json:"-"`
}

// Navigation asks the caller to open another screen.
type Navigation struct {
	Screen string `json:"screen"`
	State  State  `json:"state"`
}

// Screen is one configured screen.
type Screen struct {
	def    Definition
	chain  hierarchy.Chain
	source Source
	deps   Deps
}

func newScreen(def Definition, deps Deps) (*Screen, error) {
	chain, err := hierarchy.ParseChain(def.Chain)
	if err != nil {
		return nil, err
	}
	src := newSource(def, deps)
	if src == nil {
		return nil, errors.Wrapf(ErrInvalidDefinition, "no source for entity %q", def.Entity)
	}
	return &Screen{def: def, chain: chain, source: src, deps: deps}, nil
}

func (scr *Screen) Definition() Definition {
	return scr.def
}

func (scr *Screen) Chain() hierarchy.Chain {
	return scr.chain
}

// CanView reports whether usr may open the screen.
func (scr *Screen) CanView(usr user.User) bool {
	return usr.HasAnyRole(scr.def.Roles.View...)
}

// data is what a screen renders from. Options holds the option lists of the ready levels;
// Rows is nil until the scope is complete.
type data struct {
	options map[hierarchy.Kind][]hierarchy.Option
	rows    []grid.Row
	loaded  bool
}

// scope returns the rows scope of sel, and whether rows can be listed at all.
func (scr *Screen) scope(sel hierarchy.Selection) (Scope, bool) {
	if len(scr.chain) == 0 {
		return Scope{Selection: hierarchy.Selection{}}, true
	}
	if !scr.chain.Complete(sel) {
		return Scope{}, false
	}
	leaf, id, _ := scr.chain.Leaf(sel)
	return Scope{Selection: sel, Leaf: leaf, LeafID: id}, true
}

// load fetches the option lists of every ready level and, once the scope is complete, the rows.
// Levels load concurrently. Selected values missing from their option list are dropped with
// everything below them.
func (scr *Screen) load(ctx context.Context, usr user.User, st State) (State, data, error) {
	sel := scr.chain.Normalize(st.selection(scr.chain))
	d := data{options: make(map[hierarchy.Kind][]hierarchy.Option, len(scr.chain))}

	var ready hierarchy.Chain
	for _, kind := range scr.chain {
		if !scr.chain.Ready(sel, kind) {
			break
		}
		ready = append(ready, kind)
	}
	options := make([][]hierarchy.Option, len(ready))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range ready {
		parent := scr.chain.ParentValue(sel, kind)
		g.Go(func() error {
			opts, err := scr.deps.Academy.Options(gctx, kind, parent)
			if err != nil {
				return errors.Wrapf(err, "loading %s options", kind)
			}
			options[i] = opts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return st, d, err
	}

	for i, kind := range ready {
		d.options[kind] = options[i]
		if v := sel[kind]; v != "" && !hasOption(options[i], v) {
			sel, _ = scr.chain.Select(sel, kind, "")
			break
		}
	}
	st = st.withSelection(scr.chain, sel)

	if scope, ok := scr.scope(sel); ok {
		rows, err := scr.source.Rows(ctx, usr, scope)
		if err != nil {
			return st, d, errors.Wrapf(err, "loading %s", scr.def.Name)
		}
		d.rows, d.loaded = rows, true
	}
	return st, d, nil
}

func hasOption(opts []hierarchy.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Frame collects what the grid callbacks did during one dispatch.
type Frame struct {
	outcome Outcome
	err     error
}

// Outcome returns the outcome of the callbacks run so far.
func (f *Frame) Outcome() Outcome {
	return f.outcome
}

// fail records err. Rule errors become alerts; anything else is returned to the caller.
func (f *Frame) fail(err error) {
	if err == nil {
		return
	}
	if core.IsRuleError(err) {
		f.outcome.Alert = errors.Cause(err).Error()
		return
	}
	f.err = err
}

// Grid loads the screen for st and returns the configured grid along with the frame its
// callbacks report to.
func (scr *Screen) Grid(ctx context.Context, usr user.User, st State) (*grid.Grid, *Frame, error) {
	if !scr.CanView(usr) {
		return nil, nil, core.ErrPermissionDenied
	}
	st, d, err := scr.load(ctx, usr, st)
	if err != nil {
		return nil, nil, err
	}
	g, frame := scr.build(ctx, usr, st, d)
	return g, frame, nil
}

// Handle runs ev through the grid of st.
func (scr *Screen) Handle(ctx context.Context, usr user.User, st State, ev grid.Event) (Outcome, error) {
	g, frame, err := scr.Grid(ctx, usr, st)
	if err != nil {
		return Outcome{}, err
	}
	if err := g.Dispatch(ev); err != nil {
		return Outcome{}, err
	}
	if frame.err != nil {
		return Outcome{}, frame.err
	}
	return frame.outcome, nil
}

// build configures the grid over d. Callbacks record into the returned frame.
func (scr *Screen) build(ctx context.Context, usr user.User, st State, d data) (*grid.Grid, *Frame) {
	def := scr.def
	frame := &Frame{outcome: Outcome{State: st}}
	sel := st.selection(scr.chain)

	unfiltered := d.rows
	rows := scr.filterRows(d.rows, st)

	cfg := grid.Config{
		Data:              rows,
		UnfilteredData:    unfiltered,
		ColumnOrder:       def.Columns,
		DisplayNames:      def.DisplayNames,
		PillColumns:       def.PillColumns,
		Renderers:         scr.renderers(),
		Filters:           scr.filterDefinitions(d),
		ActiveFilters:     grid.ActiveFilters(st.Filters),
		OptionCounts:      def.countSource(),
		SearchText:        st.Search,
		SearchPlaceholder: def.SearchPlaceholder,
		Selection:         grid.Controlled(st.Selected),
		RowClickable:      d.loaded,
		UserRole:          usr.Role(),
		ActionRoles:       def.Roles.actionRoles(),
		StatusOptions:     def.StatusOptions,
		ExportFormats:     def.ExportFormats,
	}
	if len(scr.chain) > 0 && !d.loaded {
		cfg.EmptyText = fmt.Sprintf("Select %s to see the %s", withArticle(scr.chain[len(scr.chain)-1].Label()), strings.ToLower(def.Title))
	}
	if cfg.ActiveFilters == nil {
		cfg.ActiveFilters = grid.ActiveFilters{}
	}

	cfg.OnFilterChange = func(key, value string) {
		next := frame.outcome.State.clone()
		if kind := hierarchy.Kind(key); scr.chain.Contains(kind) {
			nsel, changed := scr.chain.Select(sel, kind, value)
			if !changed {
				return
			}
			next = next.withSelection(scr.chain, nsel)
		} else if value == "" {
			delete(next.Filters, key)
		} else {
			next.Filters[key] = value
		}
		next.Selected = ""
		frame.outcome.State = next
	}
	cfg.OnSearch = func(text string) {
		frame.outcome.State.Search = text
	}
	cfg.OnRowClick = func(id string) {
		next := frame.outcome.State.clone()
		if next.Selected == id {
			next.Selected = ""
		} else {
			next.Selected = id
		}
		frame.outcome.State = next
		if def.Drill != "" && next.Selected != "" {
			target := State{Filters: make(map[string]string, len(sel)+1)}
			for k, v := range sel {
				target.Filters[string(k)] = v
			}
			target.Filters[def.Kind] = id
			frame.outcome.Navigate = &Navigation{Screen: def.Drill, State: target}
		}
	}

	scope, complete := scr.scope(sel)
	status, hasStatus := scr.source.(StatusSource)

	if def.has(grid.ActionAddNew) && complete {
		cfg.OnAddNew = func() {
			frm, err := scr.form(ctx, usr, st, form.ModeCreate, "")
			if err != nil {
				frame.fail(err)
				return
			}
			frame.outcome.Form = &frm
		}
	}
	if def.has(grid.ActionEdit) {
		cfg.OnEdit = func(r grid.Row) {
			id := r.ID(grid.DefaultIDField)
			if hasStatus {
				if err := status.Editable(ctx, usr, id); err != nil {
					frame.fail(err)
					return
				}
			}
			frm, err := scr.form(ctx, usr, st, form.ModeEdit, id)
			if err != nil {
				frame.fail(err)
				return
			}
			frame.outcome.Form = &frm
		}
	}
	if def.has(grid.ActionDelete) {
		cfg.OnDelete = func(r grid.Row) {
			if err := scr.source.Delete(ctx, usr, r.ID(grid.DefaultIDField)); err != nil {
				frame.fail(err)
				return
			}
			frame.outcome.State.Selected = ""
			frame.outcome.Notice = def.item() + " deleted."
			frame.outcome.Reload = true
		}
	}
	if hasStatus && def.has(grid.ActionStatusChange) {
		cfg.OnStatusChange = func(id, value string) {
			if err := status.SetStatus(ctx, usr, id, value); err != nil {
				frame.fail(err)
				return
			}
			frame.outcome.Notice = fmt.Sprintf("%s marked %s.", def.item(), value)
			frame.outcome.Reload = true
		}
	}
	if hasStatus && def.has(grid.ActionHold) {
		cfg.OnHold = func(r grid.Row) {
			if err := status.Hold(ctx, usr, r.ID(grid.DefaultIDField)); err != nil {
				frame.fail(err)
				return
			}
			frame.outcome.Notice = def.item() + " put on hold."
			frame.outcome.Reload = true
		}
	}
	if def.has(grid.ActionExcelFormat) {
		cfg.OnExcelFormat = func() {
			frame.outcome.Export = export.FormatTemplate
		}
	}
	if def.has(grid.ActionImport) && complete {
		cfg.OnDataImported = func(imported []grid.Row) {
			scr.importRows(ctx, usr, st, scope, imported, frame)
		}
	}
	if def.has(grid.ActionExport) {
		cfg.OnCustomExport = func(format string) {
			frame.outcome.Export = format
		}
	}

	return grid.New(cfg), frame
}

// filterRows applies the static filters and the search text. Hierarchy filters already
// scoped the rows when they were loaded.
func (scr *Screen) filterRows(rows []grid.Row, st State) []grid.Row {
	search := strings.TrimSpace(st.Search)
	var out []grid.Row
	for _, r := range rows {
		if !scr.matchesFilters(r, st) {
			continue
		}
		if search != "" && !scr.matchesSearch(r, search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (scr *Screen) matchesFilters(r grid.Row, st State) bool {
	for _, fd := range scr.def.Filters {
		want := st.Filters[fd.Key]
		if want == "" {
			continue
		}
		if got, _ := r.Text(fd.Key); got != want {
			return false
		}
	}
	return true
}

func (scr *Screen) matchesSearch(r grid.Row, search string) bool {
	for _, col := range scr.def.Columns {
		if text, ok := r.Text(col); ok && core.ContainsFold(text, search) {
			return true
		}
	}
	return false
}

// filterDefinitions lists one dropdown per hierarchy level, then the static filters.
// Levels that are not ready yet only offer their "Select" entry.
func (scr *Screen) filterDefinitions(d data) []grid.FilterDefinition {
	fds := make([]grid.FilterDefinition, 0, len(scr.chain)+len(scr.def.Filters))
	for _, kind := range scr.chain {
		fd := grid.FilterDefinition{
			Key:     string(kind),
			Label:   kind.Label(),
			Options: []grid.Option{{Value: "", Label: "Select " + strings.ToLower(kind.Label())}},
		}
		for _, o := range d.options[kind] {
			fd.Options = append(fd.Options, grid.Option{Value: o.ID, Label: o.Name})
		}
		fds = append(fds, fd)
	}
	for _, f := range scr.def.Filters {
		fd := grid.FilterDefinition{
			Key:     f.Key,
			Label:   f.Label,
			Options: append([]grid.Option{{Value: "", Label: "All"}}, f.Options...),
		}
		fds = append(fds, fd)
	}
	return fds
}

var columnRenderers = map[string]func(grid.Row) string{
	"amount": func(r grid.Row) string {
		if v, ok := r["amount"].(float64); ok {
			return fmt.Sprintf("%.2f", v)
		}
		return ""
	},
	"percentage": func(r grid.Row) string {
		if v, ok := r["percentage"].(float64); ok {
			return fmt.Sprintf("%.1f%%", v)
		}
		return ""
	},
}

func (scr *Screen) renderers() map[string]func(grid.Row) string {
	rs := make(map[string]func(grid.Row) string)
	for _, col := range scr.def.Columns {
		if fn, ok := columnRenderers[col]; ok {
			rs[col] = fn
		}
	}
	return rs
}

// Form returns the add or edit form of the screen. Select fields with options_from are
// filled with the nodes found under the current filters.
func (scr *Screen) Form(ctx context.Context, usr user.User, st State, mode form.Mode, id string) (form.Form, error) {
	if !scr.CanView(usr) {
		return form.Form{}, core.ErrPermissionDenied
	}
	st, _, err := scr.load(ctx, usr, st)
	if err != nil {
		return form.Form{}, err
	}
	return scr.form(ctx, usr, st, mode, id)
}

func (scr *Screen) form(ctx context.Context, usr user.User, st State, mode form.Mode, id string) (form.Form, error) {
	fields, err := scr.fields(ctx, st)
	if err != nil {
		return form.Form{}, err
	}
	switch mode {
	case form.ModeCreate:
		return form.New("New "+scr.def.item(), mode, fields), nil
	case form.ModeEdit:
		row, err := scr.source.Row(ctx, usr, id)
		if err != nil {
			return form.Form{}, err
		}
		return form.New("Edit "+scr.def.item(), mode, fields).Prefill(row), nil
	}
	return form.Form{}, errors.Errorf("unknown form mode %q", mode)
}

func (scr *Screen) fields(ctx context.Context, st State) ([]form.Field, error) {
	sel := st.selection(scr.chain)
	fields := scr.def.formFields()
	for i, fd := range scr.def.Fields {
		if fd.OptionsFrom == "" {
			continue
		}
		kind := hierarchy.Kind(fd.OptionsFrom)
		var parent string
		if p, ok := kind.Parent(); ok {
			if parent = sel[p]; parent == "" {
				fields[i].Options = nil
				continue
			}
		}
		opts, err := scr.deps.Academy.Options(ctx, kind, parent)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s options", kind)
		}
		fields[i].Options = make([]grid.Option, 0, len(opts))
		for _, o := range opts {
			fields[i].Options = append(fields[i].Options, grid.Option{Value: o.ID, Label: o.Name})
		}
	}
	return fields, nil
}

// Submit binds input to the form of mode and saves it.
func (scr *Screen) Submit(ctx context.Context, usr user.User, st State, mode form.Mode, id string, input map[string]any) (Outcome, error) {
	if !scr.CanView(usr) {
		return Outcome{}, core.ErrPermissionDenied
	}
	st, _, err := scr.load(ctx, usr, st)
	if err != nil {
		return Outcome{}, err
	}
	scope, complete := scr.scope(st.selection(scr.chain))
	if !complete {
		return Outcome{State: st, Alert: scr.incompleteMessage()}, nil
	}

	frm, err := scr.form(ctx, usr, st, mode, id)
	if err != nil {
		return Outcome{}, err
	}
	vals, err := scr.deps.Binder.Bind(frm.Fields, input)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{State: st, Reload: true}
	frame := &Frame{outcome: out}
	switch mode {
	case form.ModeCreate:
		frame.fail(scr.source.Create(ctx, usr, scope, vals))
		frame.outcome.Notice = scr.def.item() + " created."
	case form.ModeEdit:
		frame.fail(scr.source.Update(ctx, usr, scope, id, vals))
		frame.outcome.Notice = scr.def.item() + " updated."
	}
	if frame.err != nil {
		return Outcome{}, frame.err
	}
	if frame.outcome.Alert != "" {
		frame.outcome.Notice, frame.outcome.Reload = "", false
	}
	return frame.outcome, nil
}

func (scr *Screen) incompleteMessage() string {
	return fmt.Sprintf("Select %s first.", withArticle(scr.chain[len(scr.chain)-1].Label()))
}

// importRows creates one row per imported record. Invalid records are reported and skipped.
// Select cells may hold the option label instead of its value.
func (scr *Screen) importRows(ctx context.Context, usr user.User, st State, scope Scope, rows []grid.Row, frame *Frame) {
	fields, err := scr.fields(ctx, st)
	if err != nil {
		frame.fail(err)
		return
	}
	fields = form.New("", form.ModeCreate, fields).Fields

	var (
		created  int
		failures []string
	)
	for i, r := range rows {
		vals, err := scr.deps.Binder.Bind(fields, optionValues(fields, r))
		if err == nil {
			err = scr.source.Create(ctx, usr, scope, vals)
		}
		if err != nil {
			if errors.Cause(err) == core.ErrPermissionDenied {
				frame.fail(err)
				return
			}
			failures = append(failures, fmt.Sprintf("row %d: %s", i+2, describe(err)))
			continue
		}
		created++
	}
	frame.outcome.Notice = fmt.Sprintf("Imported %d of %d rows.", created, len(rows))
	frame.outcome.Reload = created > 0
	if len(failures) > 0 {
		frame.outcome.Alert = strings.Join(failures, "; ")
	}
}

// optionValues replaces select labels by their option values.
func optionValues(fields []form.Field, r grid.Row) map[string]any {
	input := make(map[string]any, len(r))
	for k, v := range r {
		input[k] = v
	}
	for _, f := range fields {
		if f.Kind != form.KindSelect {
			continue
		}
		text, ok := r.Text(f.Name)
		if !ok {
			continue
		}
		for _, o := range f.Options {
			if strings.EqualFold(o.Label, text) {
				input[f.Name] = o.Value
				break
			}
		}
	}
	return input
}

// describe flattens an error for an import report.
func describe(err error) string {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(vErr.Fields) > 0 {
		parts := make([]string, 0, len(vErr.Fields))
		for _, f := range vErr.Fields {
			parts = append(parts, f.Field+" "+f.Error)
		}
		return strings.Join(parts, ", ")
	}
	return errors.Cause(err).Error()
}

// ImportHeaders are the columns of the import template: the create form fields.
func (scr *Screen) ImportHeaders() []grid.Header {
	fields := form.New("", form.ModeCreate, scr.def.formFields()).Fields
	headers := make([]grid.Header, 0, len(fields))
	for _, f := range fields {
		if f.Kind == form.KindGroup || f.Kind == form.KindFile {
			continue
		}
		headers = append(headers, grid.Header{Field: f.Name, Label: f.Label, Kind: grid.KindText})
	}
	return headers
}

// Export writes what the grid of st displays in format, or the import template.
func (scr *Screen) Export(ctx context.Context, usr user.User, st State, format string, w io.Writer) error {
	g, _, err := scr.Grid(ctx, usr, st)
	if err != nil {
		return err
	}
	if format == export.FormatTemplate {
		if !g.Available(grid.ActionExcelFormat) {
			return errors.Wrap(grid.ErrUnavailable, string(grid.ActionExcelFormat))
		}
		return export.ExcelTemplate(w, scr.def.Title, scr.ImportHeaders())
	}
	if !g.Available(grid.ActionExport) {
		return errors.Wrap(grid.ErrUnavailable, string(grid.ActionExport))
	}
	if !contains(scr.def.exportFormats(), format) {
		return errors.Wrapf(grid.ErrInvalidOption, "export format %q", format)
	}
	return export.Write(w, format, scr.def.Title, g.Render())
}

// Import reads rows from a spreadsheet and imports them through the grid.
func (scr *Screen) Import(ctx context.Context, usr user.User, st State, r io.Reader, filename string) (Outcome, error) {
	rows, err := export.ReadRows(r, filename, scr.ImportHeaders())
	if err != nil {
		return Outcome{}, err
	}
	return scr.Handle(ctx, usr, st, grid.Event{Kind: grid.EventImport, Rows: rows})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// withArticle lowercases label and prefixes it with "a" or "an".
func withArticle(label string) string {
	word := strings.ToLower(label)
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an " + word
	}
	return "a " + word
}
