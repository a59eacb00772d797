package main

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/screen"
	"github.com/trezcool/shule/core/user"
)

type (
	// optionsMsg reports a finished option load of kind.
	optionsMsg struct {
		kind hierarchy.Kind
		err  error
	}

	// rowsMsg reports a finished row load.
	rowsMsg struct {
		err error
	}
)

// page is one opened screen. Pages stack up as rows drill into other screens.
type page struct {
	sess  *screen.Session
	focus int // index into the chain; len(chain) is the grid
	row   int
}

type model struct {
	ctx    context.Context
	reg    *screen.Registry
	usr    user.User
	logger core.Logger

	pages   []*page
	view    grid.View
	initial tea.Cmd // loads of the first page

	searching bool
	search    string
	status    string
	alert     string

	width, height int
}

func newModel(ctx context.Context, reg *screen.Registry, usr user.User, logger core.Logger) model {
	return model{ctx: ctx, reg: reg, usr: usr, logger: logger}
}

// open pushes a page on name and returns the loads that bring it to st.
func (m *model) open(name string, st screen.State) tea.Cmd {
	scr, err := m.reg.Get(name)
	if err != nil {
		m.alert = err.Error()
		return nil
	}
	sess, err := scr.NewSession(m.usr)
	if err != nil {
		m.alert = errors.Wrapf(err, "opening %s", name).Error()
		return nil
	}
	p := &page{sess: sess}
	m.pages = append(m.pages, p)

	cmds := []tea.Cmd{m.runOptions(sess.Init(m.ctx))}
	for _, k := range scr.Chain() {
		v := st.Filters[string(k)]
		if v == "" {
			break
		}
		cmds = append(cmds, m.runOptions(sess.Select(m.ctx, k, v)))
		p.focus++
	}
	if st.Search != "" {
		if _, err := sess.Handle(m.ctx, grid.Event{Kind: grid.EventSearch, Value: st.Search}); err != nil {
			m.alert = err.Error()
		}
	}
	cmds = append(cmds, m.loadRows())
	m.refresh()
	return tea.Batch(cmds...)
}

func (m *model) current() *page {
	if len(m.pages) == 0 {
		return nil
	}
	return m.pages[len(m.pages)-1]
}

func (m *model) chain() hierarchy.Chain {
	return m.current().sess.Screen().Chain()
}

func (m *model) runOptions(req *hierarchy.Request) tea.Cmd {
	if req == nil {
		return nil
	}
	return func() tea.Msg {
		return optionsMsg{kind: req.Kind, err: req.Run()}
	}
}

func (m *model) loadRows() tea.Cmd {
	req := m.current().sess.LoadRows(m.ctx)
	if req == nil {
		return nil
	}
	return func() tea.Msg {
		return rowsMsg{err: req.Run()}
	}
}

// refresh re-renders the grid of the current page from what is loaded.
func (m *model) refresh() {
	p := m.current()
	if p == nil {
		return
	}
	m.view = p.sess.View(m.ctx)
	if p.row >= len(m.view.Rows) {
		p.row = len(m.view.Rows) - 1
	}
	if p.row < 0 {
		p.row = 0
	}
}

func (m model) Init() tea.Cmd {
	return m.initial
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case optionsMsg:
		if msg.err != nil && !errors.Is(msg.err, hierarchy.ErrStale) {
			m.logger.Error("option load failed", msg.err)
			m.alert = msg.err.Error()
		}
		m.refresh()
		return m, nil

	case rowsMsg:
		if msg.err != nil && !errors.Is(msg.err, hierarchy.ErrStale) {
			m.logger.Error("row load failed", msg.err)
			m.alert = msg.err.Error()
		}
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg.String(), msg.Text)
	}
	return m, nil
}

// handleKey applies a keystroke. text is what the key types, if anything.
func (m model) handleKey(key, text string) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(key, text)
	}
	m.alert = ""

	p := m.current()
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc", "backspace":
		if len(m.pages) > 1 {
			m.pages = m.pages[:len(m.pages)-1]
			m.status = ""
			m.refresh()
			return m, nil
		}
		if key == "esc" {
			return m, tea.Quit
		}

	case "tab":
		p.focus = (p.focus + 1) % (len(m.chain()) + 1)

	case "shift+tab":
		p.focus = (p.focus + len(m.chain())) % (len(m.chain()) + 1)

	case "left", "h":
		return m, m.cycleLevel(-1)

	case "right", "l":
		return m, m.cycleLevel(1)

	case "up", "k":
		if p.focus == len(m.chain()) && p.row > 0 {
			p.row--
		}

	case "down", "j":
		if p.focus == len(m.chain()) && p.row < len(m.view.Rows)-1 {
			p.row++
		}

	case "enter":
		if p.focus == len(m.chain()) && p.row < len(m.view.Rows) {
			return m, m.dispatch(grid.Event{Kind: grid.EventRowClick, RowID: m.view.Rows[p.row].ID})
		}

	case "/":
		m.searching, m.search = true, ""
		if m.view.Search != nil {
			m.search = m.view.Search.Text
		}

	case "r":
		return m, m.loadRows()
	}
	return m, nil
}

func (m model) handleSearchKey(key, text string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		m.searching = false
	case "enter":
		m.searching = false
		return m, m.dispatch(grid.Event{Kind: grid.EventSearch, Value: strings.TrimSpace(m.search)})
	case "backspace":
		if r := []rune(m.search); len(r) > 0 {
			m.search = string(r[:len(r)-1])
		}
	default:
		m.search += text
	}
	return m, nil
}

// cycleLevel selects the previous or next option of the focused level.
func (m *model) cycleLevel(step int) tea.Cmd {
	p := m.current()
	chain := m.chain()
	if p.focus >= len(chain) {
		return nil
	}
	kind := chain[p.focus]
	fv, ok := m.filterView(kind)
	if !ok || fv.Disabled || len(fv.Options) == 0 {
		return nil
	}
	pos := -1
	for i, o := range fv.Options {
		if o.Selected {
			pos = i
		}
	}
	pos += step
	if pos < 0 {
		pos = len(fv.Options) - 1
	}
	if pos >= len(fv.Options) {
		pos = 0
	}
	return m.dispatch(grid.Event{Kind: grid.EventFilterChange, Key: string(kind), Value: fv.Options[pos].Value})
}

func (m *model) filterView(kind hierarchy.Kind) (grid.FilterView, bool) {
	for _, fv := range m.view.Filters {
		if fv.Key == string(kind) {
			return fv, true
		}
	}
	return grid.FilterView{}, false
}

// dispatch runs ev on the current page and follows the outcome.
func (m *model) dispatch(ev grid.Event) tea.Cmd {
	p := m.current()
	out, err := p.sess.Handle(m.ctx, ev)
	if err != nil {
		m.alert = err.Error()
		return nil
	}
	m.alert, m.status = out.Alert, out.Notice

	if out.Navigate != nil {
		return m.open(out.Navigate.Screen, out.Navigate.State)
	}

	cmds := []tea.Cmd{m.runOptions(out.Fetch)}
	if out.Reload {
		p.row = 0
		cmds = append(cmds, m.loadRows())
	}
	m.refresh()
	return tea.Batch(cmds...)
}
