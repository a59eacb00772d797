package screen

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

// Session keeps a screen open for one user between interactions, as a terminal does.
// Option lists go through a hierarchy.Controller and rows through a hierarchy.Guard,
// so loads can run in the background and only the latest one lands.
type Session struct {
	scr  *Screen
	usr  user.User
	ctrl *hierarchy.Controller

	mu     sync.Mutex
	guard  hierarchy.Guard
	state  State // hierarchy filters live in ctrl
	rows   []grid.Row
	loaded bool
	err    error
}

// NewSession opens scr for usr.
func (scr *Screen) NewSession(usr user.User) (*Session, error) {
	if !scr.CanView(usr) {
		return nil, core.ErrPermissionDenied
	}
	return &Session{
		scr:   scr,
		usr:   usr,
		ctrl:  hierarchy.NewController(scr.chain, scr.deps.Academy),
		state: State{Filters: make(map[string]string)},
	}, nil
}

func (s *Session) Screen() *Screen {
	return s.scr
}

// Init returns the load of the first level's options, or nil for chainless screens.
func (s *Session) Init(ctx context.Context) *hierarchy.Request {
	return s.ctrl.Init(ctx)
}

// State returns the current state, hierarchy filters included.
func (s *Session) State() State {
	s.mu.Lock()
	st := s.state.clone()
	s.mu.Unlock()
	return st.withSelection(s.scr.chain, s.ctrl.Selection())
}

// Select changes a hierarchy level and drops the rows of the previous scope.
// It returns the load of the next level's options, if any.
func (s *Session) Select(ctx context.Context, kind hierarchy.Kind, value string) *hierarchy.Request {
	before := s.ctrl.Selection()
	req := s.ctrl.Select(ctx, kind, value)
	if s.ctrl.Selection().String() == before.String() {
		return req
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.guard.Invalidate()
	s.rows, s.loaded, s.err = nil, false, nil
	s.state.Selected = ""
	return req
}

// RowsRequest is a row load to run, typically in its own goroutine.
type RowsRequest struct {
	s      *Session
	scope  Scope
	ticket hierarchy.Ticket
	ctx    context.Context
}

// LoadRows returns the load of the rows of the current scope, or nil while it is incomplete.
// Starting a load supersedes the previous one.
func (s *Session) LoadRows(ctx context.Context) *RowsRequest {
	scope, ok := s.scr.scope(s.ctrl.Selection())
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, rctx := s.guard.Begin(ctx)
	return &RowsRequest{s: s, scope: scope, ticket: ticket, ctx: rctx}
}

// Run loads the rows and commits them unless a newer selection or load superseded it.
func (r *RowsRequest) Run() error {
	rows, err := r.s.scr.source.Rows(r.ctx, r.s.usr, r.scope)

	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.guard.Current(r.ticket) {
		return hierarchy.ErrStale
	}
	s.guard.Release(r.ticket)
	if err != nil {
		s.rows, s.loaded, s.err = nil, false, err
		return errors.Wrapf(err, "loading %s", s.scr.def.Name)
	}
	s.rows, s.loaded, s.err = rows, true, nil
	return nil
}

// Err returns the error of the last row load.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) snapshot() (State, data) {
	st := s.State()
	d := data{options: make(map[hierarchy.Kind][]hierarchy.Option, len(s.scr.chain))}
	for _, k := range s.scr.chain {
		d.options[k] = s.ctrl.Options(k)
	}
	s.mu.Lock()
	d.rows, d.loaded = s.rows, s.loaded
	s.mu.Unlock()
	return st, d
}

// View renders the grid from what is loaded so far. It never fetches.
func (s *Session) View(ctx context.Context) grid.View {
	st, d := s.snapshot()
	g, _ := s.scr.build(ctx, s.usr, st, d)
	return g.Render()
}

// Handle runs ev through the grid. Hierarchy changes return the option load to run in
// Outcome.Fetch; Outcome.Reload asks for LoadRows.
func (s *Session) Handle(ctx context.Context, ev grid.Event) (Outcome, error) {
	st, d := s.snapshot()
	g, frame := s.scr.build(ctx, s.usr, st, d)
	if err := g.Dispatch(ev); err != nil {
		return Outcome{}, err
	}
	if frame.err != nil {
		return Outcome{}, frame.err
	}
	out := frame.outcome

	if kind := hierarchy.Kind(ev.Key); ev.Kind == grid.EventFilterChange && s.scr.chain.Contains(kind) {
		out.Fetch = s.Select(ctx, kind, ev.Value)
		_, out.Reload = s.scr.scope(s.ctrl.Selection())
		out.State = s.State()
		return out, nil
	}

	// drilling away leaves this screen as it was
	if out.Navigate != nil {
		return out, nil
	}
	s.mu.Lock()
	s.state = out.State.withSelection(s.scr.chain, nil)
	s.mu.Unlock()
	return out, nil
}
