package screen

import (
	"context"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

var ErrScreenNotFound = core.NewNotFoundError("screen")

// Registry indexes the configured screens.
type Registry struct {
	screens map[string]*Screen
	order   []string
	deps    Deps
}

// NewRegistry builds one screen per definition, in order.
func NewRegistry(defs []Definition, deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger
	}
	reg := &Registry{screens: make(map[string]*Screen, len(defs)), deps: deps}
	for _, def := range defs {
		scr, err := newScreen(def, deps)
		if err != nil {
			return nil, err
		}
		reg.screens[def.Name] = scr
		reg.order = append(reg.order, def.Name)
	}
	deps.Logger.Debug("screens loaded", map[string]interface{}{"screens": reg.order})
	return reg, nil
}

// Load reads the definitions from r and builds the registry.
func Load(r io.Reader, deps Deps, validate *validator.Validate, translator ut.Translator) (*Registry, error) {
	defs, err := LoadDefinitions(r, validate, translator)
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs, deps)
}

func (reg *Registry) Get(name string) (*Screen, error) {
	scr, ok := reg.screens[name]
	if !ok {
		return nil, ErrScreenNotFound
	}
	return scr, nil
}

// Summary is a screen as listed in menus.
type Summary struct {
	Name  string   `json:"name"`
	Title string   `json:"title"`
	Chain []string `json:"chain,omitempty"`
}

// List returns the screens usr may open.
func (reg *Registry) List(usr user.User) []Summary {
	list := make([]Summary, 0, len(reg.order))
	for _, name := range reg.order {
		scr := reg.screens[name]
		if !scr.CanView(usr) {
			continue
		}
		list = append(list, Summary{Name: name, Title: scr.def.Title, Chain: scr.def.Chain})
	}
	return list
}

// Options lists the nodes of kind under parent, for card sliders.
func (reg *Registry) Options(ctx context.Context, kind hierarchy.Kind, parent string) ([]hierarchy.Option, error) {
	if !kind.Valid() {
		return nil, hierarchy.ErrInvalidChain
	}
	return reg.deps.Academy.Options(ctx, kind, parent)
}

// Fetcher exposes the hierarchy options to a hierarchy.Controller.
func (reg *Registry) Fetcher() hierarchy.Fetcher {
	return reg.deps.Academy
}
