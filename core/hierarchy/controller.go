package hierarchy

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrStale is returned by Request.Run when a newer selection superseded the request.
var ErrStale = errors.New("stale response discarded")

// Fetcher loads the options of kind under the parent node (parent is "" for the first level).
type Fetcher interface {
	Options(ctx context.Context, kind Kind, parent string) ([]Option, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, kind Kind, parent string) ([]Option, error)

func (f FetcherFunc) Options(ctx context.Context, kind Kind, parent string) ([]Option, error) {
	return f(ctx, kind, parent)
}

// Controller holds a cascading selection and the option lists of every level.
// Option loads run outside the controller (see Request) and only the latest load
// of each level is committed.
type Controller struct {
	chain   Chain
	fetcher Fetcher

	mu      sync.Mutex
	sel     Selection
	options map[Kind][]Option
	errs    map[Kind]error
	guards  map[Kind]*Guard
}

func NewController(chain Chain, fetcher Fetcher) *Controller {
	c := &Controller{
		chain:   chain,
		fetcher: fetcher,
		sel:     make(Selection),
		options: make(map[Kind][]Option, len(chain)),
		errs:    make(map[Kind]error),
		guards:  make(map[Kind]*Guard, len(chain)),
	}
	for _, k := range chain {
		c.guards[k] = new(Guard)
	}
	return c
}

// Request is an option load to run, typically in its own goroutine.
type Request struct {
	Kind   Kind
	Parent string

	c      *Controller
	ticket Ticket
	ctx    context.Context
}

// Context is cancelled as soon as a newer selection supersedes the request.
func (r *Request) Context() context.Context {
	return r.ctx
}

// Run fetches the options and commits them unless the request went stale meanwhile.
func (r *Request) Run() error {
	opts, err := r.c.fetcher.Options(r.ctx, r.Kind, r.Parent)
	if !r.c.commit(r, opts, err) {
		return ErrStale
	}
	return errors.Wrapf(err, "loading %s options", r.Kind)
}

func (c *Controller) Chain() Chain {
	return c.chain
}

// Init returns the load of the first level's options.
func (c *Controller) Init(ctx context.Context) *Request {
	if len(c.chain) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begin(ctx, c.chain[0], "")
}

// Select applies a selection. Levels below kind lose their value and their options at once,
// and any load still running for them is superseded. It returns the load of the next level's
// options, or nil when nothing changed or there is nothing to load.
func (c *Controller) Select(ctx context.Context, kind Kind, value string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.chain.Ready(c.sel, kind) {
		return nil
	}
	next, changed := c.chain.Select(c.sel, kind, value)
	if !changed {
		return nil
	}
	c.sel = next

	pos := c.chain.Index(kind)
	for _, k := range c.chain[pos+1:] {
		c.guards[k].Invalidate()
		delete(c.options, k)
		delete(c.errs, k)
	}
	if value == "" || pos == len(c.chain)-1 {
		return nil
	}
	return c.begin(ctx, c.chain[pos+1], value)
}

// Reload returns a fresh load of kind's options, or nil when kind is not ready.
func (c *Controller) Reload(ctx context.Context, kind Kind) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.chain.Ready(c.sel, kind) {
		return nil
	}
	return c.begin(ctx, kind, c.chain.ParentValue(c.sel, kind))
}

func (c *Controller) begin(ctx context.Context, kind Kind, parent string) *Request {
	ticket, rctx := c.guards[kind].Begin(ctx)
	return &Request{Kind: kind, Parent: parent, c: c, ticket: ticket, ctx: rctx}
}

func (c *Controller) commit(r *Request, opts []Option, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	guard := c.guards[r.Kind]
	if !guard.Current(r.ticket) {
		return false
	}
	if err != nil {
		c.errs[r.Kind] = err
		delete(c.options, r.Kind)
	} else {
		c.options[r.Kind] = opts
		delete(c.errs, r.Kind)
	}
	guard.Release(r.ticket)
	return true
}

// Options returns the committed options of kind. Levels whose parent is unselected have none.
func (c *Controller) Options(kind Kind) []Option {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.chain.Ready(c.sel, kind) {
		return nil
	}
	opts := c.options[kind]
	if opts == nil {
		return nil
	}
	return append([]Option(nil), opts...)
}

// Err returns the error of the last committed load of kind.
func (c *Controller) Err(kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs[kind]
}

// Selection returns a copy of the current selection.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.Clone()
}

// Leaf returns the deepest selected level.
func (c *Controller) Leaf() (Kind, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Leaf(c.sel)
}
