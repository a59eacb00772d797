// Package hierarchy implements cascading selection over the academic hierarchy
// (institution, course, level, programme, batch, class; or subject and chapter under a level).
//
// Selecting a value at one position resets every position below it, re-selecting the same
// value changes nothing, and a level only gets options once its parent has a value.
package hierarchy

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is one level of the hierarchy.
type Kind string

const (
	Institution Kind = "institution"
	Course      Kind = "course"
	Level       Kind = "level"
	Programme   Kind = "programme"
	Batch       Kind = "batch"
	Class       Kind = "class"
	Subject     Kind = "subject"
	Chapter     Kind = "chapter"
)

var (
	Kinds = []Kind{Institution, Course, Level, Programme, Batch, Class, Subject, Chapter}

	parents = map[Kind]Kind{
		Course:    Institution,
		Level:     Course,
		Programme: Level,
		Batch:     Programme,
		Class:     Batch,
		Subject:   Level,
		Chapter:   Subject,
	}

	AcademicChain   = Chain{Institution, Course, Level, Programme, Batch, Class}
	CurriculumChain = Chain{Institution, Course, Level, Subject, Chapter}

	ErrInvalidChain = errors.New("invalid hierarchy chain")
)

func (k Kind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Parent returns the kind k hangs under. Institutions have none.
func (k Kind) Parent() (Kind, bool) {
	p, ok := parents[k]
	return p, ok
}

func (k Kind) Label() string {
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Option is a selectable node of a level.
type Option struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Selection maps each level to its selected node id. An absent or empty value means unselected.
type Selection map[Kind]string

func (s Selection) Clone() Selection {
	c := make(Selection, len(s))
	for k, v := range s {
		if v != "" {
			c[k] = v
		}
	}
	return c
}

// Chain is an ordered list of levels, each the parent of the next.
type Chain []Kind

// ParseChain validates kinds as a chain: known kinds, each the data parent of the next.
func ParseChain(kinds []string) (Chain, error) {
	chain := make(Chain, 0, len(kinds))
	for i, s := range kinds {
		k := Kind(strings.ToLower(strings.TrimSpace(s)))
		if !k.Valid() {
			return nil, errors.Wrapf(ErrInvalidChain, "unknown level %q", s)
		}
		if i > 0 {
			if p, _ := k.Parent(); p != chain[i-1] {
				return nil, errors.Wrapf(ErrInvalidChain, "%s does not belong to %s", k, chain[i-1])
			}
		}
		chain = append(chain, k)
	}
	return chain, nil
}

func (c Chain) Index(k Kind) int {
	for i, kind := range c {
		if kind == k {
			return i
		}
	}
	return -1
}

func (c Chain) Contains(k Kind) bool {
	return c.Index(k) >= 0
}

func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, k := range c {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, " > ")
}

// Select sets kind to value and clears every level below it.
// Re-selecting the current value is a no-op and reports false; sel itself is never modified.
func (c Chain) Select(sel Selection, kind Kind, value string) (Selection, bool) {
	pos := c.Index(kind)
	if pos < 0 || sel[kind] == value {
		return sel, false
	}
	next := sel.Clone()
	if value == "" {
		delete(next, kind)
	} else {
		next[kind] = value
	}
	for _, k := range c[pos+1:] {
		delete(next, k)
	}
	return next, true
}

// Ready reports whether kind may have options: every level above it is selected.
func (c Chain) Ready(sel Selection, kind Kind) bool {
	pos := c.Index(kind)
	if pos < 0 {
		return false
	}
	for _, k := range c[:pos] {
		if sel[k] == "" {
			return false
		}
	}
	return true
}

// ParentValue returns the selected value of the level above kind ("" for the first level).
func (c Chain) ParentValue(sel Selection, kind Kind) string {
	if pos := c.Index(kind); pos > 0 {
		return sel[c[pos-1]]
	}
	return ""
}

// Normalize keeps the contiguous run of selected levels from the top, dropping anything
// below a gap and anything outside the chain.
func (c Chain) Normalize(sel Selection) Selection {
	norm := make(Selection, len(c))
	for _, k := range c {
		v := sel[k]
		if v == "" {
			break
		}
		norm[k] = v
	}
	return norm
}

// Leaf returns the deepest selected level.
func (c Chain) Leaf(sel Selection) (Kind, string, bool) {
	var (
		leaf  Kind
		value string
	)
	for _, k := range c {
		v := sel[k]
		if v == "" {
			break
		}
		leaf, value = k, v
	}
	return leaf, value, value != ""
}

// Complete reports whether every level of the chain is selected.
func (c Chain) Complete(sel Selection) bool {
	return len(c) > 0 && c.Ready(sel, c[len(c)-1]) && sel[c[len(c)-1]] != ""
}

func (s Selection) String() string {
	return fmt.Sprintf("%v", map[Kind]string(s))
}
