package screen

import (
	"net/url"
	"sort"
	"strings"

	"github.com/trezcool/shule/core/hierarchy"
)

const (
	filterParamPrefix = "f."
	searchParam       = "q"
	selectedParam     = "selected"
)

// State is what the screen owns and the grid only reads: the active filters
// (hierarchy levels and static filters alike), the search text and the selected row.
type State struct {
	Filters  map[string]string `json:"filters"`
	Search   string            `json:"search"`
	Selected string            `json:"selected"`
}

// ParseState reads a state from query parameters: f.<key>=value, q and selected.
func ParseState(values url.Values) State {
	st := State{
		Filters:  make(map[string]string),
		Search:   values.Get(searchParam),
		Selected: values.Get(selectedParam),
	}
	for key := range values {
		if strings.HasPrefix(key, filterParamPrefix) {
			if v := strings.TrimSpace(values.Get(key)); v != "" {
				st.Filters[strings.TrimPrefix(key, filterParamPrefix)] = v
			}
		}
	}
	return st
}

// Values is the inverse of ParseState.
func (st State) Values() url.Values {
	values := make(url.Values)
	keys := make([]string, 0, len(st.Filters))
	for k := range st.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := st.Filters[k]; v != "" {
			values.Set(filterParamPrefix+k, v)
		}
	}
	if st.Search != "" {
		values.Set(searchParam, st.Search)
	}
	if st.Selected != "" {
		values.Set(selectedParam, st.Selected)
	}
	return values
}

func (st State) clone() State {
	next := State{Filters: make(map[string]string, len(st.Filters)), Search: st.Search, Selected: st.Selected}
	for k, v := range st.Filters {
		next.Filters[k] = v
	}
	return next
}

// selection returns the hierarchy part of the filters.
func (st State) selection(chain hierarchy.Chain) hierarchy.Selection {
	sel := make(hierarchy.Selection, len(chain))
	for _, k := range chain {
		if v := st.Filters[string(k)]; v != "" {
			sel[k] = v
		}
	}
	return sel
}

// withSelection replaces the hierarchy part of the filters with sel.
func (st State) withSelection(chain hierarchy.Chain, sel hierarchy.Selection) State {
	next := st.clone()
	for _, k := range chain {
		if v := sel[k]; v != "" {
			next.Filters[string(k)] = v
		} else {
			delete(next.Filters, string(k))
		}
	}
	return next
}
