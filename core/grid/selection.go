package grid

import "sync"

// Selection decides who owns the selected row. Pick one explicitly with Standalone or Controlled.
type Selection interface {
	SelectedID() string
	clicked(id string)
}

// Standalone returns a grid-owned selection: clicking a row selects it, clicking it again clears it.
func Standalone() Selection {
	return &standalone{}
}

type standalone struct {
	mu sync.Mutex
	id string
}

func (s *standalone) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *standalone) clicked(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == id {
		s.id = ""
	} else {
		s.id = id
	}
}

// Controlled returns a caller-owned selection. The grid highlights selectedID and
// reports clicks through OnRowClick; it never changes the selection itself.
func Controlled(selectedID string) Selection {
	return controlled(selectedID)
}

type controlled string

func (c controlled) SelectedID() string { return string(c) }
func (controlled) clicked(string)       {}
