// Package slider is the card selector used to pick a node at one hierarchy level.
package slider

import (
	"sort"
	"strings"
	"sync"

	"github.com/trezcool/shule/core/hierarchy"
)

type Card struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// FromMap builds cards from an id => name map, sorted by name then id.
func FromMap(items map[string]string) []Card {
	cards := make([]Card, 0, len(items))
	for id, name := range items {
		cards = append(cards, Card{ID: id, Name: name})
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Name != cards[j].Name {
			return cards[i].Name < cards[j].Name
		}
		return cards[i].ID < cards[j].ID
	})
	return cards
}

// FromSlice builds cards from any list, keeping its order.
func FromSlice[T any](items []T, card func(T) Card) []Card {
	cards := make([]Card, 0, len(items))
	for _, it := range items {
		cards = append(cards, card(it))
	}
	return cards
}

func FromOptions(opts []hierarchy.Option) []Card {
	return FromSlice(opts, func(o hierarchy.Option) Card {
		return Card{ID: o.ID, Name: o.Name, Image: o.Image}
	})
}

// Slider holds the cards of a level, the search text and the selected card.
type Slider struct {
	mu       sync.RWMutex
	cards    []Card
	query    string
	selected string
	onClick  func(id string)
}

// New returns a slider over cards. onClick, if not nil, receives the new selection ("" when toggled off).
func New(cards []Card, selected string, onClick func(id string)) *Slider {
	return &Slider{cards: cards, selected: selected, onClick: onClick}
}

// SetCards replaces the cards, dropping the selection when its card is gone.
func (s *Slider) SetCards(cards []Card) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards = cards
	if !s.has(s.selected) {
		s.selected = ""
	}
}

func (s *Slider) Search(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = strings.TrimSpace(q)
}

func (s *Slider) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Visible returns the cards whose name contains the search text, case-insensitively.
func (s *Slider) Visible() []Card {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.query == "" {
		return append([]Card(nil), s.cards...)
	}
	q := strings.ToLower(s.query)
	var cards []Card
	for _, c := range s.cards {
		if strings.Contains(strings.ToLower(c.Name), q) {
			cards = append(cards, c)
		}
	}
	return cards
}

func (s *Slider) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Click selects id, or clears the selection when id is already selected.
// Unknown ids are ignored. It returns the resulting selection.
func (s *Slider) Click(id string) string {
	s.mu.Lock()
	if !s.has(id) {
		sel := s.selected
		s.mu.Unlock()
		return sel
	}
	if s.selected == id {
		s.selected = ""
	} else {
		s.selected = id
	}
	sel, onClick := s.selected, s.onClick
	s.mu.Unlock()

	if onClick != nil {
		onClick(sel)
	}
	return sel
}

func (s *Slider) has(id string) bool {
	for _, c := range s.cards {
		if c.ID == id {
			return true
		}
	}
	return false
}
